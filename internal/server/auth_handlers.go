package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rentranks/rentranks-front/internal/backend"
	"github.com/rentranks/rentranks-front/internal/cookie"
	"github.com/rentranks/rentranks-front/internal/crypto"
	"github.com/rentranks/rentranks-front/internal/idp"
	jsonwriter "github.com/rentranks/rentranks-front/internal/json"
	"github.com/rentranks/rentranks-front/internal/log"
	"github.com/rentranks/rentranks-front/internal/session"
)

// oauthStateTTL bounds how long a sign-in redirect to an identity
// provider remains valid.
const oauthStateTTL = 10 * time.Minute

// AuthHandlers provides authentication HTTP handlers with dependency injection
type AuthHandlers struct {
	sessions   *session.Manager
	registrar  Registrar
	providers  *idp.Registry
	cookies    *SessionCookies
	stateToken crypto.TokenSigner
}

// Registrar creates accounts on the review platform backend.
// Satisfied by *backend.Client.
type Registrar interface {
	Register(ctx context.Context, req backend.RegisterRequest) error
}

// authorizationState is the signed OAuth state round-tripped through the
// identity provider.
type authorizationState struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"return_url,omitempty"`
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(
	sessions *session.Manager,
	registrar Registrar,
	providers *idp.Registry,
	cookies *SessionCookies,
	signingKey []byte,
) *AuthHandlers {
	return &AuthHandlers{
		sessions:   sessions,
		registrar:  registrar,
		providers:  providers,
		cookies:    cookies,
		stateToken: crypto.NewTokenSigner(signingKey, oauthStateTTL),
	}
}

// sessionResponse is the browser-facing session view. The bearer token
// never leaves the server.
type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Provider      string `json:"provider,omitempty"`
	ExpiresAt     int64  `json:"exp,omitempty"`
}

func toSessionResponse(proj session.Projection) sessionResponse {
	return sessionResponse{
		Authenticated: proj.Authenticated,
		UserID:        proj.UserID,
		Email:         proj.Email,
		Provider:      proj.Provider,
		ExpiresAt:     proj.ExpiresAt,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler handles POST /auth/login with email/password credentials.
// Accepts JSON or form encoding; form requests get a redirect, JSON
// requests get the session view back.
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	email, password, isJSON, ok := readCredentials(w, r)
	if !ok {
		return
	}

	sessionID, err := h.cookies.Issue(w)
	if err != nil {
		log.LogError("Failed to issue session cookie: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	proj, err := h.sessions.SignIn(r.Context(), sessionID, session.PasswordIdentity{
		Email:    email,
		Password: password,
	})
	if err != nil {
		cookie.ClearSession(w)
		h.writeSignInError(w, r, err, isJSON)
		return
	}

	if isJSON {
		_ = jsonwriter.Write(w, toSessionResponse(proj))
		return
	}
	http.Redirect(w, r, safeReturnURL(r.FormValue("return_to")), http.StatusSeeOther)
}

// RegisterHandler handles POST /auth/register. A successful registration
// signs the new account straight in.
func (h *AuthHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	isJSON := requestIsJSON(r)

	var req backend.RegisterRequest
	if isJSON {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonwriter.WriteBadRequest(w, "Invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			jsonwriter.WriteBadRequest(w, "Invalid form data")
			return
		}
		req = backend.RegisterRequest{
			Email:     r.FormValue("email"),
			Password:  r.FormValue("password"),
			FirstName: r.FormValue("first_name"),
			LastName:  r.FormValue("last_name"),
			Role:      r.FormValue("role"),
		}
	}

	if req.Email == "" || req.Password == "" {
		h.writeSignInError(w, r, backend.ErrMissingCredentials, isJSON)
		return
	}

	if err := h.registrar.Register(r.Context(), req); err != nil {
		log.LogWarnWithFields("server", "Registration rejected", map[string]any{
			"error": err.Error(),
		})
		if isJSON {
			jsonwriter.WriteBadRequest(w, "Registration failed")
		} else {
			http.Redirect(w, r, "/register?error=registration_failed", http.StatusSeeOther)
		}
		return
	}

	sessionID, err := h.cookies.Issue(w)
	if err != nil {
		log.LogError("Failed to issue session cookie: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	proj, err := h.sessions.SignIn(r.Context(), sessionID, session.PasswordIdentity{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		cookie.ClearSession(w)
		h.writeSignInError(w, r, err, isJSON)
		return
	}

	if isJSON {
		_ = jsonwriter.WriteResponse(w, http.StatusCreated, toSessionResponse(proj))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// OAuthLoginHandler handles GET /oauth/login/{provider}: it signs a
// state value, stores it in a short-lived cookie, and redirects the
// browser to the identity provider's consent page.
func (h *AuthHandlers) OAuthLoginHandler(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(r.PathValue("provider"))
	if err != nil {
		jsonwriter.WriteNotFound(w, "Unknown identity provider")
		return
	}

	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		log.LogError("Failed to generate state nonce: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	state, err := h.stateToken.Sign(authorizationState{
		Nonce:     nonce,
		ReturnURL: safeReturnURL(r.URL.Query().Get("return_to")),
	})
	if err != nil {
		log.LogError("Failed to sign state: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	cookie.SetState(w, state, oauthStateTTL)
	http.Redirect(w, r, provider.AuthURL(state), http.StatusFound)
}

// OAuthCallbackHandler handles GET /oauth/callback/{provider}. The state
// parameter must match the signed state cookie; then the code is
// exchanged, the provider profile fetched, and the identity handed to
// the session manager.
func (h *AuthHandlers) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider, err := h.providers.Get(r.PathValue("provider"))
	if err != nil {
		jsonwriter.WriteNotFound(w, "Unknown identity provider")
		return
	}

	// The state cookie is single-use. It has to be cleared before the
	// first redirect or error write; header changes after WriteHeader
	// are dropped.
	cookie.ClearState(w)

	stateParam := r.URL.Query().Get("state")
	stateCookie, err := cookie.GetState(r)
	if err != nil || stateParam == "" || stateParam != stateCookie {
		log.LogWarn("OAuth callback with missing or mismatched state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	var state authorizationState
	if err := h.stateToken.Verify(stateParam, &state); err != nil {
		log.LogWarn("OAuth callback with invalid state: %v", err)
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		// Provider denied or user cancelled
		http.Redirect(w, r, "/login?error=access_denied", http.StatusSeeOther)
		return
	}

	token, err := provider.ExchangeCode(r.Context(), code)
	if err != nil {
		log.LogError("Code exchange with %s failed: %v", provider.Type(), err)
		http.Redirect(w, r, "/login?error=exchange_failed", http.StatusSeeOther)
		return
	}

	info, err := provider.UserInfo(r.Context(), token)
	if err != nil {
		log.LogError("Fetching user info from %s failed: %v", provider.Type(), err)
		http.Redirect(w, r, "/login?error=userinfo_failed", http.StatusSeeOther)
		return
	}
	if info.Email == "" {
		log.LogWarn("Identity provider %s returned no email", provider.Type())
		http.Redirect(w, r, "/login?error=no_email", http.StatusSeeOther)
		return
	}

	sessionID, err := h.cookies.Issue(w)
	if err != nil {
		log.LogError("Failed to issue session cookie: %v", err)
		jsonwriter.WriteInternalServerError(w, "Internal server error")
		return
	}

	if _, err := h.sessions.SignIn(r.Context(), sessionID, session.ProviderIdentity{
		Provider:    provider.Type(),
		Email:       info.Email,
		Name:        info.Name,
		Subject:     info.Subject,
		AccessToken: token.AccessToken,
	}); err != nil {
		cookie.ClearSession(w)
		log.LogErrorWithFields("server", "Social sign-in rejected", map[string]any{
			"provider": provider.Type(),
			"error":    err.Error(),
		})
		http.Redirect(w, r, "/login?error=signin_failed", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, safeReturnURL(state.ReturnURL), http.StatusSeeOther)
}

// LogoutHandler handles POST /auth/logout. Idempotent.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if sessionID := sessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.sessions.SignOut(r.Context(), sessionID); err != nil {
			log.LogError("Sign-out failed: %v", err)
		}
	}
	cookie.ClearSession(w)

	if requestIsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SessionHandler handles GET /auth/session: the browser-facing view of
// the current session.
func (h *AuthHandlers) SessionHandler(w http.ResponseWriter, r *http.Request) {
	proj := ProjectionFromContext(r.Context())
	_ = jsonwriter.Write(w, toSessionResponse(proj))
}

func (h *AuthHandlers) writeSignInError(w http.ResponseWriter, r *http.Request, err error, isJSON bool) {
	switch {
	case errors.Is(err, backend.ErrMissingCredentials):
		if isJSON {
			jsonwriter.WriteBadRequest(w, "Email and password are required")
		} else {
			http.Redirect(w, r, "/login?error=missing_credentials", http.StatusSeeOther)
		}
	case errors.Is(err, backend.ErrInvalidCredentials), errors.Is(err, backend.ErrUpstreamRejected):
		if isJSON {
			jsonwriter.WriteUnauthorized(w, "Invalid email or password")
		} else {
			http.Redirect(w, r, "/login?error=invalid_credentials", http.StatusSeeOther)
		}
	case errors.Is(err, backend.ErrBackendUnreachable), errors.Is(err, backend.ErrMalformedResponse):
		log.LogError("Sign-in failed, backend unusable: %v", err)
		if isJSON {
			jsonwriter.WriteServiceUnavailable(w, "Sign-in temporarily unavailable")
		} else {
			http.Redirect(w, r, "/login?error=unavailable", http.StatusSeeOther)
		}
	default:
		log.LogError("Sign-in failed: %v", err)
		if isJSON {
			jsonwriter.WriteInternalServerError(w, "Internal server error")
		} else {
			http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		}
	}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (email, password string, isJSON, ok bool) {
	isJSON = requestIsJSON(r)

	if isJSON {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonwriter.WriteBadRequest(w, "Invalid request body")
			return "", "", true, false
		}
		return req.Email, req.Password, true, true
	}

	if err := r.ParseForm(); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid form data")
		return "", "", false, false
	}
	return r.FormValue("email"), r.FormValue("password"), false, true
}

func requestIsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Accept"), "application/json")
}

// safeReturnURL confines post-auth redirects to same-site paths.
func safeReturnURL(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.String()
}
