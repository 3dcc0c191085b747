package session

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rentranks/rentranks-front/internal/backend"
	"github.com/rentranks/rentranks-front/internal/emailutil"
	"github.com/rentranks/rentranks-front/internal/log"
)

// TokenRefreshBuffer is how long before bearer token expiry a session
// read triggers a refresh. Keeps tokens from expiring mid-request.
const TokenRefreshBuffer = 5 * time.Minute

// DefaultSessionTTL is the absolute lifetime of a stored session,
// independent of bearer token expiry.
const DefaultSessionTTL = 24 * time.Hour

// Exchanger trades credentials for bearer tokens against the backend.
// Satisfied by *backend.Client.
type Exchanger interface {
	Login(ctx context.Context, email, password string) (*backend.TokenGrant, error)
	SocialLogin(ctx context.Context, req backend.SocialLoginRequest) (*backend.TokenGrant, error)
	RefreshToken(ctx context.Context, bearerToken string) (*backend.TokenGrant, error)
}

// Manager owns the token lifecycle for browser sessions: sign-in,
// projection reads with expiry-driven refresh, and sign-out. Concurrent
// reads of the same session share one refresh via singleflight.
type Manager struct {
	exchanger     Exchanger
	store         Store
	refreshBuffer time.Duration
	ttl           time.Duration
	now           func() time.Time
	group         singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRefreshBuffer overrides the refresh buffer. Zero disables
// proactive refresh entirely (tokens refresh only once expired).
func WithRefreshBuffer(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshBuffer = d
	}
}

// WithSessionTTL overrides the absolute session lifetime.
func WithSessionTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = d
	}
}

// WithClock overrides the time source. Test-only.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager.
func NewManager(exchanger Exchanger, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		exchanger:     exchanger,
		store:         store,
		refreshBuffer: TokenRefreshBuffer,
		ttl:           DefaultSessionTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignIn exchanges an identity for a bearer token and stores the
// resulting record under sessionID. On any exchange failure the store is
// left untouched and the error is returned to the caller.
func (m *Manager) SignIn(ctx context.Context, sessionID string, identity Identity) (Projection, error) {
	var rec TokenRecord

	switch id := identity.(type) {
	case PasswordIdentity:
		if id.Email == "" || id.Password == "" {
			return SignedOut, backend.ErrMissingCredentials
		}
		email := emailutil.Normalize(id.Email)
		grant, err := m.exchanger.Login(ctx, email, id.Password)
		if err != nil {
			return SignedOut, err
		}
		rec = TokenRecord{
			UserID:      grant.UserID,
			Email:       email,
			BearerToken: grant.AccessToken,
			ExpiresAt:   grant.ExpiresAt,
			Provider:    "credentials",
		}

	case ProviderIdentity:
		req := backend.SocialLoginRequest{
			Provider:    id.Provider,
			Email:       emailutil.Normalize(id.Email),
			Name:        id.Name,
			AccessToken: id.AccessToken,
		}
		if id.Provider == "google" {
			req.GoogleID = id.Subject
		}
		grant, err := m.exchanger.SocialLogin(ctx, req)
		if err != nil {
			return SignedOut, err
		}
		rec = TokenRecord{
			UserID:      grant.UserID,
			Email:       req.Email,
			BearerToken: grant.AccessToken,
			ExpiresAt:   grant.ExpiresAt,
			Provider:    id.Provider,
		}

	default:
		return SignedOut, fmt.Errorf("session: unsupported identity type %T", identity)
	}

	if err := m.store.Put(ctx, sessionID, rec, m.ttl); err != nil {
		return SignedOut, fmt.Errorf("session: failed to store record: %w", err)
	}

	log.LogInfoWithFields("session", "Signed in", map[string]any{
		"user_id":  rec.UserID,
		"provider": rec.Provider,
	})

	return Project(&rec), nil
}

// Session returns the current projection for sessionID, refreshing the
// bearer token first when it is within the refresh buffer of expiry.
// A failed refresh signs the session out: the record is deleted and a
// signed-out projection is returned with a nil error, so callers render
// the anonymous state instead of a 500.
func (m *Manager) Session(ctx context.Context, sessionID string) (Projection, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return SignedOut, fmt.Errorf("session: failed to read record: %w", err)
	}
	if rec == nil || rec.Empty() {
		return SignedOut, nil
	}

	if !rec.NeedsRefresh(m.now(), m.refreshBuffer) {
		return Project(rec), nil
	}

	return m.refresh(ctx, sessionID)
}

// refresh replaces the session's bearer token via the backend. All
// concurrent callers for the same session share one upstream call; each
// gets the projection produced by whoever ran the exchange.
func (m *Manager) refresh(ctx context.Context, sessionID string) (Projection, error) {
	v, err, _ := m.group.Do(sessionID, func() (any, error) {
		// Re-read inside the flight: a caller that queued behind the
		// winner sees the already-refreshed record and skips upstream.
		cur, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return SignedOut, fmt.Errorf("session: failed to read record: %w", err)
		}
		if cur == nil || cur.Empty() {
			return SignedOut, nil
		}
		if !cur.NeedsRefresh(m.now(), m.refreshBuffer) {
			return Project(cur), nil
		}

		grant, err := m.exchanger.RefreshToken(ctx, cur.BearerToken)
		if err != nil {
			log.LogWarnWithFields("session", "Token refresh failed, signing out", map[string]any{
				"user_id": cur.UserID,
				"error":   err.Error(),
			})
			if derr := m.store.Delete(ctx, sessionID); derr != nil {
				log.LogErrorWithFields("session", "Failed to delete record after refresh failure", map[string]any{
					"error": derr.Error(),
				})
			}
			return SignedOut, nil
		}

		next := TokenRecord{
			UserID:      cur.UserID,
			Email:       cur.Email,
			BearerToken: grant.AccessToken,
			ExpiresAt:   grant.ExpiresAt,
			Provider:    cur.Provider,
		}
		if err := m.store.Put(ctx, sessionID, next, m.ttl); err != nil {
			return SignedOut, fmt.Errorf("session: failed to store refreshed record: %w", err)
		}

		log.LogDebugWithFields("session", "Refreshed bearer token", map[string]any{
			"user_id": next.UserID,
			"exp":     next.ExpiresAt,
		})

		return Project(&next), nil
	})
	if err != nil {
		return SignedOut, err
	}
	return v.(Projection), nil
}

// SignOut deletes the record for sessionID. Idempotent: signing out a
// session that does not exist is not an error.
func (m *Manager) SignOut(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: failed to delete record: %w", err)
	}
	log.LogDebugWithFields("session", "Signed out", map[string]any{})
	return nil
}
