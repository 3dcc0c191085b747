package server

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rentranks/rentranks-front/internal/backend"
	"github.com/rentranks/rentranks-front/internal/log"
	"github.com/rentranks/rentranks-front/internal/session"
)

// Directory is the backend surface the pages consume.
// Satisfied by *backend.Client.
type Directory interface {
	SearchProfiles(ctx context.Context, bearer, query string) ([]backend.Profile, error)
	GetProfile(ctx context.Context, bearer, id string) (*backend.Profile, []backend.Review, error)
	SubmitReview(ctx context.Context, bearer string, review backend.ReviewSubmission) error
	GetReview(ctx context.Context, bearer, id string) (*backend.Review, *backend.Profile, error)
	UpdateReview(ctx context.Context, bearer, id string, update backend.ReviewUpdate) error
	MyReviews(ctx context.Context, bearer string) ([]backend.Review, error)
	ClaimProfile(ctx context.Context, bearer, profileID string) error
}

// PageHandlers renders the HTML pages. Backend calls carry the session's
// bearer token; anonymous requests go out without one.
type PageHandlers struct {
	directory Directory
	providers []string
}

// NewPageHandlers creates the page handlers. providers lists the
// identity provider types offered on the sign-in page.
func NewPageHandlers(directory Directory, providers []string) *PageHandlers {
	return &PageHandlers{
		directory: directory,
		providers: providers,
	}
}

// HomeHandler renders the landing page.
func (h *PageHandlers) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	renderPage(w, homeTemplate, PageData{Session: ProjectionFromContext(r.Context())})
}

// LoginPageHandler renders the sign-in page.
func (h *PageHandlers) LoginPageHandler(w http.ResponseWriter, r *http.Request) {
	proj := ProjectionFromContext(r.Context())
	if proj.Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderPage(w, loginTemplate, LoginPageData{
		PageData:  PageData{Session: proj},
		Providers: h.providers,
		Error:     errorMessage(r.URL.Query().Get("error")),
		ReturnTo:  safeReturnURL(r.URL.Query().Get("return_to")),
	})
}

// RegisterPageHandler renders the registration page.
func (h *PageHandlers) RegisterPageHandler(w http.ResponseWriter, r *http.Request) {
	proj := ProjectionFromContext(r.Context())
	if proj.Authenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderPage(w, registerTemplate, RegisterPageData{
		PageData: PageData{Session: proj},
		Error:    errorMessage(r.URL.Query().Get("error")),
	})
}

// SearchHandler renders search results. Search works signed out; signed
// in users get their bearer token attached so claimed-profile state is
// personalized.
func (h *PageHandlers) SearchHandler(w http.ResponseWriter, r *http.Request) {
	proj := ProjectionFromContext(r.Context())
	query := r.URL.Query().Get("q")

	data := SearchPageData{
		PageData: PageData{Session: proj},
		Query:    query,
	}

	if query != "" {
		profiles, err := h.directory.SearchProfiles(r.Context(), proj.BearerToken, query)
		if err != nil {
			log.LogErrorWithFields("server", "Profile search failed", map[string]any{
				"error": err.Error(),
			})
			data.Error = "Search is temporarily unavailable."
		} else {
			data.Profiles = profiles
		}
	}

	renderPage(w, searchTemplate, data)
}

// ProfileHandler renders a single profile with its reviews.
func (h *PageHandlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	proj := ProjectionFromContext(r.Context())
	id := r.PathValue("id")

	profile, reviews, err := h.directory.GetProfile(r.Context(), proj.BearerToken, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.LogErrorWithFields("server", "Profile fetch failed", map[string]any{
			"profile_id": id,
			"error":      err.Error(),
		})
		renderPage(w, profileTemplate, ProfilePageData{
			PageData: PageData{Session: proj},
			Error:    "This profile is temporarily unavailable.",
		})
		return
	}

	renderPage(w, profileTemplate, ProfilePageData{
		PageData: PageData{Session: proj},
		Profile:  profile,
		Reviews:  reviews,
	})
}

// ClaimHandler handles POST /profile/{id}/claim. Requires a session.
func (h *PageHandlers) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	if err := h.directory.ClaimProfile(r.Context(), proj.BearerToken, id); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.LogErrorWithFields("server", "Profile claim failed", map[string]any{
			"profile_id": id,
			"error":      err.Error(),
		})
	}
	http.Redirect(w, r, "/profile/"+url.PathEscape(id), http.StatusSeeOther)
}

// SubmitReviewPageHandler renders the review form. Requires a session.
func (h *PageHandlers) SubmitReviewPageHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	renderPage(w, submitReviewTemplate, SubmitReviewPageData{
		PageData:  PageData{Session: proj},
		ProfileID: r.URL.Query().Get("profile_id"),
		Submitted: r.URL.Query().Get("submitted") == "1",
	})
}

// SubmitReviewHandler handles the review form POST. Requires a session.
func (h *PageHandlers) SubmitReviewHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	rating, err := strconv.Atoi(r.FormValue("rating"))
	profileID := r.FormValue("profile_id")
	comment := r.FormValue("comment")

	data := SubmitReviewPageData{
		PageData:  PageData{Session: proj},
		ProfileID: profileID,
	}

	if profileID == "" || err != nil || rating < 1 || rating > 5 {
		data.Error = "A profile and a rating between 1 and 5 are required."
		renderPage(w, submitReviewTemplate, data)
		return
	}

	if err := h.directory.SubmitReview(r.Context(), proj.BearerToken, backend.ReviewSubmission{
		ProfileID:   profileID,
		Rating:      rating,
		Comment:     comment,
		IsAnonymous: r.FormValue("is_anonymous") != "",
	}); err != nil {
		log.LogErrorWithFields("server", "Review submission failed", map[string]any{
			"profile_id": profileID,
			"error":      err.Error(),
		})
		data.Error = "Your review could not be submitted. Please try again."
		renderPage(w, submitReviewTemplate, data)
		return
	}

	http.Redirect(w, r, "/submit-review?submitted=1&profile_id="+url.QueryEscape(profileID), http.StatusSeeOther)
}

// EditReviewPageHandler renders the edit form for one of the user's own
// reviews. Requires a session.
func (h *PageHandlers) EditReviewPageHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	review, profile, err := h.directory.GetReview(r.Context(), proj.BearerToken, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.LogErrorWithFields("server", "Review fetch failed", map[string]any{
			"review_id": id,
			"error":     err.Error(),
		})
		renderPage(w, editReviewTemplate, EditReviewPageData{
			PageData: PageData{Session: proj},
			Error:    "This review is temporarily unavailable.",
		})
		return
	}

	renderPage(w, editReviewTemplate, EditReviewPageData{
		PageData: PageData{Session: proj},
		Review:   review,
		Profile:  profile,
	})
}

// EditReviewHandler handles the edit form POST. Requires a session.
func (h *PageHandlers) EditReviewHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	rating, err := strconv.Atoi(r.FormValue("rating"))
	update := backend.ReviewUpdate{
		Rating:      rating,
		Comment:     r.FormValue("comment"),
		IsAnonymous: r.FormValue("is_anonymous") != "",
	}

	data := EditReviewPageData{
		PageData: PageData{Session: proj},
		Review: &backend.Review{
			ID:          id,
			ProfileID:   r.FormValue("profile_id"),
			Rating:      update.Rating,
			Comment:     update.Comment,
			IsAnonymous: update.IsAnonymous,
		},
	}

	if err != nil || rating < 1 || rating > 5 {
		data.Error = "A rating between 1 and 5 is required."
		renderPage(w, editReviewTemplate, data)
		return
	}

	if err := h.directory.UpdateReview(r.Context(), proj.BearerToken, id, update); err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		log.LogErrorWithFields("server", "Review update failed", map[string]any{
			"review_id": id,
			"error":     err.Error(),
		})
		data.Error = "Your changes could not be saved. Please try again."
		renderPage(w, editReviewTemplate, data)
		return
	}

	if profileID := r.FormValue("profile_id"); profileID != "" {
		http.Redirect(w, r, "/profile/"+url.PathEscape(profileID), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/my-reviews", http.StatusSeeOther)
}

// MyReviewsHandler renders the signed-in user's reviews. Requires a session.
func (h *PageHandlers) MyReviewsHandler(w http.ResponseWriter, r *http.Request) {
	proj, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	data := MyReviewsPageData{PageData: PageData{Session: proj}}

	reviews, err := h.directory.MyReviews(r.Context(), proj.BearerToken)
	if err != nil {
		log.LogErrorWithFields("server", "Listing reviews failed", map[string]any{
			"error": err.Error(),
		})
		data.Error = "Your reviews are temporarily unavailable."
	} else {
		data.Reviews = reviews
	}

	renderPage(w, myReviewsTemplate, data)
}

// requireSession redirects anonymous requests to the sign-in page,
// preserving the requested path.
func (h *PageHandlers) requireSession(w http.ResponseWriter, r *http.Request) (session.Projection, bool) {
	proj := ProjectionFromContext(r.Context())
	if !proj.Authenticated {
		http.Redirect(w, r, "/login?return_to="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
		return session.SignedOut, false
	}
	return proj, true
}

func renderPage(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		log.LogError("Failed to render %s template: %v", tmpl.Name(), err)
	}
}

// errorMessage maps error codes from redirects to user-facing text.
func errorMessage(code string) string {
	switch code {
	case "":
		return ""
	case "missing_credentials":
		return "Email and password are required."
	case "invalid_credentials":
		return "Invalid email or password."
	case "invalid_state", "exchange_failed", "userinfo_failed", "signin_failed":
		return "Sign-in with your provider failed. Please try again."
	case "access_denied":
		return "Sign-in was cancelled."
	case "no_email":
		return "Your provider did not share an email address."
	case "registration_failed":
		return "Registration failed. The email may already be in use."
	case "unavailable":
		return "Sign-in is temporarily unavailable. Please try again shortly."
	default:
		return "Something went wrong. Please try again."
	}
}
