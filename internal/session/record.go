package session

import "time"

// TokenRecord holds the backend-issued bearer token for one signed-in
// session. Records are replaced wholesale on refresh and deleted on
// sign-out or refresh failure; only the Manager mutates them.
type TokenRecord struct {
	UserID      string `json:"user_id" firestore:"user_id"`
	Email       string `json:"email" firestore:"email"`
	BearerToken string `json:"bearer_token" firestore:"bearer_token"`
	ExpiresAt   int64  `json:"exp" firestore:"exp"` // seconds since epoch
	Provider    string `json:"provider" firestore:"provider"`
}

// Empty reports whether the record carries no usable token.
func (r *TokenRecord) Empty() bool {
	return r == nil || r.BearerToken == "" || r.UserID == ""
}

// NeedsRefresh reports whether the token is within the refresh buffer of
// its expiry (or already past it).
func (r *TokenRecord) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return !now.Before(time.Unix(r.ExpiresAt, 0).Add(-buffer))
}

// Projection is the read-only session view handed to page handlers.
// A signed-out projection has Authenticated=false and empty fields.
type Projection struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	BearerToken   string `json:"bearer_token,omitempty"`
	ExpiresAt     int64  `json:"exp,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

// SignedOut is the projection of a session with no token record.
var SignedOut = Projection{}

// Project derives the consumer-facing view from a token record.
func Project(rec *TokenRecord) Projection {
	if rec.Empty() {
		return SignedOut
	}
	return Projection{
		Authenticated: true,
		UserID:        rec.UserID,
		Email:         rec.Email,
		BearerToken:   rec.BearerToken,
		ExpiresAt:     rec.ExpiresAt,
		Provider:      rec.Provider,
	}
}
