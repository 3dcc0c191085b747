package backend

import "errors"

// Sentinel errors for the auth endpoints. Handlers map these to user-facing
// sign-in failures; they are never allowed to escape as panics.
var (
	// ErrMissingCredentials is returned before any network call when the
	// email or password is empty.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidCredentials is returned when the login endpoint rejects
	// the email/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUpstreamRejected is returned when the social-login endpoint
	// rejects a provider identity.
	ErrUpstreamRejected = errors.New("social login rejected by backend")

	// ErrMalformedResponse is returned when a 2xx auth response is missing
	// the access token or expiry.
	ErrMalformedResponse = errors.New("malformed backend auth response")

	// ErrRefreshFailed is returned when the refresh endpoint returns
	// non-2xx or is unreachable.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrBackendUnreachable wraps transport failures and timeouts on any
	// backend call.
	ErrBackendUnreachable = errors.New("backend unreachable")

	// ErrNotFound is returned for missing business resources (404).
	ErrNotFound = errors.New("resource not found")
)
