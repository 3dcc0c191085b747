package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rentranks/rentranks-front/internal/emailutil"
	"github.com/rentranks/rentranks-front/internal/ioutil"
	"github.com/rentranks/rentranks-front/internal/log"
	"github.com/rentranks/rentranks-front/internal/urlutil"
)

// DefaultTimeout bounds every backend call. The backend has no streaming
// endpoints, so a timed-out call is treated the same as an unreachable one.
const DefaultTimeout = 10 * time.Second

// Client talks to the rentranks REST backend. All business logic lives
// there; this client only normalizes transport and error shapes.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (for testing)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authResponse is the wire shape shared by the login and social-login
// endpoints. user_id can be a string or a number depending on the backend
// revision, so it is decoded loosely.
type authResponse struct {
	UserID      json.Number `json:"user_id"`
	AccessToken string      `json:"access_token"`
	Exp         int64       `json:"exp"`
}

// Login exchanges an email/password pair for a token grant.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenGrant, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	body := map[string]string{
		"email":    emailutil.Normalize(email),
		"password": password,
	}

	resp, err := c.postJSON(ctx, "/auth/login/", body, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogDebugWithFields("backend", "Login rejected", map[string]any{
			"status": resp.StatusCode,
		})
		drain(resp.Body)
		return nil, ErrInvalidCredentials
	}

	grant, err := decodeGrant(resp.Body)
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// SocialLogin exchanges a provider identity for a token grant.
func (c *Client) SocialLogin(ctx context.Context, req SocialLoginRequest) (*TokenGrant, error) {
	resp, err := c.postJSON(ctx, "/auth/social-login/", req, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogWarnWithFields("backend", "Social login rejected", map[string]any{
			"provider": req.Provider,
			"status":   resp.StatusCode,
		})
		drain(resp.Body)
		return nil, ErrUpstreamRejected
	}

	grant, err := decodeGrant(resp.Body)
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// RefreshToken trades the current bearer token for a fresh one. The backend
// issues a new access token and expiry; the user id is unchanged and not
// returned by this endpoint.
func (c *Client) RefreshToken(ctx context.Context, bearer string) (*TokenGrant, error) {
	resp, err := c.postJSON(ctx, "/auth/refresh-token/", nil, bearer)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogWarnWithFields("backend", "Token refresh rejected", map[string]any{
			"status": resp.StatusCode,
		})
		drain(resp.Body)
		return nil, ErrRefreshFailed
	}

	grant, err := decodeGrant(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRefreshFailed, err)
	}
	return grant, nil
}

// Register creates a new account. A successful registration does not sign
// the user in; the caller follows up with Login.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.postJSON(ctx, "/auth/register/", req, "")
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&e)
		if e.Error == "" {
			e.Error = "registration failed"
		}
		return fmt.Errorf("registration failed (status %d): %s", resp.StatusCode, e.Error)
	}

	drain(resp.Body)
	return nil
}

// SearchProfiles queries landlord/property profiles.
func (c *Client) SearchProfiles(ctx context.Context, bearer, query string) ([]Profile, error) {
	var profiles []Profile
	if err := c.getJSON(ctx, "/profiles/search/", url.Values{"q": {query}}, bearer, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile fetches a single profile with its reviews.
func (c *Client) GetProfile(ctx context.Context, bearer, id string) (*Profile, []Review, error) {
	var result struct {
		Profile
		Reviews []Review `json:"reviews"`
	}
	if err := c.getJSON(ctx, "/profiles/"+id+"/", nil, bearer, &result); err != nil {
		return nil, nil, err
	}
	return &result.Profile, result.Reviews, nil
}

// SubmitReview creates a review for a profile.
func (c *Client) SubmitReview(ctx context.Context, bearer string, review ReviewSubmission) error {
	resp, err := c.postJSON(ctx, "/reviews/", review, bearer)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return fmt.Errorf("review submission failed: status %d", resp.StatusCode)
	}

	drain(resp.Body)
	return nil
}

// GetReview fetches a single review, with the profile it belongs to
// when the backend includes it.
func (c *Client) GetReview(ctx context.Context, bearer, id string) (*Review, *Profile, error) {
	var result struct {
		Review
		Profile *Profile `json:"profile"`
	}
	if err := c.getJSON(ctx, "/reviews/"+id+"/", nil, bearer, &result); err != nil {
		return nil, nil, err
	}
	review := result.Review
	if review.ProfileID == "" && result.Profile != nil {
		review.ProfileID = result.Profile.ID
	}
	return &review, result.Profile, nil
}

// UpdateReview replaces the content of an existing review. Ownership is
// enforced by the backend.
func (c *Client) UpdateReview(ctx context.Context, bearer, id string, update ReviewUpdate) error {
	resp, err := c.sendJSON(ctx, http.MethodPut, "/reviews/"+id+"/", update, bearer)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return fmt.Errorf("review update failed: status %d", resp.StatusCode)
	}

	drain(resp.Body)
	return nil
}

// MyReviews lists the authenticated user's reviews.
func (c *Client) MyReviews(ctx context.Context, bearer string) ([]Review, error) {
	var reviews []Review
	if err := c.getJSON(ctx, "/reviews/mine/", nil, bearer, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ClaimProfile claims a profile for the authenticated user.
func (c *Client) ClaimProfile(ctx context.Context, bearer, profileID string) error {
	resp, err := c.postJSON(ctx, "/profiles/"+profileID+"/claim/", nil, bearer)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return fmt.Errorf("profile claim failed: status %d", resp.StatusCode)
	}

	drain(resp.Body)
	return nil
}

const maxBodySize = 1 << 20 // 1MB

func (c *Client) postJSON(ctx context.Context, path string, body any, bearer string) (*http.Response, error) {
	return c.sendJSON(ctx, http.MethodPost, path, body, bearer)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := urlutil.MustJoinPath(c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	return c.httpClient.Do(req)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, bearer string, v any) error {
	url := urlutil.MustJoinPath(c.baseURL, path)
	if len(query) > 0 {
		url += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		drain(resp.Body)
		return fmt.Errorf("backend request failed: status %d", resp.StatusCode)
	}

	data, err := ioutil.ReadAllWithLimit(resp.Body, maxBodySize)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeGrant parses an auth response body and enforces the token invariant:
// a grant must carry a non-empty access token and a positive expiry.
func decodeGrant(body io.Reader) (*TokenGrant, error) {
	data, err := ioutil.ReadAllWithLimit(body, maxBodySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	var ar authResponse
	if err := json.Unmarshal(data, &ar); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	if ar.AccessToken == "" || ar.Exp <= 0 {
		return nil, ErrMalformedResponse
	}

	return &TokenGrant{
		UserID:      ar.UserID.String(),
		AccessToken: ar.AccessToken,
		ExpiresAt:   ar.Exp,
	}, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodySize))
}
