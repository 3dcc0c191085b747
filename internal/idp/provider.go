package idp

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// UserInfo represents user information from an identity provider.
type UserInfo struct {
	ProviderType  string `json:"provider_type"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Provider abstracts identity provider operations. Implementations return
// identity facts only; the sign-in decision belongs to the backend, which
// re-validates the provider access token server-side.
type Provider interface {
	// Type returns the provider type identifier (e.g. "google", "facebook").
	Type() string

	// AuthURL generates the authorization URL for the OAuth flow.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)

	// UserInfo fetches user information for the given token.
	UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// Registry holds the configured identity providers, keyed by type.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers. Provider types must be unique.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider)
	for _, p := range list {
		m[p.Type()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by type or an error if not registered.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown identity provider: %s", name)
	}
	return p, nil
}
