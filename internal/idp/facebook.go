package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

// FacebookProvider implements the Provider interface for Facebook Login.
// Facebook's graph API nests the profile picture and does not expose an
// email-verified flag; an email returned by the API is considered verified.
type FacebookProvider struct {
	config      oauth2.Config
	userInfoURL string
}

type facebookUserInfoResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// NewFacebookProvider creates a new Facebook OAuth provider.
func NewFacebookProvider(clientID, clientSecret, redirectURI string) *FacebookProvider {
	return &FacebookProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		userInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture",
	}
}

// Type returns the provider type.
func (p *FacebookProvider) Type() string {
	return "facebook"
}

// AuthURL generates the authorization URL.
func (p *FacebookProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *FacebookProvider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.config.Exchange(ctx, code)
}

// UserInfo fetches user information from the Facebook graph API.
func (p *FacebookProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	client := p.config.Client(ctx, token)

	resp, err := client.Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var fbUser facebookUserInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&fbUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if fbUser.ID == "" || fbUser.Email == "" {
		return nil, fmt.Errorf("facebook userinfo missing required fields")
	}

	return &UserInfo{
		ProviderType:  "facebook",
		Subject:       fbUser.ID,
		Email:         fbUser.Email,
		EmailVerified: true,
		Name:          fbUser.Name,
		Picture:       fbUser.Picture.Data.URL,
	}, nil
}
