package session

// Identity is the input to a sign-in attempt. It is a closed sum:
// PasswordIdentity for the credentials flow, ProviderIdentity for
// identity-provider flows. Adding a variant without handling it in
// Manager.SignIn is a compile-time dead end, not a silent fallthrough.
type Identity interface {
	isIdentity()
}

// PasswordIdentity is an email/password pair entered by the user.
type PasswordIdentity struct {
	Email    string
	Password string
}

func (PasswordIdentity) isIdentity() {}

// ProviderIdentity is a verified identity-provider profile plus the
// provider access token the backend re-validates.
type ProviderIdentity struct {
	Provider    string // "google" or "facebook"
	Email       string
	Name        string
	Subject     string // provider-scoped user id
	AccessToken string
}

func (ProviderIdentity) isIdentity() {}
