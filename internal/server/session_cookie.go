package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rentranks/rentranks-front/internal/cookie"
	"github.com/rentranks/rentranks-front/internal/crypto"
)

// browserSession is the payload carried in the signed session cookie.
// The browser only ever holds the opaque session ID; bearer tokens stay
// server-side in the session store.
type browserSession struct {
	SessionID string `json:"sid"`
}

// SessionCookies issues and verifies the signed session cookie.
type SessionCookies struct {
	signer crypto.TokenSigner
	maxAge time.Duration
}

// NewSessionCookies creates a session cookie helper. maxAge bounds both
// the cookie lifetime and the signed token's validity.
func NewSessionCookies(signingKey []byte, maxAge time.Duration) *SessionCookies {
	return &SessionCookies{
		signer: crypto.NewTokenSigner(signingKey, maxAge),
		maxAge: maxAge,
	}
}

// Issue generates a fresh session ID, signs it, and sets the cookie.
func (c *SessionCookies) Issue(w http.ResponseWriter) (string, error) {
	sessionID, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}

	token, err := c.signer.Sign(browserSession{SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}

	cookie.SetSession(w, token, c.maxAge)
	return sessionID, nil
}

// Verify validates a cookie value and returns the session ID inside it.
func (c *SessionCookies) Verify(value string) (string, error) {
	var payload browserSession
	if err := c.signer.Verify(value, &payload); err != nil {
		return "", err
	}
	if payload.SessionID == "" {
		return "", fmt.Errorf("session cookie has no session id")
	}
	return payload.SessionID, nil
}
