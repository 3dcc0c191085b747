package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentranks/rentranks-front/internal/backend"
)

type stubExchanger struct {
	mu sync.Mutex

	loginGrant *backend.TokenGrant
	loginErr   error
	loginCalls int

	socialGrant   *backend.TokenGrant
	socialErr     error
	lastSocialReq backend.SocialLoginRequest

	refreshGrant *backend.TokenGrant
	refreshErr   error
	refreshCalls atomic.Int64
	refreshDelay time.Duration
}

func (s *stubExchanger) Login(ctx context.Context, email, password string) (*backend.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginCalls++
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.loginGrant, nil
}

func (s *stubExchanger) SocialLogin(ctx context.Context, req backend.SocialLoginRequest) (*backend.TokenGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSocialReq = req
	if s.socialErr != nil {
		return nil, s.socialErr
	}
	return s.socialGrant, nil
}

func (s *stubExchanger) RefreshToken(ctx context.Context, bearerToken string) (*backend.TokenGrant, error) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshGrant, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSignInPassword(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{
		loginGrant: &backend.TokenGrant{
			UserID:      "42",
			AccessToken: "tok1",
			ExpiresAt:   now.Add(time.Hour).Unix(),
		},
	}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	proj, err := mgr.SignIn(context.Background(), "sess-1", PasswordIdentity{
		Email:    "  Alice@Example.COM ",
		Password: "hunter2",
	})
	require.NoError(t, err)

	assert.True(t, proj.Authenticated)
	assert.Equal(t, "42", proj.UserID)
	assert.Equal(t, "alice@example.com", proj.Email)
	assert.Equal(t, "tok1", proj.BearerToken)
	assert.Equal(t, "credentials", proj.Provider)

	rec, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok1", rec.BearerToken)
}

func TestSignInMissingCredentials(t *testing.T) {
	ex := &stubExchanger{}
	store := NewMemoryStore()
	mgr := NewManager(ex, store)

	_, err := mgr.SignIn(context.Background(), "sess-1", PasswordIdentity{Email: "a@b.com"})
	assert.ErrorIs(t, err, backend.ErrMissingCredentials)
	assert.Equal(t, 0, ex.loginCalls, "empty credentials must not reach the backend")

	_, err = mgr.SignIn(context.Background(), "sess-1", PasswordIdentity{Password: "x"})
	assert.ErrorIs(t, err, backend.ErrMissingCredentials)
}

func TestSignInRejectedLeavesStoreUntouched(t *testing.T) {
	ex := &stubExchanger{loginErr: backend.ErrInvalidCredentials}
	store := NewMemoryStore()
	mgr := NewManager(ex, store)

	proj, err := mgr.SignIn(context.Background(), "sess-1", PasswordIdentity{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, backend.ErrInvalidCredentials)
	assert.False(t, proj.Authenticated)

	rec, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "failed sign-in must not leave a record behind")
}

func TestSignInGoogleSetsGoogleID(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{
		socialGrant: &backend.TokenGrant{
			UserID:      "7",
			AccessToken: "tok-g",
			ExpiresAt:   now.Add(time.Hour).Unix(),
		},
	}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	proj, err := mgr.SignIn(context.Background(), "sess-g", ProviderIdentity{
		Provider:    "google",
		Email:       "Bob@Example.com",
		Name:        "Bob",
		Subject:     "google-sub-123",
		AccessToken: "provider-token",
	})
	require.NoError(t, err)

	assert.Equal(t, "google-sub-123", ex.lastSocialReq.GoogleID)
	assert.Equal(t, "bob@example.com", ex.lastSocialReq.Email)
	assert.Equal(t, "google", proj.Provider)
}

func TestSignInFacebookOmitsGoogleID(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{
		socialGrant: &backend.TokenGrant{
			UserID:      "8",
			AccessToken: "tok-f",
			ExpiresAt:   now.Add(time.Hour).Unix(),
		},
	}
	mgr := NewManager(ex, NewMemoryStore(), WithClock(fixedClock(now)))

	_, err := mgr.SignIn(context.Background(), "sess-f", ProviderIdentity{
		Provider:    "facebook",
		Email:       "carol@example.com",
		Name:        "Carol",
		Subject:     "fb-456",
		AccessToken: "fb-token",
	})
	require.NoError(t, err)
	assert.Empty(t, ex.lastSocialReq.GoogleID)
}

func TestSessionFreshTokenNotRefreshed(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
		UserID:      "42",
		Email:       "alice@example.com",
		BearerToken: "tok1",
		ExpiresAt:   now.Add(time.Hour).Unix(),
		Provider:    "credentials",
	}, time.Hour))

	proj, err := mgr.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, proj.Authenticated)
	assert.Equal(t, "tok1", proj.BearerToken)
	assert.Equal(t, int64(0), ex.refreshCalls.Load())
}

func TestSessionUnknownIDIsSignedOut(t *testing.T) {
	mgr := NewManager(&stubExchanger{}, NewMemoryStore())

	proj, err := mgr.Session(context.Background(), "no-such-session")
	require.NoError(t, err)
	assert.False(t, proj.Authenticated)
	assert.Empty(t, proj.BearerToken)
}

func TestSessionExpiredTokenRefreshed(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{
		refreshGrant: &backend.TokenGrant{
			AccessToken: "tok2",
			ExpiresAt:   now.Add(time.Hour).Unix(),
		},
	}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
		UserID:      "42",
		Email:       "alice@example.com",
		BearerToken: "tok1",
		ExpiresAt:   now.Add(-time.Minute).Unix(),
		Provider:    "credentials",
	}, time.Hour))

	proj, err := mgr.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, proj.Authenticated)
	assert.Equal(t, "tok2", proj.BearerToken)
	assert.Equal(t, "42", proj.UserID, "identity fields survive a refresh")
	assert.Equal(t, "credentials", proj.Provider)

	rec, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok2", rec.BearerToken)
}

func TestSessionRefreshBoundary(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		expiresIn   time.Duration
		wantRefresh bool
	}{
		{"just inside buffer", 299 * time.Second, true},
		{"exactly at buffer", 300 * time.Second, true},
		{"just outside buffer", 301 * time.Second, false},
		{"already expired", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &stubExchanger{
				refreshGrant: &backend.TokenGrant{
					AccessToken: "tok2",
					ExpiresAt:   now.Add(time.Hour).Unix(),
				},
			}
			store := NewMemoryStore()
			mgr := NewManager(ex, store, WithClock(fixedClock(now)))

			require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
				UserID:      "42",
				BearerToken: "tok1",
				ExpiresAt:   now.Add(tt.expiresIn).Unix(),
			}, time.Hour))

			_, err := mgr.Session(context.Background(), "sess-1")
			require.NoError(t, err)

			if tt.wantRefresh {
				assert.Equal(t, int64(1), ex.refreshCalls.Load())
			} else {
				assert.Equal(t, int64(0), ex.refreshCalls.Load())
			}
		})
	}
}

func TestSessionRefreshFailureSignsOut(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{refreshErr: backend.ErrRefreshFailed}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
		UserID:      "42",
		BearerToken: "tok1",
		ExpiresAt:   now.Add(-time.Minute).Unix(),
	}, time.Hour))

	proj, err := mgr.Session(context.Background(), "sess-1")
	require.NoError(t, err, "a failed refresh demotes silently, it does not error")
	assert.False(t, proj.Authenticated)

	rec, err := store.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, rec, "record must be deleted after refresh failure")

	// A later read stays signed out without another upstream attempt.
	proj, err = mgr.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, proj.Authenticated)
	assert.Equal(t, int64(1), ex.refreshCalls.Load())
}

func TestSessionConcurrentRefreshSingleFlight(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{
		refreshGrant: &backend.TokenGrant{
			AccessToken: "tok2",
			ExpiresAt:   now.Add(time.Hour).Unix(),
		},
		refreshDelay: 200 * time.Millisecond,
	}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
		UserID:      "42",
		BearerToken: "tok1",
		ExpiresAt:   now.Add(-time.Minute).Unix(),
	}, time.Hour))

	const readers = 8
	var wg sync.WaitGroup
	results := make([]Projection, readers)
	errs := make([]error, readers)

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = mgr.Session(context.Background(), "sess-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < readers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Authenticated)
		assert.Equal(t, "tok2", results[i].BearerToken)
	}
	assert.Equal(t, int64(1), ex.refreshCalls.Load(), "concurrent reads must share one refresh")
}

func TestSessionRefreshOtherSessionsUnaffected(t *testing.T) {
	now := time.Now()
	ex := &stubExchanger{refreshErr: backend.ErrRefreshFailed}
	store := NewMemoryStore()
	mgr := NewManager(ex, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-bad", TokenRecord{
		UserID:      "1",
		BearerToken: "tok-bad",
		ExpiresAt:   now.Add(-time.Minute).Unix(),
	}, time.Hour))
	require.NoError(t, store.Put(context.Background(), "sess-good", TokenRecord{
		UserID:      "2",
		BearerToken: "tok-good",
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}, time.Hour))

	proj, err := mgr.Session(context.Background(), "sess-bad")
	require.NoError(t, err)
	assert.False(t, proj.Authenticated)

	proj, err = mgr.Session(context.Background(), "sess-good")
	require.NoError(t, err)
	assert.True(t, proj.Authenticated)
	assert.Equal(t, "tok-good", proj.BearerToken)
}

func TestSignOutIdempotent(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	mgr := NewManager(&stubExchanger{}, store, WithClock(fixedClock(now)))

	require.NoError(t, store.Put(context.Background(), "sess-1", TokenRecord{
		UserID:      "42",
		BearerToken: "tok1",
		ExpiresAt:   now.Add(time.Hour).Unix(),
	}, time.Hour))

	require.NoError(t, mgr.SignOut(context.Background(), "sess-1"))
	require.NoError(t, mgr.SignOut(context.Background(), "sess-1"))
	require.NoError(t, mgr.SignOut(context.Background(), "never-existed"))

	proj, err := mgr.Session(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, proj.Authenticated)
}
