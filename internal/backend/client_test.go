package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":      42,
			"access_token": "tok1",
			"exp":          1900000000,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	grant, err := client.Login(context.Background(), "Alice@Example.com", "hunter2")
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", gotBody["email"], "email is normalized before it goes upstream")
	assert.Equal(t, "hunter2", gotBody["password"])
	assert.Equal(t, "42", grant.UserID)
	assert.Equal(t, "tok1", grant.AccessToken)
	assert.Equal(t, int64(1900000000), grant.ExpiresAt)
}

func TestLoginStringUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id": "abc-123", "access_token": "tok1", "exp": 1900000000}`))
	}))
	defer srv.Close()

	grant, err := NewClient(srv.URL).Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "abc-123", grant.UserID)
}

func TestLoginMissingCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Login(context.Background(), "", "pw")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = client.Login(context.Background(), "a@b.com", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	assert.False(t, called, "missing credentials must not reach the backend")
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "invalid credentials"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Login(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json at all`},
		{"empty token", `{"user_id": 1, "access_token": "", "exp": 1900000000}`},
		{"missing exp", `{"user_id": 1, "access_token": "tok1"}`},
		{"zero exp", `{"user_id": 1, "access_token": "tok1", "exp": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Login(context.Background(), "a@b.com", "pw")
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestLoginBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	_, err := NewClient(srv.URL).Login(context.Background(), "a@b.com", "pw")
	assert.ErrorIs(t, err, ErrBackendUnreachable)
}

func TestSocialLogin(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/social-login/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id":      "7",
			"access_token": "tok-social",
			"exp":          1900000000,
		})
	}))
	defer srv.Close()

	grant, err := NewClient(srv.URL).SocialLogin(context.Background(), SocialLoginRequest{
		Provider:    "google",
		Email:       "bob@example.com",
		Name:        "Bob",
		AccessToken: "provider-token",
		GoogleID:    "google-sub",
	})
	require.NoError(t, err)

	assert.Equal(t, "google", gotBody["provider"])
	assert.Equal(t, "google-sub", gotBody["google_id"])
	assert.Equal(t, "tok-social", grant.AccessToken)
}

func TestSocialLoginOmitsEmptyGoogleID(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user_id": 1, "access_token": "t", "exp": 1900000000,
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SocialLogin(context.Background(), SocialLoginRequest{
		Provider:    "facebook",
		Email:       "c@example.com",
		AccessToken: "fb-token",
	})
	require.NoError(t, err)

	_, present := raw["google_id"]
	assert.False(t, present, "google_id must be omitted for non-google providers")
}

func TestSocialLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SocialLogin(context.Background(), SocialLoginRequest{
		Provider: "google", Email: "a@b.com", AccessToken: "t",
	})
	assert.ErrorIs(t, err, ErrUpstreamRejected)
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/refresh-token/", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok2",
			"exp":          1900000000,
		})
	}))
	defer srv.Close()

	grant, err := NewClient(srv.URL).RefreshToken(context.Background(), "tok1")
	require.NoError(t, err)
	assert.Equal(t, "tok2", grant.AccessToken)
	assert.Equal(t, int64(1900000000), grant.ExpiresAt)
}

func TestRefreshTokenFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"rejected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"access_token": ""}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL).RefreshToken(context.Background(), "tok1")
			assert.ErrorIs(t, err, ErrRefreshFailed)
		})
	}
}

func TestRegister(t *testing.T) {
	var got RegisterRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Register(context.Background(), RegisterRequest{
		Email: "new@example.com", Password: "pw", FirstName: "New", LastName: "User", Role: "tenant",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "tenant", got.Role)
}

func TestSearchProfiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/search/", r.URL.Path)
		assert.Equal(t, "main st", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`[{"id": "p1", "name": "Main St Properties", "avg_rating": 4.2}]`))
	}))
	defer srv.Close()

	profiles, err := NewClient(srv.URL).SearchProfiles(context.Background(), "tok1", "main st")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "p1", profiles[0].ID)
	assert.InDelta(t, 4.2, profiles[0].AvgRating, 0.001)
}

func TestSearchProfilesAnonymous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	profiles, err := NewClient(srv.URL).SearchProfiles(context.Background(), "", "anything")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestGetProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/profiles/p1/", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "p1", "name": "Main St Properties", "claimed": true,
			"reviews": [{"id": "r1", "profile_id": "p1", "rating": 5, "comment": "Great"}]
		}`))
	}))
	defer srv.Close()

	profile, reviews, err := NewClient(srv.URL).GetProfile(context.Background(), "", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Main St Properties", profile.Name)
	assert.True(t, profile.Claimed)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5, reviews[0].Rating)
}

func TestGetProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).GetProfile(context.Background(), "", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitReview(t *testing.T) {
	var got ReviewSubmission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews/", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).SubmitReview(context.Background(), "tok1", ReviewSubmission{
		ProfileID: "p1", Rating: 4, Comment: "Responsive landlord", IsAnonymous: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProfileID)
	assert.Equal(t, 4, got.Rating)
	assert.True(t, got.IsAnonymous)
}

func TestGetReview(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews/r1/", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{
			"id": "r1", "rating": 2, "comment": "Slow on repairs",
			"is_anonymous": true, "can_edit": true,
			"profile": {"id": "p1", "name": "Main St Properties"}
		}`))
	}))
	defer srv.Close()

	review, profile, err := NewClient(srv.URL).GetReview(context.Background(), "tok1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", review.ID)
	assert.Equal(t, 2, review.Rating)
	assert.True(t, review.IsAnonymous)
	assert.True(t, review.CanEdit)
	assert.Equal(t, "p1", review.ProfileID, "the profile id is taken from the nested profile")
	require.NotNil(t, profile)
	assert.Equal(t, "Main St Properties", profile.Name)
}

func TestGetReviewNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := NewClient(srv.URL).GetReview(context.Background(), "tok1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateReview(t *testing.T) {
	var got ReviewUpdate
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/reviews/r1/", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	err := NewClient(srv.URL).UpdateReview(context.Background(), "tok1", "r1", ReviewUpdate{
		Rating: 5, Comment: "They fixed everything after all", IsAnonymous: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Rating)
	assert.Equal(t, "They fixed everything after all", got.Comment)
	assert.True(t, got.IsAnonymous)
}

func TestUpdateReviewNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).UpdateReview(context.Background(), "tok1", "gone", ReviewUpdate{Rating: 3})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMyReviews(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reviews/mine/", r.URL.Path)
		assert.Equal(t, "Bearer tok1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id": "r1", "rating": 3}]`))
	}))
	defer srv.Close()

	reviews, err := NewClient(srv.URL).MyReviews(context.Background(), "tok1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 3, reviews[0].Rating)
}

func TestClaimProfile(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/profiles/p1/claim/", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(srv.URL).ClaimProfile(context.Background(), "tok1", "p1"))
	assert.Equal(t, int64(1), calls.Load())
}
