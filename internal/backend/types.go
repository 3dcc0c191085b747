package backend

// TokenGrant is the normalized result of a successful auth call.
// ExpiresAt is seconds since epoch, as issued by the backend.
type TokenGrant struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"exp"`
}

// SocialLoginRequest is the payload for the social-login endpoint.
// GoogleID is only set for the google provider.
type SocialLoginRequest struct {
	Provider    string `json:"provider"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
	GoogleID    string `json:"google_id,omitempty"`
}

// RegisterRequest is the payload for the registration endpoint.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// Profile is a landlord or property profile as returned by the backend.
type Profile struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Claimed   bool    `json:"claimed"`
	AvgRating float64 `json:"avg_rating"`
}

// Review is a tenant review of a profile. CanEdit is set by the backend
// when the review belongs to the requesting user.
type Review struct {
	ID          string `json:"id"`
	ProfileID   string `json:"profile_id"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	IsAnonymous bool   `json:"is_anonymous"`
	CanEdit     bool   `json:"can_edit"`
	CreatedAt   string `json:"created_at"`
}

// ReviewSubmission is the payload for creating a review.
type ReviewSubmission struct {
	ProfileID   string `json:"profile_id"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// ReviewUpdate is the payload for editing an existing review. The
// profile binding never changes on edit.
type ReviewUpdate struct {
	Rating      int    `json:"rating"`
	Comment     string `json:"comment"`
	IsAnonymous bool   `json:"is_anonymous"`
}
