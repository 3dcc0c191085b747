package server

import (
	_ "embed"
	"html/template"

	"github.com/rentranks/rentranks-front/internal/backend"
	"github.com/rentranks/rentranks-front/internal/session"
)

//go:embed templates/home.html
var homeTemplateHTML string

//go:embed templates/login.html
var loginTemplateHTML string

//go:embed templates/register.html
var registerTemplateHTML string

//go:embed templates/search.html
var searchTemplateHTML string

//go:embed templates/profile.html
var profileTemplateHTML string

//go:embed templates/submit_review.html
var submitReviewTemplateHTML string

//go:embed templates/edit_review.html
var editReviewTemplateHTML string

//go:embed templates/my_reviews.html
var myReviewsTemplateHTML string

var homeTemplate = template.Must(template.New("home").Parse(homeTemplateHTML))
var loginTemplate = template.Must(template.New("login").Parse(loginTemplateHTML))
var registerTemplate = template.Must(template.New("register").Parse(registerTemplateHTML))
var searchTemplate = template.Must(template.New("search").Parse(searchTemplateHTML))
var profileTemplate = template.Must(template.New("profile").Parse(profileTemplateHTML))
var submitReviewTemplate = template.Must(template.New("submit_review").Parse(submitReviewTemplateHTML))
var editReviewTemplate = template.Must(template.New("edit_review").Parse(editReviewTemplateHTML))
var myReviewsTemplate = template.Must(template.New("my_reviews").Parse(myReviewsTemplateHTML))

// PageData carries the session view shared by every page.
type PageData struct {
	Session session.Projection
}

// LoginPageData represents the data for the sign-in page
type LoginPageData struct {
	PageData
	Providers []string
	Error     string
	ReturnTo  string
}

// RegisterPageData represents the data for the registration page
type RegisterPageData struct {
	PageData
	Error string
}

// SearchPageData represents the data for the search results page
type SearchPageData struct {
	PageData
	Query    string
	Profiles []backend.Profile
	Error    string
}

// ProfilePageData represents the data for a single profile page
type ProfilePageData struct {
	PageData
	Profile *backend.Profile
	Reviews []backend.Review
	Error   string
}

// SubmitReviewPageData represents the data for the review form page
type SubmitReviewPageData struct {
	PageData
	ProfileID string
	Error     string
	Submitted bool
}

// EditReviewPageData represents the data for the review edit page
type EditReviewPageData struct {
	PageData
	Review  *backend.Review
	Profile *backend.Profile
	Error   string
}

// MyReviewsPageData represents the data for the user's reviews page
type MyReviewsPageData struct {
	PageData
	Reviews []backend.Review
	Error   string
}
