package auth

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	RegisterPath = "/api/auth/register/"
	LoginPath    = "/api/auth/login/"
	RefreshPath  = "/api/auth/refresh/"
)

// IsAuthEndpoint reports whether path targets one of the unauthenticated auth endpoints.
// A 401 from these never triggers token recovery.
func IsAuthEndpoint(path string) bool {
	return strings.HasPrefix(path, LoginPath) ||
		strings.HasPrefix(path, RegisterPath) ||
		strings.HasPrefix(path, RefreshPath)
}

// Member is the public profile of a marketplace user.
type Member struct {
	ID       int64     `json:"id" yaml:"id"`
	Username string    `json:"username" yaml:"username"`
	Email    string    `json:"email" yaml:"email"`
	Phone    string    `json:"phone,omitempty" yaml:"phone,omitempty"`
	About    string    `json:"about,omitempty" yaml:"about,omitempty"`
	JoinedAt time.Time `json:"joined_at" yaml:"joined_at"`
}

// LoginRequest represents the login API request
type LoginRequest struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// LoginResponse represents the login API response
type LoginResponse struct {
	Access  string  `json:"access"`
	Refresh string  `json:"refresh"`
	Member  *Member `json:"member,omitempty"`
	// Raw is the response body as received.
	Raw json.RawMessage `json:"-"`
}

// RegisterRequest represents the registration API request
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty" validate:"max=50"`
	About    string `json:"about,omitempty"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterResponse is the created member. Access and Refresh are only set
// by servers that log the new member in straight away.
type RegisterResponse struct {
	Member
	Access  string          `json:"access,omitempty"`
	Refresh string          `json:"refresh,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// RefreshRequest represents the token refresh API request
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse represents the token refresh API response
type RefreshResponse struct {
	Access string          `json:"access"`
	Raw    json.RawMessage `json:"-"`
}
