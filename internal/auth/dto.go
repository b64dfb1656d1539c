package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/sweetcrumb/storefront/internal/users"
	"github.com/sweetcrumb/storefront/pkg/enums"
)

// SignUpRequest is the sign-up form. FullName seeds the profile.
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name,omitempty" validate:"omitempty,max=200"`
}

// SignInRequest captures the user credentials sent to the sign-in endpoint.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the refresh token; the (possibly expired) access
// token travels in the Authorization header.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Session is what a successful sign-in, sign-up or refresh returns.
type Session struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	ExpiresAt    time.Time      `json:"expires_at"`
	User         *users.UserDTO `json:"user"`
}

// Identity is the caller behind a valid access token.
type Identity struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionChange is delivered to OnSessionChange subscribers.
type SessionChange struct {
	Event     enums.SessionEvent
	UserID    uuid.UUID
	SessionID string
}
