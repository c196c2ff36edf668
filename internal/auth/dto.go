package auth

import (
	"time"

	"github.com/google/uuid"
)

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the issued bearer token plus the admin profile.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Admin       AdminSummary `json:"admin"`
}

// AdminSummary is the public view of an admin account.
type AdminSummary struct {
	ID          uuid.UUID  `json:"id"`
	Username    string     `json:"username"`
	SuperAdmin  bool       `json:"super_admin"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}
