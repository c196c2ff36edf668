package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting an admin JWT.
type AccessTokenPayload struct {
	AdminID    uuid.UUID
	Username   string
	SuperAdmin bool
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to admin clients.
type AccessTokenClaims struct {
	AdminID    uuid.UUID `json:"admin_id"`
	Username   string    `json:"username"`
	SuperAdmin bool      `json:"super_admin,omitempty"`
	jwt.RegisteredClaims
}
