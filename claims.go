package account

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload of a bearer token. The subject is the
// user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// UserID returns the subject claim
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c != nil && c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c != nil && c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
