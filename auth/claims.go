package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClass partitions bearer tokens into the three disjoint kinds the
// platform issues. Each class is signed and verified under its own key, and a
// codec refuses tokens stamped with another class even when key material
// happens to collide.
type TokenClass string

const (
	TokenClassAccess  TokenClass = "access"
	TokenClassRefresh TokenClass = "refresh"
	TokenClassReset   TokenClass = "reset"
)

// AuthClaims represents verified token claims
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
// Access tokens carry UID and UserRole; refresh and reset tokens carry only
// the registered subject (username and email respectively).
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string     `json:"user_id,omitempty"`
	UserRole string     `json:"role,omitempty"`
	Class    TokenClass `json:"cls,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID claim, falling back to the subject
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the role claim
func (c *JWTClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func registeredSubject(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: sub}
}
