package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is the default role assigned at registration
	RoleUser UserRole = "user"
	// RoleAdmin can manage other accounts
	RoleAdmin UserRole = "admin"
)

// User is the user model. The four session columns track the single live
// refresh session and the single live password reset request; a token value
// that does not byte-match its column is invalid regardless of signature.
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username           string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone              string     `bun:"phone" json:"phone,omitempty"`
	PasswordHash       string     `bun:"password_hash" json:"-"`
	Role               UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	AvatarURL          string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	RefreshToken       *string    `bun:"refresh_token" json:"-"`
	RefreshTokenExpiry *time.Time `bun:"refresh_token_expiry" json:"-"`
	ResetToken         *string    `bun:"reset_token" json:"-"`
	ResetTokenExpiry   *time.Time `bun:"reset_token_expiry" json:"-"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = RoleUser
	}
}
