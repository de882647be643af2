package local

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the account lifecycle status
type UserStatus = string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is the account model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Status         UserStatus     `bun:"status,notnull" json:"status,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// IsDisabled reports whether the account may not sign in
func (u *User) IsDisabled() bool {
	return u.Status == UserStatusDisabled
}

func (u *User) ensureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}
