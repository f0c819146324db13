package domain

import (
	"slices"
	"time"
)

const RoleUser = "user"

// Identity is a registered user account.
type Identity struct {
	ID                    string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username              string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"username"`
	Email                 string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash          string         `gorm:"not null" json:"-"`
	Roles                 []string       `gorm:"type:text;serializer:json;not null" json:"roles"`
	IsVerified            bool           `gorm:"not null" json:"is_verified"`
	VerificationCodeHash  *string        `json:"-"`
	VerificationExpiresAt *time.Time     `json:"-"`
	VerificationAttempts  int            `gorm:"not null" json:"-"`
	AvatarPath            *string        `json:"avatar_path,omitempty"`
	PasswordUpdatedAt     time.Time      `json:"password_updated_at"`
	LastLoginAt           *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt             time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Sessions              []SessionToken `gorm:"foreignKey:IdentityID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Identity) TableName() string { return "identity" }

func (i *Identity) HasRole(role string) bool { return slices.Contains(i.Roles, role) }

// SessionToken is the server-side record of an issued bearer token. Only the
// SHA-256 of the token string is kept.
type SessionToken struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	IdentityID string     `gorm:"type:varchar(36);index;not null" json:"identity_id"`
	TokenHash  string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	Active     bool       `gorm:"not null" json:"active"`
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SessionToken) TableName() string { return "session_token" }

// Usable reports whether the record still authorizes requests at now.
func (s *SessionToken) Usable(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}
