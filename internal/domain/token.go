package domain

import "time"

// Reasons recorded when a refresh token leaves the ISSUED state.
const (
	RevokeRotated         = "rotated"
	RevokeLogout          = "logout"
	RevokeDeactivated     = "deactivated"
	RevokePasswordChanged = "password_changed"
)

// RefreshToken represents a persisted refresh session.
type RefreshToken struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string     `gorm:"type:uuid;index;not null" json:"user_id"`
	TokenHash     string     `gorm:"type:text;uniqueIndex;not null" json:"-"`
	ExpiresAt     time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt     *time.Time `json:"revoked_at"`
	RevokedReason *string    `json:"revoked_reason"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (RefreshToken) TableName() string { return "auth_refresh_token" }

// Active reports whether the token can still be redeemed at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type TokenPurpose string

const (
	PurposePasswordReset     TokenPurpose = "password_reset"
	PurposeEmailVerification TokenPurpose = "email_verification"
)

// ActionToken is a single-use token mailed to the user. It is deleted on use.
type ActionToken struct {
	ID        string       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string       `gorm:"type:uuid;index;not null" json:"user_id"`
	Purpose   TokenPurpose `gorm:"type:text;not null" json:"purpose"`
	TokenHash string       `gorm:"type:text;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time    `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (ActionToken) TableName() string { return "auth_action_token" }
