package domain

import "time"

type User struct {
	ID                string     `gorm:"type:uuid;primaryKey" json:"id"`
	Email             string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash      string     `gorm:"not null" json:"-"`
	FirstName         string     `gorm:"not null;default:''" json:"first_name"`
	LastName          *string    `json:"last_name"`
	ProfileImageURL   *string    `json:"profile_image_url"`
	Role              Role       `gorm:"type:text;not null;default:'user'" json:"role"`
	EmailVerified     bool       `gorm:"not null;default:false" json:"email_verified"`
	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`
	PasswordUpdatedAt time.Time  `gorm:"not null;default:now()" json:"password_updated_at"`
	LastLoginAt       *time.Time `json:"last_login_at"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "auth_user" }

// Profile is the public view of a User. It has no password hash field.
type Profile struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        *string    `json:"lastName,omitempty"`
	ProfileImageURL *string    `json:"profileImageUrl,omitempty"`
	Role            Role       `json:"role"`
	EmailVerified   bool       `json:"emailVerified"`
	IsActive        bool       `json:"isActive"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		ProfileImageURL: u.ProfileImageURL,
		Role:            u.Role,
		EmailVerified:   u.EmailVerified,
		IsActive:        u.IsActive,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// ProfileUpdate carries the optional profile fields a user may change.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName       *string
	LastName        *string
	ProfileImageURL *string
}

func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.ProfileImageURL == nil
}
