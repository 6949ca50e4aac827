package model

import (
	"time"
)

// User is an account holder. PasswordHash never leaves the server.
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string     `gorm:"size:50;not null;uniqueIndex" json:"username"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FirstName    *string    `gorm:"size:50" json:"first_name"`
	LastName     *string    `gorm:"size:50" json:"last_name"`
	AvatarURL    *string    `gorm:"size:500" json:"avatar_url"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserPreferences holds per-user display settings.
type UserPreferences struct {
	UserID    uint64    `gorm:"primaryKey" json:"user_id"`
	Theme     string    `gorm:"size:20;not null;default:system" json:"theme"`
	Language  string    `gorm:"size:10;not null;default:en" json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body of PUT /auth/profile.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	AvatarURL *string `json:"avatarUrl"`
}

// ChangePasswordRequest is the body of PUT /auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdatePreferencesRequest is the body of PUT /auth/preferences.
type UpdatePreferencesRequest struct {
	Theme    *string `json:"theme"`
	Language *string `json:"language"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
	Token   string `json:"token"`
}
