package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus represents the lifecycle status of a user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusPending   UserStatus = "pending"   // Awaiting email verification
	UserStatusSuspended UserStatus = "suspended" // Admin suspended
	UserStatusDeleted   UserStatus = "deleted"   // Soft deleted
)

// IsValid checks if the status is a valid user status.
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusPending, UserStatusSuspended, UserStatusDeleted:
		return true
	default:
		return false
	}
}

// User represents a registered user.
//
// Plan mirrors the plan of the user's current subscription and is kept in
// sync by the billing module on every subscription transition.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"not null"`
	AvatarURL string    `json:"avatar_url,omitempty" gorm:"column:avatar_url"`

	// Authentication
	PasswordHash *string `json:"-" gorm:"column:password_hash"`

	// Billing
	Plan string `json:"plan" gorm:"not null;default:free"`

	// Status
	Status        UserStatus `json:"status" gorm:"default:active"`
	EmailVerified bool       `json:"email_verified" gorm:"column:email_verified;default:false"`
	IsAdmin       bool       `json:"is_admin" gorm:"column:is_admin;default:false"`

	// Timestamps
	CreatedAt time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt *time.Time `json:"-" gorm:"column:deleted_at;index"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}
