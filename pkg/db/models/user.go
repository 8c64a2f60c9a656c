package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account principal. Password hashing and session mechanics live
// behind pkg/security and pkg/auth.
type User struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Email         string    `gorm:"column:email;size:150;not null;uniqueIndex"`
	Username      string    `gorm:"column:username;size:100"`
	FirstName     string    `gorm:"column:first_name;size:100"`
	LastName      string    `gorm:"column:last_name;size:100"`
	Phone         string    `gorm:"column:phone;size:20"`
	PasswordHash  string    `gorm:"column:password_hash;size:255;not null"`
	Role          string    `gorm:"column:role;size:20;not null;default:'customer'"`
	EmailVerified bool      `gorm:"column:email_verified;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
