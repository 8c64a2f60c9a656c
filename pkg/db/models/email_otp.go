package models

import (
	"time"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
)

// EmailOTP is a short-lived one-time code scoped to an email and purpose.
// A record becomes permanently rejecting once verified, expired, or over the
// attempt cap.
type EmailOTP struct {
	ID         uint             `gorm:"column:id;primaryKey;autoIncrement"`
	Email      string           `gorm:"column:email;size:150;not null;index"`
	Code       string           `gorm:"column:otp_code;size:6;not null"`
	Purpose    enums.OTPPurpose `gorm:"column:purpose;size:50;not null"`
	ExpiresAt  time.Time        `gorm:"column:expires_at;not null"`
	Verified   bool             `gorm:"column:verified;not null;default:false"`
	VerifiedAt *time.Time       `gorm:"column:verified_at"`
	Attempts   int              `gorm:"column:attempts;not null;default:0"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (EmailOTP) TableName() string { return "email_otp" }
