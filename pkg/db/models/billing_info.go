package models

import (
	"time"

	"github.com/google/uuid"
)

// BillingInfo is a user's saved billing address; at most one row per user is
// flagged primary.
type BillingInfo struct {
	ID     uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	FirstName     string `gorm:"column:first_name;size:100"`
	LastName      string `gorm:"column:last_name;size:100"`
	Email         string `gorm:"column:email;size:150;not null"`
	Phone         string `gorm:"column:phone;size:20"`
	StreetAddress string `gorm:"column:street_address;size:255"`
	City          string `gorm:"column:city;size:100"`
	State         string `gorm:"column:state;size:100"`
	ZipCode       string `gorm:"column:zip_code;size:20"`
	Country       string `gorm:"column:country;size:100"`

	IsPrimary bool `gorm:"column:is_primary;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BillingInfo) TableName() string { return "billing_info" }
