package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a product rating; Verified marks ratings that came from a
// delivered order.
type Review struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID   string    `gorm:"column:product_id;size:20;not null;index"`
	Username    string    `gorm:"column:username;size:100"`
	Rating      int       `gorm:"column:rates;not null"`
	Description string    `gorm:"column:description;size:500"`
	Verified    bool      `gorm:"column:verified;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Review) TableName() string { return "reviews" }
