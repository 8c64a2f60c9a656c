package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is one product in a user's cart.
type CartItem struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_cart_user_product"`
	ProductID string    `gorm:"column:product_id;size:20;not null;uniqueIndex:idx_cart_user_product"`
	Qty       int       `gorm:"column:qty;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
