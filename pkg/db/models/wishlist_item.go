package models

import (
	"time"

	"github.com/google/uuid"
)

// WishlistItem marks a product a user has saved for later.
type WishlistItem struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_wishlist_user_product"`
	ProductID string    `gorm:"column:product_id;size:20;not null;uniqueIndex:idx_wishlist_user_product"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (WishlistItem) TableName() string { return "wishlist_items" }
