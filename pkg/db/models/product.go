package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. ProductID is the public sequential PRD-NNN
// identity assigned at creation.
type Product struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID string `gorm:"column:product_id;size:20;not null;uniqueIndex"`

	Name        string          `gorm:"column:name;size:200;not null"`
	Description string          `gorm:"column:description;type:text"`
	Category    string          `gorm:"column:category;size:100;index"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Stock       int             `gorm:"column:stock;not null;default:0"`
	ImageURL    *string         `gorm:"column:image_url;size:500"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
