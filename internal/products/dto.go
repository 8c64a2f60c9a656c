package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

// CreateInput holds the validated payload to create a catalog entry.
type CreateInput struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	ImageURL    *string
}

// UpdateInput holds optional mutation values; nil fields are untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
}

// ListInput narrows and paginates catalog listings.
type ListInput struct {
	Params   pagination.Params
	Category string
	Search   string
}

// ProductList is one page of catalog entries.
type ProductList struct {
	Items []models.Product `json:"items"`
	Meta  pagination.Meta  `json:"meta"`
}

// RatingSummary aggregates reviews for a product.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// Detail is a product with its rating aggregate and recent reviews.
type Detail struct {
	Product models.Product  `json:"product"`
	Rating  RatingSummary   `json:"rating"`
	Reviews []models.Review `json:"reviews"`
}

// RateOrderInput records reviews for the products of a delivered order.
type RateOrderInput struct {
	OrderID  uint
	UserID   uuid.UUID
	Username string
	Rating   int
	Comment  string
}
