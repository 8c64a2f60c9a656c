package types

import "github.com/shopspring/decimal"

// OrderItem is one purchased line captured at order time. Quantities and unit
// prices are snapshots and never re-read from the catalog.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderItems is the JSON snapshot column stored on an order.
type OrderItems []OrderItem
