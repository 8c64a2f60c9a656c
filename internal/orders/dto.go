package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

// ItemInput is one requested order line at placement time.
type ItemInput struct {
	ProductID string
	Qty       int
}

// CreateInput captures everything needed to place an order. Prices are never
// taken from the client; the catalog row at placement time is authoritative.
type CreateInput struct {
	UserID        uuid.UUID
	Items         []ItemInput
	BillingInfoID *uint
	PaymentMethod enums.PaymentMethod
}

// UpdateStatusInput moves an order along the status graph. Shipping fields are
// only applied when provided.
type UpdateStatusInput struct {
	OrderID           uint
	NewStatus         enums.OrderStatus
	Description       string
	Location          *string
	UpdatedBy         string
	DeliveryPartner   *string
	TrackingNumber    *string
	EstimatedDelivery *time.Time
}

// ConfirmDeliveryInput completes the handover with the customer's 4-digit code.
type ConfirmDeliveryInput struct {
	OrderID   uint
	UserID    uuid.UUID
	OTP       string
	UpdatedBy string
}

// CancelInput cancels an order while it is still cancellable.
type CancelInput struct {
	OrderID   uint
	UserID    uuid.UUID
	Reason    string
	UpdatedBy string
	// Admin bypasses the ownership check.
	Admin bool
}

// ListInput narrows and pages an order listing.
type ListInput struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
	Params pagination.Params
}

// OrderList is one page of orders plus paging metadata.
type OrderList struct {
	Orders []models.Order
	Meta   pagination.Meta
}

// Detail bundles an order with its full audit timeline.
type Detail struct {
	Order    models.Order
	Timeline []models.OrderTimelineEntry
}

// Receipt summarises a freshly placed order for the response payload.
type Receipt struct {
	OrderNumber string
	TotalAmount decimal.Decimal
	Status      enums.OrderStatus
	OrderDate   time.Time
}
