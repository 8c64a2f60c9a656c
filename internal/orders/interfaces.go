package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/pagination"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
}

// ListFilters narrows order listings.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// Catalog is the slice of the product catalog order placement needs: a locked
// read plus stock adjustment, both inside the caller's transaction.
type Catalog interface {
	FindForUpdate(ctx context.Context, tx *gorm.DB, productID string) (*models.Product, error)
	AdjustStock(ctx context.Context, tx *gorm.DB, productID string, delta int) error
}

// DeliveryNotifier delivers the 4-digit handover code to the customer.
// Failures are logged, never fatal.
type DeliveryNotifier interface {
	SendDeliveryOTP(ctx context.Context, email, orderNumber, code string) error
}
