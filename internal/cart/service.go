package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

// Line is one cart row joined with its catalog entry.
type Line struct {
	Product   models.Product  `json:"product"`
	Qty       int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// View is a user's cart with line totals.
type View struct {
	Items []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// Service manages a user's cart.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, productID string, qty int) error
	UpdateQty(ctx context.Context, userID uuid.UUID, productID string, qty int) error
	Remove(ctx context.Context, userID uuid.UUID, productID string) error
	List(ctx context.Context, userID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog products.Repository
	logg    *logger.Logger
}

// NewService builds the cart service.
func NewService(repo Repository, catalog products.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalog, logg: logg}, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, productID string, qty int) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.catalog.FindByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Stock < qty {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID, "available": product.Stock})
	}

	if err := s.repo.Upsert(ctx, &models.CartItem{UserID: userID, ProductID: productID, Qty: qty}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add to cart")
	}
	return nil
}

func (s *service) UpdateQty(ctx context.Context, userID uuid.UUID, productID string, qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if qty == 0 {
		return s.Remove(ctx, userID, productID)
	}

	product, err := s.catalog.FindByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Stock < qty {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"product_id": productID, "available": product.Stock})
	}

	if err := s.repo.UpdateQty(ctx, userID, productID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, productID string) error {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
	}

	view := &View{Items: []Line{}, Total: decimal.Zero}
	for _, item := range items {
		product, err := s.catalog.FindByProductID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// product was removed from the catalog; drop the stale row
				if remErr := s.repo.Remove(ctx, userID, item.ProductID); remErr != nil {
					s.logg.Warn(ctx, fmt.Sprintf("failed to drop stale cart row for %s", item.ProductID))
				}
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Qty)))
		view.Items = append(view.Items, Line{Product: *product, Qty: item.Qty, LineTotal: lineTotal})
		view.Total = view.Total.Add(lineTotal)
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
