package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/products"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

// View is a user's wishlist joined with catalog entries.
type View struct {
	Items []models.Product `json:"items"`
}

// Service manages a user's wishlist.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, productID string) error
	Remove(ctx context.Context, userID uuid.UUID, productID string) error
	List(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	repo    Repository
	catalog products.Repository
	logg    *logger.Logger
}

// NewService builds the wishlist service.
func NewService(repo Repository, catalog products.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wishlist repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalog, logg: logg}, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, productID string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	if _, err := s.catalog.FindByProductID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	exists, err := s.repo.Exists(ctx, userID, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check wishlist")
	}
	if exists {
		return pkgerrors.New(pkgerrors.CodeConflict, "product already in wishlist")
	}

	if err := s.repo.Add(ctx, &models.WishlistItem{UserID: userID, ProductID: productID}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add to wishlist")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, productID string) error {
	if err := s.repo.Remove(ctx, userID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not in wishlist")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove from wishlist")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}

	view := &View{Items: []models.Product{}}
	for _, item := range items {
		product, err := s.catalog.FindByProductID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		view.Items = append(view.Items, *product)
	}
	return view, nil
}
