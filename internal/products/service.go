package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/internal/orders"
	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	pkgerrors "github.com/mapmarket/mapmarket-backend/pkg/errors"
	"github.com/mapmarket/mapmarket-backend/pkg/logger"
)

const (
	minRating = 1
	maxRating = 5

	detailReviewLimit = 20
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog management and review operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Get(ctx context.Context, productID string) (*Detail, error)
	List(ctx context.Context, input ListInput) (*ProductList, error)
	Update(ctx context.Context, productID string, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, productID string) error
	RateOrder(ctx context.Context, input RateOrderInput) ([]models.Review, error)
}

type service struct {
	repo    Repository
	reviews ReviewRepository
	orders  orders.Repository
	tx      txRunner
	logg    *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo Repository, reviews ReviewRepository, orderRepo orders.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if reviews == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, reviews: reviews, orders: orderRepo, tx: tx, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Price.IsNegative() || input.Price.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		productID, err := repo.NextProductID(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign product id")
		}

		row := &models.Product{
			ProductID:   productID,
			Name:        strings.TrimSpace(input.Name),
			Description: input.Description,
			Category:    input.Category,
			Price:       input.Price,
			Stock:       input.Stock,
			ImageURL:    input.ImageURL,
		}
		if err := repo.Create(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		product = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("product %s created", product.ProductID))
	return product, nil
}

func (s *service) Get(ctx context.Context, productID string) (*Detail, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	summary, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load rating summary")
	}
	reviews, err := s.reviews.ListByProduct(ctx, productID, detailReviewLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviews")
	}

	return &Detail{Product: *product, Rating: *summary, Reviews: reviews}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ProductList, error) {
	list, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return list, nil
}

func (s *service) Update(ctx context.Context, productID string, input UpdateInput) (*models.Product, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Price != nil {
		if input.Price.IsNegative() || input.Price.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		updates["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
		}
		updates["stock"] = *input.Stock
	}
	if input.ImageURL != nil {
		updates["image_url"] = *input.ImageURL
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	if _, err := s.repo.FindByProductID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if err := s.repo.Update(ctx, productID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	product, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return product, nil
}

func (s *service) Delete(ctx context.Context, productID string) error {
	if productID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	if _, err := s.repo.FindByProductID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if err := s.repo.Delete(ctx, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	s.logg.Info(ctx, fmt.Sprintf("product %s deleted", productID))
	return nil
}

// RateOrder writes one verified review per product in a delivered order.
func (s *service) RateOrder(ctx context.Context, input RateOrderInput) ([]models.Review, error) {
	if input.OrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Rating < minRating || input.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}

	var created []models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.OrderStatus != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be rated")
		}

		productIDs := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			productIDs = append(productIDs, item.ProductID)
		}

		reviews := s.reviews.WithTx(tx)
		already, err := reviews.ExistsForOrderProducts(ctx, input.UserID, productIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing reviews")
		}
		if already {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was already rated")
		}

		for _, item := range order.Items {
			review := models.Review{
				UserID:      input.UserID,
				ProductID:   item.ProductID,
				Username:    input.Username,
				Rating:      input.Rating,
				Description: input.Comment,
				Verified:    true,
			}
			if err := reviews.Create(ctx, &review); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
			}
			created = append(created, review)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(ctx, fmt.Sprintf("order %d rated with %d", input.OrderID, input.Rating))
	return created, nil
}
