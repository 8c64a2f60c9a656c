package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
)

// ReviewRepository defines persistence operations for product reviews.
type ReviewRepository interface {
	WithTx(tx *gorm.DB) ReviewRepository
	Create(ctx context.Context, review *models.Review) error
	ListByProduct(ctx context.Context, productID string, limit int) ([]models.Review, error)
	ExistsForOrderProducts(ctx context.Context, userID uuid.UUID, productIDs []string) (bool, error)
	Summary(ctx context.Context, productID string) (*RatingSummary, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository builds a review repository bound to the provided DB.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) WithTx(tx *gorm.DB) ReviewRepository {
	if tx == nil {
		return r
	}
	return &reviewRepository{db: tx}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *reviewRepository) ListByProduct(ctx context.Context, productID string, limit int) ([]models.Review, error) {
	if limit <= 0 {
		limit = 20
	}
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

func (r *reviewRepository) ExistsForOrderProducts(ctx context.Context, userID uuid.UUID, productIDs []string) (bool, error) {
	if len(productIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("user_id = ? AND product_id IN ?", userID, productIDs).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *reviewRepository) Summary(ctx context.Context, productID string) (*RatingSummary, error) {
	var row struct {
		Average *float64
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("AVG(rates) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	summary := &RatingSummary{Count: row.Count}
	if row.Average != nil {
		summary.Average = *row.Average
	}
	return summary, nil
}
