package timeline

import (
	"context"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
)

// Repository defines persistence operations for the order timeline.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.OrderTimelineEntry) error
	ListByOrder(ctx context.Context, orderID uint) ([]models.OrderTimelineEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a timeline repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.OrderTimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uint) ([]models.OrderTimelineEntry, error) {
	var entries []models.OrderTimelineEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("timestamp ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
