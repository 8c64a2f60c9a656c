package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
)

// Repository defines persistence operations for saved billing info.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, info *models.BillingInfo) error
	FindByID(ctx context.Context, id uint) (*models.BillingInfo, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BillingInfo, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
	ClearPrimary(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, id uint) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a billing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, info *models.BillingInfo) error {
	return r.db.WithContext(ctx).Create(info).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.BillingInfo, error) {
	var info models.BillingInfo
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&info).Error
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.BillingInfo, error) {
	var infos []models.BillingInfo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, created_at DESC").
		Find(&infos).Error
	if err != nil {
		return nil, err
	}
	return infos, nil
}

func (r *repository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.BillingInfo{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClearPrimary drops the primary flag across a user's addresses so a new one
// can take it.
func (r *repository) ClearPrimary(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.BillingInfo{}).
		Where("user_id = ? AND is_primary = ?", userID, true).
		Update("is_primary", false).Error
}

func (r *repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.BillingInfo{}).Error
}
