package otp

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
	"github.com/mapmarket/mapmarket-backend/pkg/enums"
)

// Repository defines persistence operations for email one-time codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, record *models.EmailOTP) error
	FindLatest(ctx context.Context, email string, purpose enums.OTPPurpose) (*models.EmailOTP, error)
	InvalidateUnverified(ctx context.Context, email string, purpose enums.OTPPurpose) error
	IncrementAttempts(ctx context.Context, id uint) error
	Update(ctx context.Context, id uint, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an email OTP repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, record *models.EmailOTP) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindLatest(ctx context.Context, email string, purpose enums.OTPPurpose) (*models.EmailOTP, error) {
	var record models.EmailOTP
	err := r.db.WithContext(ctx).
		Where("email = ? AND purpose = ?", email, purpose).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// InvalidateUnverified force-expires every outstanding code for the pair so
// only the newest one can ever verify.
func (r *repository) InvalidateUnverified(ctx context.Context, email string, purpose enums.OTPPurpose) error {
	return r.db.WithContext(ctx).
		Model(&models.EmailOTP{}).
		Where("email = ? AND purpose = ? AND verified = ?", email, purpose, false).
		Update("expires_at", time.Now().UTC()).Error
}

func (r *repository) IncrementAttempts(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.EmailOTP{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *repository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.EmailOTP{}).
		Where("id = ?", id).
		Updates(updates).Error
}
