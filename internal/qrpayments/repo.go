package qrpayments

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mapmarket/mapmarket-backend/pkg/db/models"
)

// Repository defines persistence operations for QR payment sessions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.QRPaymentSession) error
	FindByQRID(ctx context.Context, qrID string) (*models.QRPaymentSession, error)
	FindByQRIDForUpdate(ctx context.Context, qrID string) (*models.QRPaymentSession, error)
	ListByOrder(ctx context.Context, orderID uint) ([]models.QRPaymentSession, error)
	Update(ctx context.Context, id uint, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a QR session repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, session *models.QRPaymentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repository) FindByQRID(ctx context.Context, qrID string) (*models.QRPaymentSession, error) {
	var session models.QRPaymentSession
	err := r.db.WithContext(ctx).Where("qr_id = ?", qrID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindByQRIDForUpdate(ctx context.Context, qrID string) (*models.QRPaymentSession, error) {
	var session models.QRPaymentSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("qr_id = ?", qrID).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uint) ([]models.QRPaymentSession, error) {
	var sessions []models.QRPaymentSession
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *repository) Update(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.QRPaymentSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}
