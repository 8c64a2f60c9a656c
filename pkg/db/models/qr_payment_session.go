package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// QRPaymentSession is a self-expiring UPI payment attempt polled by clients.
// Expiry is evaluated lazily against ExpiresAt; nothing pushes it.
type QRPaymentSession struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement"`
	QRID    string `gorm:"column:qr_id;size:50;not null;uniqueIndex"`
	OrderID uint   `gorm:"column:order_id;not null;index"`

	UPIID    string          `gorm:"column:upi_id;size:100;not null"`
	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	Currency string          `gorm:"column:currency;size:3;not null;default:'INR'"`

	// PayloadURI is the upi://pay string the QR image encodes.
	PayloadURI string `gorm:"column:qr_code_data;type:text;not null"`

	Status         enums.QRSessionStatus `gorm:"column:status;size:20;not null;default:'pending'"`
	TransactionID  *string               `gorm:"column:transaction_id;size:100"`
	TransactionRef *string               `gorm:"column:transaction_ref;size:100"`

	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	VerifiedAt *time.Time `gorm:"column:verified_at"`

	Metadata types.JSONMap `gorm:"column:payment_metadata;type:jsonb;serializer:json"`
}

func (QRPaymentSession) TableName() string { return "qr_payments" }
