package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// PaymentAttempt is one provider-side try at collecting payment for an order.
// An order may accumulate several attempts; at most one ever verifies. Once
// VerifiedAt is set the row is treated as immutable.
type PaymentAttempt struct {
	ID      uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID uint       `gorm:"column:order_id;not null;index"`
	UserID  *uuid.UUID `gorm:"column:user_id;type:uuid"`

	Provider    enums.PaymentProvider `gorm:"column:provider;size:50;not null"`
	PaymentMode *string               `gorm:"column:payment_mode;size:50"`

	// ProviderOrderID is the gateway's order-side identifier and the
	// reconciliation idempotence key.
	ProviderOrderID   *string `gorm:"column:provider_order_id;size:100;uniqueIndex"`
	ProviderPaymentID *string `gorm:"column:provider_payment_id;size:100"`
	ProviderSignature *string `gorm:"column:provider_signature;size:255"`

	UPIID        *string `gorm:"column:upi_id;size:100"`
	QRSessionID  *uint   `gorm:"column:qr_session_id"`

	GatewayResponse types.JSONMap `gorm:"column:gateway_response;type:jsonb;serializer:json"`

	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	VerifiedAt *time.Time `gorm:"column:payment_verified_at"`
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }
