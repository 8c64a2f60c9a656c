package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mapmarket/mapmarket-backend/pkg/enums"
	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// Order is the order aggregate root. The numeric id stays internal; the order
// number is the public identity.
type Order struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber string    `gorm:"column:order_number;size:20;not null;uniqueIndex"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`

	BillingInfoID *uint        `gorm:"column:billing_info_id"`
	BillingInfo   *BillingInfo `gorm:"foreignKey:BillingInfoID"`

	Items       types.OrderItems `gorm:"column:items;type:jsonb;serializer:json;not null"`
	TotalAmount decimal.Decimal  `gorm:"column:total_amount;type:numeric(10,2);not null"`

	PaymentMethod    enums.PaymentMethod `gorm:"column:payment_method;size:50"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;size:20;not null;default:'pending'"`
	PaymentReference *string             `gorm:"column:payment_reference;size:100"`

	OrderStatus enums.OrderStatus `gorm:"column:order_status;size:20;not null;default:'placed'"`

	DeliveryPartner   *string    `gorm:"column:delivery_partner;size:100"`
	TrackingNumber    *string    `gorm:"column:tracking_number;size:100;index"`
	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery"`
	DeliveryOTP       *string    `gorm:"column:delivery_otp;size:4"`

	OrderDate        time.Time  `gorm:"column:order_date;autoCreateTime"`
	ConfirmedAt      *time.Time `gorm:"column:confirmed_at"`
	ShippedAt        *time.Time `gorm:"column:shipped_at"`
	OutForDeliveryAt *time.Time `gorm:"column:out_for_delivery_at"`
	DeliveredAt      *time.Time `gorm:"column:delivered_at"`

	CancelReason *string    `gorm:"column:cancel_reason;size:255"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`

	Timeline        []OrderTimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaymentAttempts []PaymentAttempt     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
