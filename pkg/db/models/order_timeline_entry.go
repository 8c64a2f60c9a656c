package models

import (
	"time"

	"github.com/mapmarket/mapmarket-backend/pkg/types"
)

// OrderTimelineEntry is one immutable audit record of an order status change.
// Rows are append-only; nothing in the codebase updates or deletes them.
type OrderTimelineEntry struct {
	ID          uint          `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     uint          `gorm:"column:order_id;not null;index"`
	Status      string        `gorm:"column:status;size:50;not null"`
	Description string        `gorm:"column:description;size:255"`
	Location    *string       `gorm:"column:location;size:200"`
	UpdatedBy   string        `gorm:"column:updated_by;size:100"`
	Metadata    types.JSONMap `gorm:"column:event_metadata;type:jsonb;serializer:json"`
	Timestamp   time.Time     `gorm:"column:timestamp;autoCreateTime;not null"`
}

func (OrderTimelineEntry) TableName() string { return "order_timeline" }
