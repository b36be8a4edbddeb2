package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// OrderItem captures the snapshot of a purchased sample or pack. An item
// referencing a pack grants access to every sample in it; an item
// referencing a sample grants access to that sample alone.
type OrderItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	SampleID       *uuid.UUID          `gorm:"column:sample_id;type:uuid"`
	PackID         *uuid.UUID          `gorm:"column:pack_id;type:uuid"`
	Format         *enums.SampleFormat `gorm:"column:format;type:sample_format"`
	Title          string              `gorm:"column:title;not null"`
	UnitPriceCents int                 `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
