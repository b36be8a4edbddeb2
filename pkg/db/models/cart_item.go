package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// CartItem references either a single sample in a chosen format or a whole
// pack (SampleID and PackID are mutually exclusive). The unit price is a
// snapshot taken when the item was added.
type CartItem struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID         uuid.UUID           `gorm:"column:cart_id;type:uuid;not null;index"`
	SampleID       *uuid.UUID          `gorm:"column:sample_id;type:uuid"`
	PackID         *uuid.UUID          `gorm:"column:pack_id;type:uuid"`
	Format         *enums.SampleFormat `gorm:"column:format;type:sample_format"`
	Title          string              `gorm:"column:title;not null"`
	UnitPriceCents int                 `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
