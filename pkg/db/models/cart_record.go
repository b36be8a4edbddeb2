package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// CartRecord is the per-user pre-purchase selection. A user has at most one
// active cart at a time.
type CartRecord struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index"`
	Status    enums.CartStatus `gorm:"column:status;type:cart_status;not null;default:'active'"`
	Items     []CartItem       `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// SubtotalCents sums the snapshot prices of every item.
func (c CartRecord) SubtotalCents() int {
	total := 0
	for _, item := range c.Items {
		total += item.UnitPriceCents
	}
	return total
}
