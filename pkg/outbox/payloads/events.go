package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderPaidEvent is emitted when a Stripe webhook confirms payment.
type OrderPaidEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	TotalCents int       `json:"total_cents"`
	ItemCount  int       `json:"item_count"`
	PaidAt     time.Time `json:"paid_at"`
}

// PackDeletedEvent is emitted when a creator removes a pack and its samples.
type PackDeletedEvent struct {
	PackID     uuid.UUID   `json:"pack_id"`
	CreatorID  uuid.UUID   `json:"creator_id"`
	Title      string      `json:"title"`
	SampleIDs  []uuid.UUID `json:"sample_ids"`
	StorageKey string      `json:"storage_key,omitempty"`
	DeletedAt  time.Time   `json:"deleted_at"`
}
