package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// AddItemRequest adds either a single sample in a chosen format or a whole
// pack. Exactly one of sample_id and pack_id must be set.
type AddItemRequest struct {
	SampleID *uuid.UUID          `json:"sample_id"`
	PackID   *uuid.UUID          `json:"pack_id"`
	Format   *enums.SampleFormat `json:"format" validate:"omitempty,oneof=wav stems midi"`
}

type ItemView struct {
	ID             uuid.UUID           `json:"id"`
	SampleID       *uuid.UUID          `json:"sample_id,omitempty"`
	PackID         *uuid.UUID          `json:"pack_id,omitempty"`
	Format         *enums.SampleFormat `json:"format,omitempty"`
	Title          string              `json:"title"`
	UnitPriceCents int                 `json:"unit_price_cents"`
	AddedAt        time.Time           `json:"added_at"`
}

// View is the cart as returned to the client. An empty cart has a nil ID;
// the record itself is only created on the first add.
type View struct {
	ID            *uuid.UUID `json:"id,omitempty"`
	Items         []ItemView `json:"items"`
	ItemCount     int        `json:"item_count"`
	SubtotalCents int        `json:"subtotal_cents"`
}

func emptyView() *View {
	return &View{Items: []ItemView{}}
}

func viewFromModel(record models.CartRecord) *View {
	items := make([]ItemView, 0, len(record.Items))
	for _, item := range record.Items {
		items = append(items, ItemView{
			ID:             item.ID,
			SampleID:       item.SampleID,
			PackID:         item.PackID,
			Format:         item.Format,
			Title:          item.Title,
			UnitPriceCents: item.UnitPriceCents,
			AddedAt:        item.CreatedAt,
		})
	}
	id := record.ID
	return &View{
		ID:            &id,
		Items:         items,
		ItemCount:     len(items),
		SubtotalCents: record.SubtotalCents(),
	}
}
