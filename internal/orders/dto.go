package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

type OrderItemView struct {
	ID             uuid.UUID           `json:"id"`
	SampleID       *uuid.UUID          `json:"sample_id,omitempty"`
	PackID         *uuid.UUID          `json:"pack_id,omitempty"`
	Format         *enums.SampleFormat `json:"format,omitempty"`
	Title          string              `json:"title"`
	UnitPriceCents int                 `json:"unit_price_cents"`
}

type OrderView struct {
	ID            uuid.UUID         `json:"id"`
	Status        enums.OrderStatus `json:"status"`
	SubtotalCents int               `json:"subtotal_cents"`
	TotalCents    int               `json:"total_cents"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItemView   `json:"items"`
}

// OrderPage is one cursor page of the user's order history.
type OrderPage struct {
	Items      []OrderView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// LibrarySample is a sample the user may download, with the formats their
// purchases unlocked.
type LibrarySample struct {
	ID              uuid.UUID            `json:"id"`
	PackID          *uuid.UUID           `json:"pack_id,omitempty"`
	Title           string               `json:"title"`
	DurationSeconds float64              `json:"duration_seconds"`
	BPM             *int                 `json:"bpm,omitempty"`
	MusicalKey      *string              `json:"musical_key,omitempty"`
	Formats         []enums.SampleFormat `json:"formats"`
}

type LibraryPack struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	CoverKey    *string   `json:"cover_key,omitempty"`
	SampleCount int       `json:"sample_count"`
}

// LibraryView is everything the user owns: directly purchased samples plus
// every sample inside purchased packs.
type LibraryView struct {
	Samples []LibrarySample `json:"samples"`
	Packs   []LibraryPack   `json:"packs"`
}

func orderViewFromModel(order models.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ID:             item.ID,
			SampleID:       item.SampleID,
			PackID:         item.PackID,
			Format:         item.Format,
			Title:          item.Title,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return OrderView{
		ID:            order.ID,
		Status:        order.Status,
		SubtotalCents: order.SubtotalCents,
		TotalCents:    order.TotalCents,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
		Items:         items,
	}
}

func availableFormats(sample models.Sample) []enums.SampleFormat {
	formats := make([]enums.SampleFormat, 0, 3)
	if sample.HasWAV {
		formats = append(formats, enums.SampleFormatWAV)
	}
	if sample.HasStems {
		formats = append(formats, enums.SampleFormatStems)
	}
	if sample.HasMIDI {
		formats = append(formats, enums.SampleFormatMIDI)
	}
	return formats
}
