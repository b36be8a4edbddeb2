package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// CreatePackRequest is the creator payload for a new draft pack.
type CreatePackRequest struct {
	Title       string  `json:"title" validate:"required,max=160"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	PriceCents  int     `json:"price_cents" validate:"gte=0"`
	CoverKey    *string `json:"cover_key,omitempty"`
}

// UpdatePackRequest carries partial pack edits. Nil fields are left alone.
type UpdatePackRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=160"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	PriceCents  *int    `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	CoverKey    *string `json:"cover_key,omitempty"`
}

// CreateSampleRequest describes a sample being added to a pack or sold loose.
// Duration comes from the decoded audio at ingest, so it must be positive.
type CreateSampleRequest struct {
	Title           string   `json:"title" validate:"required,max=160"`
	DurationSeconds float64  `json:"duration_seconds" validate:"required,gt=0"`
	BPM             *int     `json:"bpm,omitempty" validate:"omitempty,gte=20,lte=300"`
	MusicalKey      *string  `json:"musical_key,omitempty" validate:"omitempty,max=12"`
	Tags            []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=40"`
	HasWAV          bool     `json:"has_wav"`
	HasStems        bool     `json:"has_stems"`
	HasMIDI         bool     `json:"has_midi"`
	PriceWAVCents   int      `json:"price_wav_cents" validate:"gte=0"`
	PriceStemsCents int      `json:"price_stems_cents" validate:"gte=0"`
	PriceMIDICents  int      `json:"price_midi_cents" validate:"gte=0"`
}

// UpdateSampleRequest carries partial sample edits.
type UpdateSampleRequest struct {
	Title           *string  `json:"title,omitempty" validate:"omitempty,max=160"`
	BPM             *int     `json:"bpm,omitempty" validate:"omitempty,gte=20,lte=300"`
	MusicalKey      *string  `json:"musical_key,omitempty" validate:"omitempty,max=12"`
	Tags            []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=40"`
	HasWAV          *bool    `json:"has_wav,omitempty"`
	HasStems        *bool    `json:"has_stems,omitempty"`
	HasMIDI         *bool    `json:"has_midi,omitempty"`
	PriceWAVCents   *int     `json:"price_wav_cents,omitempty" validate:"omitempty,gte=0"`
	PriceStemsCents *int     `json:"price_stems_cents,omitempty" validate:"omitempty,gte=0"`
	PriceMIDICents  *int     `json:"price_midi_cents,omitempty" validate:"omitempty,gte=0"`
}

// UploadRequest asks for a presigned PUT target for one sample asset.
// Kind is "wav", "stems", "midi" or "preview"; empty defaults to wav.
type UploadRequest struct {
	Kind string `json:"kind" validate:"omitempty,oneof=wav stems midi preview"`
}

// UploadTarget is a presigned PUT destination for a sample asset.
type UploadTarget struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SampleSummary is the public projection of a sample.
type SampleSummary struct {
	ID              uuid.UUID  `json:"id"`
	PackID          *uuid.UUID `json:"pack_id,omitempty"`
	Title           string     `json:"title"`
	DurationSeconds float64    `json:"duration_seconds"`
	BPM             *int       `json:"bpm,omitempty"`
	MusicalKey      *string    `json:"musical_key,omitempty"`
	Tags            []string   `json:"tags"`
	HasWAV          bool       `json:"has_wav"`
	HasStems        bool       `json:"has_stems"`
	HasMIDI         bool       `json:"has_midi"`
	PriceWAVCents   int        `json:"price_wav_cents"`
	PriceStemsCents int        `json:"price_stems_cents"`
	PriceMIDICents  int        `json:"price_midi_cents"`
	CreatedAt       time.Time  `json:"created_at"`
}

// PackSummary is the public list projection of a pack.
type PackSummary struct {
	ID          uuid.UUID        `json:"id"`
	CreatorID   uuid.UUID        `json:"creator_id"`
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Description *string          `json:"description,omitempty"`
	CoverKey    *string          `json:"cover_key,omitempty"`
	PriceCents  int              `json:"price_cents"`
	Status      enums.PackStatus `json:"status"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	SampleCount int              `json:"sample_count"`
	CreatedAt   time.Time        `json:"created_at"`
}

// PackDetail is PackSummary plus the contained samples.
type PackDetail struct {
	PackSummary
	Samples []SampleSummary `json:"samples"`
}

// PackPage is one cursor page of packs.
type PackPage struct {
	Items      []PackSummary `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// EarningsSummary aggregates a creator's paid sales.
type EarningsSummary struct {
	TotalCents   int64  `json:"total_cents"`
	TotalDollars string `json:"total_dollars"`
	ItemsSold    int64  `json:"items_sold"`
}

func newEarningsSummary(totalCents, itemsSold int64) EarningsSummary {
	return EarningsSummary{
		TotalCents:   totalCents,
		TotalDollars: decimal.NewFromInt(totalCents).Shift(-2).StringFixed(2),
		ItemsSold:    itemsSold,
	}
}

func sampleFromModel(sample models.Sample) SampleSummary {
	return SampleSummary{
		ID:              sample.ID,
		PackID:          sample.PackID,
		Title:           sample.Title,
		DurationSeconds: sample.DurationSeconds,
		BPM:             sample.BPM,
		MusicalKey:      sample.MusicalKey,
		Tags:            append([]string(nil), sample.Tags...),
		HasWAV:          sample.HasWAV,
		HasStems:        sample.HasStems,
		HasMIDI:         sample.HasMIDI,
		PriceWAVCents:   sample.PriceWAVCents,
		PriceStemsCents: sample.PriceStemsCents,
		PriceMIDICents:  sample.PriceMIDICents,
		CreatedAt:       sample.CreatedAt,
	}
}

func packSummaryFromModel(pack models.SamplePack) PackSummary {
	return PackSummary{
		ID:          pack.ID,
		CreatorID:   pack.CreatorID,
		Title:       pack.Title,
		Slug:        pack.Slug,
		Description: pack.Description,
		CoverKey:    pack.CoverKey,
		PriceCents:  pack.PriceCents,
		Status:      pack.Status,
		PublishedAt: pack.PublishedAt,
		SampleCount: len(pack.Samples),
		CreatedAt:   pack.CreatedAt,
	}
}

func packDetailFromModel(pack models.SamplePack) PackDetail {
	detail := PackDetail{
		PackSummary: packSummaryFromModel(pack),
		Samples:     make([]SampleSummary, 0, len(pack.Samples)),
	}
	for _, sample := range pack.Samples {
		detail.Samples = append(detail.Samples, sampleFromModel(sample))
	}
	return detail
}
