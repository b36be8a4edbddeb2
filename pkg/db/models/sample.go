package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// Sample is a single purchasable media item, optionally belonging to a pack.
// Duration is extracted from the decoded audio at ingest time, never guessed.
type Sample struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackID          *uuid.UUID     `gorm:"column:pack_id;type:uuid;index"`
	CreatorID       uuid.UUID      `gorm:"column:creator_id;type:uuid;not null"`
	Title           string         `gorm:"column:title;not null"`
	DurationSeconds float64        `gorm:"column:duration_seconds;not null"`
	BPM             *int           `gorm:"column:bpm"`
	MusicalKey      *string        `gorm:"column:musical_key"`
	Tags            pq.StringArray `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	HasWAV          bool           `gorm:"column:has_wav;not null;default:true"`
	HasStems        bool           `gorm:"column:has_stems;not null;default:false"`
	HasMIDI         bool           `gorm:"column:has_midi;not null;default:false"`
	PriceWAVCents   int            `gorm:"column:price_wav_cents;not null;default:0"`
	PriceStemsCents int            `gorm:"column:price_stems_cents;not null;default:0"`
	PriceMIDICents  int            `gorm:"column:price_midi_cents;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// HasFormat reports whether the sample declares support for the given format.
func (s Sample) HasFormat(format enums.SampleFormat) bool {
	switch format {
	case enums.SampleFormatWAV:
		return s.HasWAV
	case enums.SampleFormatStems:
		return s.HasStems
	case enums.SampleFormatMIDI:
		return s.HasMIDI
	default:
		return false
	}
}

// PriceCentsFor returns the sticker price for the given format.
func (s Sample) PriceCentsFor(format enums.SampleFormat) int {
	switch format {
	case enums.SampleFormatWAV:
		return s.PriceWAVCents
	case enums.SampleFormatStems:
		return s.PriceStemsCents
	case enums.SampleFormatMIDI:
		return s.PriceMIDICents
	default:
		return 0
	}
}
