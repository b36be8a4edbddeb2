package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// SamplePack is a bundle of samples sold as a unit.
type SamplePack struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CreatorID   uuid.UUID        `gorm:"column:creator_id;type:uuid;not null"`
	Title       string           `gorm:"column:title;not null"`
	Slug        string           `gorm:"column:slug;not null;uniqueIndex"`
	Description *string          `gorm:"column:description"`
	CoverKey    *string          `gorm:"column:cover_key"`
	PriceCents  int              `gorm:"column:price_cents;not null"`
	Status      enums.PackStatus `gorm:"column:status;type:pack_status;not null;default:'draft'"`
	PublishedAt *time.Time       `gorm:"column:published_at"`
	Samples     []Sample         `gorm:"foreignKey:PackID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
