package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
)

// SampleRepository exposes sample persistence operations.
type SampleRepository struct {
	db *gorm.DB
}

// NewSampleRepository constructs a sample repo bound to the provided GORM DB.
func NewSampleRepository(db *gorm.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Create inserts a new sample row.
func (r *SampleRepository) Create(ctx context.Context, sample *models.Sample) error {
	return r.db.WithContext(ctx).Create(sample).Error
}

// FindByID loads a sample by its UUID.
func (r *SampleRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sample, error) {
	var sample models.Sample
	if err := r.db.WithContext(ctx).First(&sample, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sample, nil
}

// ListByPack returns every sample in the pack.
func (r *SampleRepository) ListByPack(ctx context.Context, packID uuid.UUID) ([]models.Sample, error) {
	var samples []models.Sample
	err := r.db.WithContext(ctx).
		Where("pack_id = ?", packID).
		Order("created_at ASC, id ASC").
		Find(&samples).Error
	return samples, err
}

// UpdateFields applies a partial column update to a sample.
func (r *SampleRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Sample{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a single sample row.
func (r *SampleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Sample{}, "id = ?", id).Error
}

// DeleteByPack removes every sample belonging to the pack.
func (r *SampleRepository) DeleteByPack(ctx context.Context, packID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Sample{}, "pack_id = ?", packID).Error
}
