package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

// PackRepository exposes sample pack persistence operations.
type PackRepository struct {
	db *gorm.DB
}

// NewPackRepository constructs a pack repo bound to the provided GORM DB.
func NewPackRepository(db *gorm.DB) *PackRepository {
	return &PackRepository{db: db}
}

// Create inserts a new pack row.
func (r *PackRepository) Create(ctx context.Context, pack *models.SamplePack) error {
	return r.db.WithContext(ctx).Create(pack).Error
}

// FindByID loads a pack with its samples.
func (r *PackRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SamplePack, error) {
	var pack models.SamplePack
	if err := r.db.WithContext(ctx).Preload("Samples").First(&pack, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

// FindBySlug loads a pack with its samples by slug.
func (r *PackRepository) FindBySlug(ctx context.Context, slug string) (*models.SamplePack, error) {
	var pack models.SamplePack
	if err := r.db.WithContext(ctx).Preload("Samples").First(&pack, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

// SlugExists reports whether any pack already claims the slug.
func (r *PackRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SamplePack{}).
		Where("slug = ?", slug).
		Count(&count).Error
	return count > 0, err
}

// ListPublished returns one cursor page of published packs, newest first.
func (r *PackRepository) ListPublished(ctx context.Context, params pagination.Params) ([]models.SamplePack, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	qb := r.db.WithContext(ctx).
		Preload("Samples").
		Where("status = ?", enums.PackStatusPublished)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var packs []models.SamplePack
	if err := qb.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&packs).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(packs) > limit {
		packs = packs[:limit]
		last := packs[len(packs)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return packs, nextCursor, nil
}

// ListByCreator returns every pack owned by the creator, newest first.
func (r *PackRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.SamplePack, error) {
	var packs []models.SamplePack
	err := r.db.WithContext(ctx).
		Preload("Samples").
		Where("creator_id = ?", creatorID).
		Order("created_at DESC, id DESC").
		Find(&packs).Error
	return packs, err
}

// UpdateFields applies a partial column update to a pack.
func (r *PackRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SamplePack{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// SetStatus transitions the pack's publish state.
func (r *PackRepository) SetStatus(ctx context.Context, id uuid.UUID, status enums.PackStatus, publishedAt *time.Time) error {
	fields := map[string]any{"status": status}
	if publishedAt != nil {
		fields["published_at"] = *publishedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.SamplePack{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes the pack row. Dependent rows are cleared by the caller's
// transaction before this runs.
func (r *PackRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SamplePack{}, "id = ?", id).Error
}

// CreatorEarnings sums paid order items attributable to the creator's packs
// and loose samples.
func (r *PackRepository) CreatorEarnings(ctx context.Context, creatorID uuid.UUID) (totalCents, itemsSold int64, err error) {
	var row struct {
		Total int64
		Items int64
	}
	err = r.db.WithContext(ctx).
		Table("order_items").
		Select("COALESCE(SUM(order_items.unit_price_cents), 0) AS total, COUNT(*) AS items").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status IN ?", []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusCompleted}).
		Where(
			"order_items.pack_id IN (SELECT id FROM sample_packs WHERE creator_id = ?) OR order_items.sample_id IN (SELECT id FROM samples WHERE creator_id = ?)",
			creatorID, creatorID,
		).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Total, row.Items, nil
}
