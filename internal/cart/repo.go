package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
)

// Repository wraps cart persistence. Construct over a transaction handle to
// join an enclosing transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActiveByUser returns the user's active cart with items preloaded, or
// gorm.ErrRecordNotFound when the user has none.
func (r *Repository) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND status = ?", userID, enums.CartStatusActive).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record := models.CartRecord{
		ID:     uuid.New(),
		UserID: userID,
		Status: enums.CartStatusActive,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) AddItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// HasItem reports whether the cart already holds the same sample+format or
// the same pack.
func (r *Repository) HasItem(ctx context.Context, cartID uuid.UUID, sampleID, packID *uuid.UUID, format *enums.SampleFormat) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("cart_id = ?", cartID)
	switch {
	case sampleID != nil:
		query = query.Where("sample_id = ? AND format = ?", *sampleID, format)
	case packID != nil:
		query = query.Where("pack_id = ?", *packID)
	default:
		return false, nil
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeleteItem removes one item scoped to the cart and reports how many rows
// went away.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND id = ?", cartID, itemID).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// MarkConverted flips the cart out of the active state after checkout turned
// its items into an order.
func (r *Repository) MarkConverted(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.CartRecord{}).
		Where("id = ?", cartID).
		Update("status", enums.CartStatusConverted).Error
}
