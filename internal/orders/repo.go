package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

// Repository wraps order persistence. Construct over a transaction handle to
// join an enclosing transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) FindByStripeSessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").
		First(&order, "stripe_session_id = ?", sessionID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("stripe_session_id", sessionID).Error
}

// MarkPaid flips an order to paid. The caller handles idempotency by checking
// the current status first inside the same transaction.
func (r *Repository) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"status":  enums.OrderStatusPaid,
			"paid_at": paidAt,
		}).Error
}

// ListByUser pages the user's orders newest first using a keyset cursor.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, "", err
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var records []models.Order
	if err := query.Find(&records).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(records) > limit {
		records = records[:limit]
		last := records[len(records)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return records, nextCursor, nil
}

// EntitledItems returns the order items from the user's paid or completed
// orders. These rows are the source of truth for library contents and
// entitlement checks.
func (r *Repository) EntitledItems(ctx context.Context, userID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status IN ?", userID, []enums.OrderStatus{
			enums.OrderStatusPaid,
			enums.OrderStatusCompleted,
		}).
		Order("order_items.created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindSamplesByIDs loads the given samples in one query.
func (r *Repository) FindSamplesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Sample, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var samples []models.Sample
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&samples).Error; err != nil {
		return nil, err
	}
	return samples, nil
}

// FindPacksByIDs loads the given packs with their samples in one query.
func (r *Repository) FindPacksByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SamplePack, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var packs []models.SamplePack
	if err := r.db.WithContext(ctx).Preload("Samples").Where("id IN ?", ids).Find(&packs).Error; err != nil {
		return nil, err
	}
	return packs, nil
}

// HasEntitlement reports whether any paid or completed order of the user
// contains the sample directly or its parent pack.
func (r *Repository) HasEntitlement(ctx context.Context, userID, sampleID uuid.UUID, packID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status IN ?", userID, []enums.OrderStatus{
			enums.OrderStatusPaid,
			enums.OrderStatusCompleted,
		})
	if packID != nil {
		query = query.Where("order_items.sample_id = ? OR order_items.pack_id = ?", sampleID, *packID)
	} else {
		query = query.Where("order_items.sample_id = ?", sampleID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
