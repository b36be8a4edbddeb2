package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/payloads"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  attempts INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  published_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func emitOrderPaid(t *testing.T, db *gorm.DB, svc *Service, orderID uuid.UUID) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.OutboxEventOrderPaid,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   orderID,
			Data: payloads.OrderPaidEvent{
				OrderID:    orderID,
				UserID:     uuid.New(),
				TotalCents: 4999,
				ItemCount:  2,
			},
			Version: 1,
		})
	}))
}

func TestEmitQueuesPendingEvent(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	orderID := uuid.New()
	emitOrderPaid(t, db, svc, orderID)

	rows, err := repo.FetchPending(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OutboxEventOrderPaid, rows[0].EventType)
	assert.Equal(t, orderID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)

	var data payloads.OrderPaidEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, 4999, data.TotalCents)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	packID := uuid.New()
	event := DomainEvent{
		EventType:     enums.OutboxEventPackDeleted,
		AggregateType: enums.OutboxAggregatePack,
		AggregateID:   packID,
		Data:          payloads.PackDeletedEvent{PackID: packID},
		Version:       1,
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	count, err := repo.CountPending()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAttemptFailedParksEventAtMaxAttempts(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	emitOrderPaid(t, db, svc, uuid.New())
	rows, err := repo.FetchPending(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	id := rows[0].ID

	cause := errors.New("publish timeout")
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkAttemptFailed(id, cause, 3))
	}

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", id).Error)
	assert.Equal(t, enums.OutboxStatusFailed, row.Status)
	assert.Equal(t, 3, row.Attempts)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "publish timeout", *row.LastError)

	pending, err := repo.FetchPending(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMarkPublishedRemovesFromPending(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	emitOrderPaid(t, db, svc, uuid.New())
	rows, err := repo.FetchPending(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, repo.MarkPublished(rows[0].ID))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", rows[0].ID).Error)
	assert.Equal(t, enums.OutboxStatusPublished, row.Status)
	assert.NotNil(t, row.PublishedAt)
}
