package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	pkgerrors "github.com/wavecrate/wavecrate-backend/pkg/errors"
	"github.com/wavecrate/wavecrate-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS sample_packs (
  id TEXT PRIMARY KEY,
  creator_id TEXT NOT NULL,
  title TEXT NOT NULL,
  slug TEXT NOT NULL UNIQUE,
  description TEXT,
  cover_key TEXT,
  price_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  published_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS samples (
  id TEXT PRIMARY KEY,
  pack_id TEXT,
  creator_id TEXT NOT NULL,
  title TEXT NOT NULL,
  duration_seconds REAL NOT NULL,
  bpm INTEGER,
  musical_key TEXT,
  tags TEXT NOT NULL DEFAULT '{}',
  has_wav INTEGER NOT NULL DEFAULT 1,
  has_stems INTEGER NOT NULL DEFAULT 0,
  has_midi INTEGER NOT NULL DEFAULT 0,
  price_wav_cents INTEGER NOT NULL DEFAULT 0,
  price_stems_cents INTEGER NOT NULL DEFAULT 0,
  price_midi_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  stripe_session_id TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  sample_id TEXT,
  pack_id TEXT,
  format TEXT,
  title TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newOrdersTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)
	return svc
}

func seedOrderWithItems(t *testing.T, db *gorm.DB, userID uuid.UUID, status enums.OrderStatus, items []models.OrderItem) *models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        status,
		SubtotalCents: 0,
		TotalCents:    0,
	}
	for i := range items {
		items[i].ID = uuid.New()
		items[i].OrderID = order.ID
		order.SubtotalCents += items[i].UnitPriceCents
	}
	order.TotalCents = order.SubtotalCents
	require.NoError(t, db.Create(&order).Error)
	for i := range items {
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return &order
}

func TestLibraryExpandsPackPurchases(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersTestService(t, db)
	userID := uuid.New()

	pack := models.SamplePack{
		ID: uuid.New(), CreatorID: uuid.New(), Title: "Analog Keys", Slug: "analog-keys",
		PriceCents: 1999, Status: enums.PackStatusPublished,
	}
	require.NoError(t, db.Create(&pack).Error)

	packSampleA := models.Sample{
		ID: uuid.New(), PackID: &pack.ID, CreatorID: pack.CreatorID, Title: "Rhodes Chord",
		DurationSeconds: 2.1, HasWAV: true, HasStems: true,
	}
	packSampleB := models.Sample{
		ID: uuid.New(), PackID: &pack.ID, CreatorID: pack.CreatorID, Title: "Wurli Stab",
		DurationSeconds: 1.8, HasWAV: true,
	}
	loose := models.Sample{
		ID: uuid.New(), CreatorID: uuid.New(), Title: "808 Slide",
		DurationSeconds: 3.0, HasWAV: true, HasMIDI: true, PriceWAVCents: 499,
	}
	for _, s := range []*models.Sample{&packSampleA, &packSampleB, &loose} {
		require.NoError(t, db.Create(s).Error)
	}

	wav := enums.SampleFormatWAV
	seedOrderWithItems(t, db, userID, enums.OrderStatusPaid, []models.OrderItem{
		{PackID: &pack.ID, Title: pack.Title, UnitPriceCents: 1999},
		{SampleID: &loose.ID, Format: &wav, Title: loose.Title, UnitPriceCents: 499},
	})

	view, err := svc.Library(context.Background(), userID)
	require.NoError(t, err)

	require.Len(t, view.Packs, 1)
	assert.Equal(t, pack.ID, view.Packs[0].ID)
	assert.Equal(t, 2, view.Packs[0].SampleCount)

	require.Len(t, view.Samples, 3)
	byTitle := make(map[string]LibrarySample)
	for _, sample := range view.Samples {
		byTitle[sample.Title] = sample
	}
	// Pack ownership unlocks every format the sample ships with.
	assert.ElementsMatch(t, []enums.SampleFormat{enums.SampleFormatWAV, enums.SampleFormatStems}, byTitle["Rhodes Chord"].Formats)
	assert.ElementsMatch(t, []enums.SampleFormat{enums.SampleFormatWAV}, byTitle["Wurli Stab"].Formats)
	// A direct purchase unlocks only the purchased format.
	assert.ElementsMatch(t, []enums.SampleFormat{enums.SampleFormatWAV}, byTitle["808 Slide"].Formats)
}

func TestLibraryIgnoresUnpaidOrders(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersTestService(t, db)
	userID := uuid.New()

	sample := models.Sample{
		ID: uuid.New(), CreatorID: uuid.New(), Title: "Pending Loop",
		DurationSeconds: 2.0, HasWAV: true, PriceWAVCents: 299,
	}
	require.NoError(t, db.Create(&sample).Error)

	wav := enums.SampleFormatWAV
	seedOrderWithItems(t, db, userID, enums.OrderStatusPending, []models.OrderItem{
		{SampleID: &sample.ID, Format: &wav, Title: sample.Title, UnitPriceCents: 299},
	})

	view, err := svc.Library(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, view.Samples)
	assert.Empty(t, view.Packs)
}

func TestHistoryPaginatesNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersTestService(t, db)
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		order := seedOrderWithItems(t, db, userID, enums.OrderStatusPaid, []models.OrderItem{
			{Title: "Item", UnitPriceCents: 100 * (i + 1)},
		})
		createdAt := time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).UpdateColumn("created_at", createdAt).Error)
	}

	first, err := svc.History(context.Background(), userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, 300, first.Items[0].TotalCents)

	second, err := svc.History(context.Background(), userID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 100, second.Items[0].TotalCents)
	assert.Empty(t, second.NextCursor)
}

func TestGetOrderHidesOtherUsers(t *testing.T) {
	db := setupOrdersTestDB(t)
	svc := newOrdersTestService(t, db)
	owner := uuid.New()

	order := seedOrderWithItems(t, db, owner, enums.OrderStatusPaid, []models.OrderItem{
		{Title: "Item", UnitPriceCents: 500},
	})

	view, err := svc.GetOrder(context.Background(), owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, view.ID)
	require.Len(t, view.Items, 1)

	_, err = svc.GetOrder(context.Background(), uuid.New(), order.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
