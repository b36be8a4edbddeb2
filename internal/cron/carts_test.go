package cron

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/metrics"
)

func setupCronTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
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

type cronTxRunner struct {
	db *gorm.DB
}

func (c cronTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.db.WithContext(ctx).Transaction(fn)
}

func newCronTestService(t *testing.T, db *gorm.DB, maxAge time.Duration) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:      cronTxRunner{db: db},
		Metrics: metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		Config:  config.CronConfig{CartExpiry: maxAge},
	})
	require.NoError(t, err)
	return svc
}

func seedCart(t *testing.T, db *gorm.DB, status enums.CartStatus, age time.Duration) uuid.UUID {
	t.Helper()
	record := models.CartRecord{ID: uuid.New(), UserID: uuid.New(), Status: status}
	require.NoError(t, db.Create(&record).Error)
	require.NoError(t, db.Create(&models.CartItem{
		ID: uuid.New(), CartID: record.ID, Title: "Item", UnitPriceCents: 100,
	}).Error)
	touched := time.Now().UTC().Add(-age)
	require.NoError(t, db.Model(&models.CartRecord{}).Where("id = ?", record.ID).
		UpdateColumn("updated_at", touched).Error)
	return record.ID
}

func TestExpireCartsDropsOnlyStaleActiveCarts(t *testing.T) {
	db := setupCronTestDB(t)
	svc := newCronTestService(t, db, 720*time.Hour)

	stale := seedCart(t, db, enums.CartStatusActive, 1000*time.Hour)
	fresh := seedCart(t, db, enums.CartStatusActive, time.Hour)
	converted := seedCart(t, db, enums.CartStatusConverted, 1000*time.Hour)

	require.NoError(t, svc.RunOnce(context.Background()))

	var carts []models.CartRecord
	require.NoError(t, db.Find(&carts).Error)
	ids := make(map[uuid.UUID]bool)
	for _, cart := range carts {
		ids[cart.ID] = true
	}
	assert.False(t, ids[stale])
	assert.True(t, ids[fresh])
	assert.True(t, ids[converted])

	// The stale cart's items went with it.
	var orphaned int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("cart_id = ?", stale).Count(&orphaned).Error)
	assert.Zero(t, orphaned)

	var kept int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&kept).Error)
	assert.Equal(t, int64(2), kept)
}

func TestExpireCartsNoopWhenNothingStale(t *testing.T) {
	db := setupCronTestDB(t)
	svc := newCronTestService(t, db, 720*time.Hour)

	seedCart(t, db, enums.CartStatusActive, time.Hour)
	require.NoError(t, svc.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.CartRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
