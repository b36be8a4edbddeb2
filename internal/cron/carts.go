package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db/models"
	"github.com/wavecrate/wavecrate-backend/pkg/enums"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/metrics"
)

const cartExpiryJob = "cart_expiry"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs periodic maintenance. The only job today is stale-cart expiry:
// active carts untouched for longer than the configured window are dropped so
// stale price snapshots never reach checkout.
type Service struct {
	logg     *logger.Logger
	db       txRunner
	metrics  *metrics.CronJobMetrics
	maxAge   time.Duration
	interval time.Duration
}

type ServiceParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Metrics *metrics.CronJobMetrics
	Config  config.CronConfig
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("job metrics required")
	}
	maxAge := params.Config.CartExpiry
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	interval := params.Config.TickInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		metrics:  params.Metrics,
		maxAge:   maxAge,
		interval: interval,
	}, nil
}

// Run executes the maintenance loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.process(ctx); err != nil {
		s.logg.Error(ctx, "cron run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron worker context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.process(ctx); err != nil {
				s.logg.Error(ctx, "cron run failed", err)
			}
		}
	}
}

func (s *Service) process(ctx context.Context) error {
	var errs error
	if err := s.runJob(ctx, cartExpiryJob, s.expireCarts); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", cartExpiryJob, err))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, name string, fn func(context.Context) error) error {
	started := time.Now()
	err := fn(ctx)
	s.metrics.ObserveDuration(name, time.Since(started))
	if err != nil {
		s.metrics.IncFailure(name)
		return err
	}
	s.metrics.IncSuccess(name)
	return nil
}

// expireCarts deletes active carts whose last touch predates the window,
// items first, then the records, in one transaction.
func (s *Service) expireCarts(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	var removed int64

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var staleIDs []string
		err := tx.Model(&models.CartRecord{}).
			Where("status = ? AND updated_at < ?", enums.CartStatusActive, cutoff).
			Pluck("id", &staleIDs).Error
		if err != nil {
			return err
		}
		if len(staleIDs) == 0 {
			return nil
		}

		if err := tx.Where("cart_id IN ?", staleIDs).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", staleIDs).Delete(&models.CartRecord{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"removed": removed,
			"cutoff":  cutoff.Format(time.RFC3339),
		})
		s.logg.Info(logCtx, "stale carts expired")
	}
	return nil
}

var errNotRunnable = errors.New("cron service not initialized")

// RunOnce executes a single maintenance pass, used by tests and manual runs.
func (s *Service) RunOnce(ctx context.Context) error {
	if s == nil {
		return errNotRunnable
	}
	return s.process(ctx)
}
