package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/wavecrate/wavecrate-backend/internal/notifications"
	"github.com/wavecrate/wavecrate-backend/internal/users"
	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/mailer"
	"github.com/wavecrate/wavecrate-backend/pkg/migrate"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox/idempotency"
	"github.com/wavecrate/wavecrate-backend/pkg/pubsub"
	"github.com/wavecrate/wavecrate-backend/pkg/redis"
)

const eventDedupeTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	mailClient, err := mailer.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap mailer", err)
		os.Exit(1)
	}

	dedupe, err := idempotency.NewManager(redisClient, eventDedupeTTL)
	if err != nil {
		logg.Error(ctx, "failed to create idempotency manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	repo := notifications.NewRepository(gormDB)
	userRepo := users.NewRepository(gormDB)

	consumers := map[string]*notifications.Consumer{}

	ordersConsumer, err := notifications.NewConsumer(repo, userRepo, mailClient, pubsubClient.OrdersSubscription(), dedupe, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders consumer", err)
		os.Exit(1)
	}
	consumers["orders"] = ordersConsumer

	if cfg.PubSub.CatalogSubscription != "" {
		catalogConsumer, err := notifications.NewConsumer(repo, userRepo, mailClient, pubsubClient.CatalogSubscription(), dedupe, logg)
		if err != nil {
			logg.Error(ctx, "failed to create catalog consumer", err)
			os.Exit(1)
		}
		consumers["catalog"] = catalogConsumer
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting notification worker")

	errCh := make(chan error, len(consumers))
	for name, consumer := range consumers {
		go func(name string, consumer *notifications.Consumer) {
			runCtx := logg.WithField(ctx, "subscription", name)
			logg.Info(runCtx, "consumer receiving")
			errCh <- consumer.Run(ctx)
		}(name, consumer)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "consumer stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "worker shutting down gracefully")
}
