package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/wavecrate/wavecrate-backend/api/routes"
	"github.com/wavecrate/wavecrate-backend/internal/auth"
	cartsvc "github.com/wavecrate/wavecrate-backend/internal/cart"
	"github.com/wavecrate/wavecrate-backend/internal/catalog"
	checkoutsvc "github.com/wavecrate/wavecrate-backend/internal/checkout"
	"github.com/wavecrate/wavecrate-backend/internal/delivery"
	"github.com/wavecrate/wavecrate-backend/internal/entitlement"
	"github.com/wavecrate/wavecrate-backend/internal/notifications"
	"github.com/wavecrate/wavecrate-backend/internal/orders"
	"github.com/wavecrate/wavecrate-backend/internal/users"
	stripewebhook "github.com/wavecrate/wavecrate-backend/internal/webhooks/stripe"
	"github.com/wavecrate/wavecrate-backend/pkg/auth/session"
	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/migrate"
	"github.com/wavecrate/wavecrate-backend/pkg/outbox"
	"github.com/wavecrate/wavecrate-backend/pkg/redis"
	"github.com/wavecrate/wavecrate-backend/pkg/storage/gcs"
	"github.com/wavecrate/wavecrate-backend/pkg/stripe"
)

const stripeWebhookDedupeTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()

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

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(gormDB),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(ctx, "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(ctx, "failed to create register service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		TxRunner:        dbClient,
		PackRepo:        catalog.NewPackRepository(gormDB),
		SampleRepo:      catalog.NewSampleRepository(gormDB),
		Outbox:          outboxService,
		Uploads:         gcsClient,
		UploadURLExpiry: cfg.GCS.UploadURLExpiry,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	cartService, err := cartsvc.NewService(cartsvc.ServiceParams{
		TxRunner: dbClient,
		Repo:     cartsvc.NewRepository(gormDB),
		Samples:  catalog.NewSampleRepository(gormDB),
		Packs:    catalog.NewPackRepository(gormDB),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		TxRunner:   dbClient,
		Orders:     ordersRepo,
		Stripe:     checkoutsvc.NewStripeClient(stripeClient),
		Outbox:     outboxService,
		SuccessURL: stripeClient.SuccessURL(),
		CancelURL:  stripeClient.CancelURL(),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:   ordersRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	resolver, err := entitlement.NewResolver(entitlement.ResolverParams{
		Samples:   catalog.NewSampleRepository(gormDB),
		Packs:     catalog.NewPackRepository(gormDB),
		Purchases: ordersRepo,
	})
	if err != nil {
		logg.Error(ctx, "failed to create entitlement resolver", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Resolver: resolver,
		Samples:  catalog.NewSampleRepository(gormDB),
		Packs:    catalog.NewPackRepository(gormDB),
		Storage:  gcsClient,
		Config:   cfg.Delivery,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create delivery service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Checkout: checkoutService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeWebhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeWebhookDedupeTTL, "stripe-webhook")
	if err != nil {
		logg.Error(ctx, "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			sessionManager,
			authService,
			registerService,
			catalogService,
			cartService,
			checkoutService,
			ordersService,
			deliveryService,
			notificationsService,
			stripeClient,
			stripeWebhookService,
			stripeWebhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
