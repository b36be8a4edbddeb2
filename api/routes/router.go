package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wavecrate/wavecrate-backend/api/controllers"
	webhookcontrollers "github.com/wavecrate/wavecrate-backend/api/controllers/webhooks"
	"github.com/wavecrate/wavecrate-backend/api/middleware"
	"github.com/wavecrate/wavecrate-backend/internal/auth"
	cartsvc "github.com/wavecrate/wavecrate-backend/internal/cart"
	"github.com/wavecrate/wavecrate-backend/internal/catalog"
	checkoutsvc "github.com/wavecrate/wavecrate-backend/internal/checkout"
	"github.com/wavecrate/wavecrate-backend/internal/delivery"
	"github.com/wavecrate/wavecrate-backend/internal/notifications"
	"github.com/wavecrate/wavecrate-backend/internal/orders"
	stripewebhook "github.com/wavecrate/wavecrate-backend/internal/webhooks/stripe"
	"github.com/wavecrate/wavecrate-backend/pkg/auth/session"
	"github.com/wavecrate/wavecrate-backend/pkg/config"
	"github.com/wavecrate/wavecrate-backend/pkg/db"
	"github.com/wavecrate/wavecrate-backend/pkg/logger"
	"github.com/wavecrate/wavecrate-backend/pkg/redis"
	"github.com/wavecrate/wavecrate-backend/pkg/storage/gcs"
	"github.com/wavecrate/wavecrate-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	sessionChecker session.AccessSessionChecker,
	authService auth.Service,
	registerService auth.RegisterService,
	catalogService catalog.Service,
	cartService cartsvc.Service,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	deliveryService delivery.Service,
	notificationsService notifications.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, logg))
	})

	// Public storefront. GetPack runs the optional auth middleware so
	// creators can see their own drafts through the same route.
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/packs", controllers.BrowsePacks(catalogService, logg))
		r.With(middleware.OptionalAuth(cfg.JWT, sessionChecker, logg)).Get("/packs/{packID}", controllers.GetPack(catalogService, logg))
		r.Get("/samples/{sampleID}", controllers.GetSample(catalogService, logg))
	})

	// Authenticated surface.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionChecker, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(cartService, logg))
			r.Post("/", controllers.CartAddItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.CartRemoveItem(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
		})

		r.Post("/checkout/stripe", controllers.CheckoutStripe(checkoutService, logg))

		r.Get("/library", controllers.Library(ordersService, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderHistory(ordersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(ordersService, logg))
		})

		r.Get("/audio/{sampleID}", controllers.StreamAudio(deliveryService, logg))
		r.Get("/download/sample/{sampleID}", controllers.SampleDownloadURL(deliveryService, logg))
		r.Get("/stream/sample/{sampleID}", controllers.SampleStreamURL(deliveryService, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationsList(notificationsService, logg))
			r.Get("/unread-count", controllers.NotificationsUnreadCount(notificationsService, logg))
			r.Post("/read-all", controllers.NotificationsMarkAllRead(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(notificationsService, logg))
		})

		r.Route("/creator", func(r chi.Router) {
			r.Use(middleware.RequireCreator(logg))

			r.Route("/packs", func(r chi.Router) {
				r.Get("/", controllers.ListMyPacks(catalogService, logg))
				r.Post("/", controllers.CreatePack(catalogService, logg))
				r.Patch("/{packID}", controllers.UpdatePack(catalogService, logg))
				r.Post("/{packID}/publish", controllers.PublishPack(catalogService, logg))
				r.Post("/{packID}/archive", controllers.ArchivePack(catalogService, logg))
				r.Delete("/{packID}", controllers.DeletePack(catalogService, logg))
				r.Post("/{packID}/samples", controllers.AddSample(catalogService, logg))
			})

			r.Post("/samples", controllers.AddSample(catalogService, logg))
			r.Patch("/samples/{sampleID}", controllers.UpdateSample(catalogService, logg))
			r.Delete("/samples/{sampleID}", controllers.DeleteSample(catalogService, logg))
			r.Post("/samples/{sampleID}/upload-url", controllers.SampleUploadURL(catalogService, logg))
			r.Get("/earnings", controllers.CreatorEarnings(catalogService, logg))
		})
	})

	return r
}
