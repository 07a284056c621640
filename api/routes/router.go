package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vouchernet-backend/api/controllers"
	"github.com/angelmondragon/vouchernet-backend/api/middleware"
	"github.com/angelmondragon/vouchernet-backend/internal/campaigns"
	"github.com/angelmondragon/vouchernet-backend/internal/customers"
	"github.com/angelmondragon/vouchernet-backend/internal/imports"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/sales"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/redis"
)

// Ledger mutations keep their replay records for a week so a retried sale or
// import can never deduct stock twice.
const (
	ledgerReplayWindow  = 7 * 24 * time.Hour
	defaultReplayWindow = 24 * time.Hour
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	stockService stock.Service,
	salesProcessor sales.Processor,
	importer imports.Importer,
	customerService customers.Service,
	campaignEngine campaigns.Engine,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["database"] = dbP
	}
	// A typed nil client must not reach the middleware interfaces.
	importPolicy := middleware.NewRateLimitPolicy("import", cfg.RateLimit.Window, cfg.RateLimit.ImportLimit)
	ledgerOnce := middleware.Idempotent(nil, logg, ledgerReplayWindow)
	once := middleware.Idempotent(nil, logg, defaultReplayWindow)
	importLimit := middleware.RateLimit(importPolicy, nil, logg)
	if redisClient != nil {
		readiness["redis"] = redisClient
		ledgerOnce = middleware.Idempotent(redisClient, logg, ledgerReplayWindow)
		once = middleware.Idempotent(redisClient, logg, defaultReplayWindow)
		importLimit = middleware.RateLimit(importPolicy, redisClient, logg)
	}
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	r.Handle("/metrics", metricsHandler)

	staff := middleware.RequireRoles(logg, enums.RoleOwner, enums.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/stock", func(r chi.Router) {
			r.With(middleware.RequireRoles(logg, enums.RoleOwner, enums.RoleAdmin, enums.RoleMitraCabang), ledgerOnce).
				Post("/", controllers.AddStock(stockService, logg))
			r.Get("/{sellerId}", controllers.ListStock(stockService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.ListSales(salesProcessor, logg))
			r.With(ledgerOnce).Post("/", controllers.RecordSale(salesProcessor, logg))
			r.Get("/{saleId}", controllers.GetSale(salesProcessor, logg))
			r.Post("/preview", controllers.PreviewSale(salesProcessor, logg))
			r.With(staff, importLimit, ledgerOnce).Post("/import", controllers.ImportSales(importer, logg))
		})

		r.Route("/customers", func(r chi.Router) {
			r.Use(middleware.RequireRoles(logg, enums.RoleLink))
			r.Post("/", controllers.CreateCustomer(customerService, logg))
			r.With(ledgerOnce).Post("/{customerId}/transactions", controllers.RecordCustomerTransaction(customerService, logg))
			r.Get("/{customerId}/transactions", controllers.ListCustomerTransactions(customerService, logg))
			r.Get("/{customerId}/coupons", controllers.ListCustomerCoupons(customerService, logg))
			r.Post("/{customerId}/coupons/{couponId}/redeem", controllers.RedeemCoupon(customerService, logg))
		})

		r.With(staff).Post("/loyalty-campaigns", controllers.CreateLoyaltyCampaign(customerService, logg))

		r.Route("/campaigns", func(r chi.Router) {
			r.With(staff).Post("/", controllers.CreateCampaign(campaignEngine, logg))
			r.Get("/{campaignId}/leaderboard", controllers.CampaignLeaderboard(campaignEngine, logg))
			r.With(once).Post("/{campaignId}/claims", controllers.SubmitClaim(campaignEngine, logg))
		})
		r.With(staff).Post("/claims/{claimId}/review", controllers.ReviewClaim(campaignEngine, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.With(once).Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.With(once).Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	return r
}
