package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vouchernet-backend/api/routes"
	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/campaigns"
	"github.com/angelmondragon/vouchernet-backend/internal/customers"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/imports"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/sales"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/instance"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/redis"
)

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
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(logg, "dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)

	directory, err := hierarchy.NewDirectory(hierarchy.NewRepository(conn))
	requireResource(logg, "hierarchy directory", err)
	catalog, err := pricing.NewCatalog(pricing.NewRepository(conn))
	requireResource(logg, "pricing catalog", err)

	notificationRepo := notifications.NewRepository(conn)
	sink, err := notifications.NewSink(notifications.SinkParams{
		Repository: notificationRepo,
		Logger:     logg,
		Metrics:    ledgerMetrics,
		Timeout:    cfg.Ledger.SideEffectTimeout,
	})
	requireResource(logg, "notification sink", err)
	notificationService, err := notifications.NewService(notificationRepo)
	requireResource(logg, "notification service", err)

	auditLog, err := activity.NewLog(activity.LogParams{
		Repository: activity.NewRepository(conn),
		Logger:     logg,
		Metrics:    ledgerMetrics,
		Timeout:    cfg.Ledger.SideEffectTimeout,
	})
	requireResource(logg, "activity log", err)

	emitter := outbox.NewWriter(outbox.NewRepository(conn), logg)

	stockRepo := stock.NewRepository(conn)
	ledger, err := stock.NewLedger(stockRepo)
	requireResource(logg, "stock ledger", err)
	stockService, err := stock.NewService(stock.ServiceParams{
		DB:        dbClient,
		Repo:      stockRepo,
		Ledger:    ledger,
		Directory: directory,
		Outbox:    emitter,
		Notifier:  sink,
		Audit:     auditLog,
		Metrics:   ledgerMetrics,
		Logger:    logg,
	})
	requireResource(logg, "stock service", err)

	processor, err := sales.NewProcessor(sales.ProcessorParams{
		DB:                dbClient,
		Repo:              sales.NewRepository(conn),
		Ledger:            ledger,
		Directory:         directory,
		Pricing:           catalog,
		Outbox:            emitter,
		Notifier:          sink,
		Audit:             auditLog,
		Metrics:           ledgerMetrics,
		Logger:            logg,
		LowStockThreshold: cfg.Ledger.LowStockThreshold,
	})
	requireResource(logg, "sale processor", err)

	importer, err := imports.NewImporter(imports.ImporterParams{
		Processor: processor,
		Directory: directory,
		Audit:     auditLog,
		Metrics:   ledgerMetrics,
		Logger:    logg,
		MaxRows:   cfg.Ledger.ImportMaxRows,
	})
	requireResource(logg, "sales importer", err)

	customerService, err := customers.NewService(customers.ServiceParams{
		DB:               dbClient,
		Repo:             customers.NewRepository(conn),
		Directory:        directory,
		Outbox:           emitter,
		Notifier:         sink,
		Audit:            auditLog,
		Metrics:          ledgerMetrics,
		Logger:           logg,
		LoyaltyThreshold: cfg.Ledger.LoyaltyThreshold,
	})
	requireResource(logg, "customer service", err)

	engine, err := campaigns.NewEngine(campaigns.EngineParams{
		DB:         dbClient,
		Repo:       campaigns.NewRepository(conn),
		Directory:  directory,
		Outbox:     emitter,
		Notifier:   sink,
		Audit:      auditLog,
		Metrics:    ledgerMetrics,
		Logger:     logg,
		CloseGrace: cfg.Ledger.CampaignCloseGrace,
	})
	requireResource(logg, "campaign engine", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			promhttp.Handler(),
			stockService,
			processor,
			importer,
			customerService,
			engine,
			notificationService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to initialize "+name, err)
	os.Exit(1)
}
