package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/instance"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vouchernet-backend/pkg/pubsub"
	"github.com/angelmondragon/vouchernet-backend/pkg/redis"
)

const serviceName = "outbox-publisher"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.New(logger.Options{ServiceName: serviceName}).Warn(context.Background(), "ignoring unreadable .env")
	}
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	boot := logger.New(logger.Options{ServiceName: serviceName})
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "config.load_failed", err)
		return err
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(ctx, "db.connect_failed", err)
		return err
	}
	defer closeQuietly(ctx, logg, "db", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "db.dev_migrations_failed", err)
		return err
	}

	broker, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "pubsub.connect_failed", err)
		return err
	}
	defer closeQuietly(ctx, logg, "pubsub", broker.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "redis.connect_failed", err)
		return err
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	guard, err := idempotency.New(redisClient, serviceName, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "guard.init_failed", err)
		return err
	}
	routes, err := registry.New(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "registry.init_failed", err)
		return err
	}

	relay, err := NewRelay(RelayParams{
		Config:   cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		Store:    outbox.NewRepository(dbClient.DB()),
		Broker:   broker,
		Registry: routes,
		Guard:    guard,
		Metrics:  metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(ctx, "relay.init_failed", err)
		return err
	}

	logg.Info(ctx, "relay.starting")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "relay.stopped", err)
		return err
	}
	logg.Info(ctx, "relay.shutdown")
	return nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "dependency", name), "close_failed", err)
	}
}
