package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/campaigns"
	"github.com/angelmondragon/vouchernet-backend/internal/cron"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/instance"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/metrics"
	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.New(logger.Options{ServiceName: serviceName}).Warn(context.Background(), "ignoring unreadable .env")
	}
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "config.load_failed", err)
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

	fail := func(event string, err error) error {
		logg.Error(ctx, event, err)
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return fail("db.connect_failed", err)
	}
	defer dbClient.Close()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fail("db.dev_migrations_failed", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fail("redis.connect_failed", err)
	}
	defer redisClient.Close()

	schedule, err := buildSchedule(cfg, logg, dbClient)
	if err != nil {
		return fail("cron.schedule_failed", err)
	}

	prefix := serviceName + ":" + cfg.App.Env + ":"
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Schedule: schedule,
		Locks: func(name string, ttl time.Duration) (cron.Lock, error) {
			return cron.NewRedisLock(redisClient, prefix+name, ttl)
		},
		Metrics:    metrics.NewCronMetrics(prometheus.DefaultRegisterer),
		Tick:       cfg.Cron.Tick,
		JobTimeout: cfg.Cron.LockTTL,
	})
	if err != nil {
		return fail("cron.init_failed", err)
	}

	logg.Info(ctx, "cron.starting")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail("cron.stopped", err)
	}
	logg.Info(ctx, "cron.shutdown")
	return nil
}

// buildSchedule wires the closeout and retention jobs. Closeout runs hourly so
// a campaign completes soon after its grace window; purges run daily.
func buildSchedule(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Schedule, error) {
	ledgerMetrics := metrics.NewLedgerMetrics(prometheus.DefaultRegisterer)
	notificationRepo := notifications.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())

	sink, err := notifications.NewSink(notifications.SinkParams{
		Repository: notificationRepo,
		Logger:     logg,
		Metrics:    ledgerMetrics,
		Timeout:    cfg.Ledger.SideEffectTimeout,
	})
	if err != nil {
		return nil, err
	}
	auditLog, err := activity.NewLog(activity.LogParams{
		Repository: activity.NewRepository(dbClient.DB()),
		Logger:     logg,
		Metrics:    ledgerMetrics,
		Timeout:    cfg.Ledger.SideEffectTimeout,
	})
	if err != nil {
		return nil, err
	}
	directory, err := hierarchy.NewDirectory(hierarchy.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	engine, err := campaigns.NewEngine(campaigns.EngineParams{
		DB:         dbClient,
		Repo:       campaigns.NewRepository(dbClient.DB()),
		Directory:  directory,
		Outbox:     outbox.NewWriter(outboxRepo, logg),
		Notifier:   sink,
		Audit:      auditLog,
		Metrics:    ledgerMetrics,
		Logger:     logg,
		CloseGrace: cfg.Ledger.CampaignCloseGrace,
	})
	if err != nil {
		return nil, err
	}

	closeout, err := cron.NewCampaignCloseoutJob(cron.CampaignCloseoutJobParams{Logger: logg, Closer: engine})
	if err != nil {
		return nil, err
	}
	notificationPurge, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:          "notification-retention",
		Logger:        logg,
		DB:            dbClient,
		Purger:        notificationRepo,
		RetentionDays: cfg.Cron.NotificationRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	outboxPurge, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Name:          "outbox-retention",
		Logger:        logg,
		DB:            dbClient,
		Purger:        outboxRepo,
		RetentionDays: cfg.Cron.OutboxRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	schedule := &cron.Schedule{}
	for _, add := range []struct {
		every time.Duration
		job   cron.Job
	}{
		{cfg.Cron.CampaignCloseoutEvery, closeout},
		{cfg.Cron.Interval, notificationPurge},
		{cfg.Cron.Interval, outboxPurge},
	} {
		if err := schedule.Every(add.every, add.job); err != nil {
			return nil, err
		}
	}
	return schedule, nil
}
