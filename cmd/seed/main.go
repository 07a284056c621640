package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/vouchernet-backend/internal/activity"
	"github.com/angelmondragon/vouchernet-backend/internal/hierarchy"
	"github.com/angelmondragon/vouchernet-backend/internal/notifications"
	"github.com/angelmondragon/vouchernet-backend/internal/pricing"
	"github.com/angelmondragon/vouchernet-backend/internal/seed"
	"github.com/angelmondragon/vouchernet-backend/internal/stock"
	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db"
	"github.com/angelmondragon/vouchernet-backend/pkg/logger"
	"github.com/angelmondragon/vouchernet-backend/pkg/migrate"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})
	_ = godotenv.Load()

	file := flag.String("file", "seed/network.yaml", "network fixture to load")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "seed",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "file": *file})

	f, err := os.Open(*file)
	requireResource(logg, "fixture file", err)
	fixture, err := seed.Parse(f)
	_ = f.Close()
	requireResource(logg, "fixture", err)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()
	requireResource(logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	conn := dbClient.DB()
	directory, err := hierarchy.NewDirectory(hierarchy.NewRepository(conn))
	requireResource(logg, "hierarchy directory", err)
	catalog, err := pricing.NewCatalog(pricing.NewRepository(conn))
	requireResource(logg, "pricing catalog", err)
	sink, err := notifications.NewSink(notifications.SinkParams{Repository: notifications.NewRepository(conn), Logger: logg})
	requireResource(logg, "notification sink", err)
	auditLog, err := activity.NewLog(activity.LogParams{Repository: activity.NewRepository(conn), Logger: logg})
	requireResource(logg, "activity log", err)

	stockRepo := stock.NewRepository(conn)
	ledger, err := stock.NewLedger(stockRepo)
	requireResource(logg, "stock ledger", err)
	stockSvc, err := stock.NewService(stock.ServiceParams{
		DB:        dbClient,
		Repo:      stockRepo,
		Ledger:    ledger,
		Directory: directory,
		Outbox:    outbox.NewWriter(outbox.NewRepository(conn), logg),
		Notifier:  sink,
		Audit:     auditLog,
		Logger:    logg,
	})
	requireResource(logg, "stock service", err)

	loader, err := seed.NewLoader(seed.LoaderParams{Directory: directory, Pricing: catalog, Stock: stockSvc, Logger: logg})
	requireResource(logg, "seed loader", err)

	sum, err := loader.Load(ctx, fixture)
	requireResource(logg, "seed load", err)
	fmt.Printf("seeded: %d nodes created, %d existing, %d prices, %d stock units\n",
		sum.NodesCreated, sum.NodesExisting, sum.PricesStored, sum.StockUnits)
}

func requireResource(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("failed to initialize %s", name), err)
	os.Exit(1)
}
