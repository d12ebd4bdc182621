package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/internal/credentials"
	"github.com/kasirkita/kasirkita-backend/internal/orders"
	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/internal/stock"
	"github.com/kasirkita/kasirkita-backend/internal/stores"
	"github.com/kasirkita/kasirkita-backend/internal/syncqueue"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/metrics"
	"github.com/kasirkita/kasirkita-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	marketplace, err := connector.NewClient(cfg.Marketplace, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create marketplace client", err)
		os.Exit(1)
	}

	storeRepo, err := stores.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create store repository", err)
		os.Exit(1)
	}

	credRepo, err := credentials.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create credential repository", err)
		os.Exit(1)
	}
	credService, err := credentials.NewService(credentials.ServiceParams{
		Repo:      credRepo,
		Refresher: marketplace,
		Logger:    logg,
		TokenSkew: cfg.Marketplace.TokenSkew,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create credential service", err)
		os.Exit(1)
	}

	productRepo, err := reconcile.NewRepository(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create product repository", err)
		os.Exit(1)
	}
	importer, err := reconcile.NewEngine(reconcile.EngineParams{Repo: productRepo, Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		DB:       dbClient.DB(),
		Counters: storeRepo,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	ledger, err := stock.NewLedger(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create stock ledger", err)
		os.Exit(1)
	}

	queueRepo, err := syncqueue.NewRepository(dbClient.DB(), cfg.Sync.MaxRetries)
	if err != nil {
		logg.Error(context.Background(), "failed to create queue repository", err)
		os.Exit(1)
	}

	processor, err := syncqueue.NewProcessor(syncqueue.ProcessorParams{
		Repo:        queueRepo,
		Marketplace: marketplace,
		Credentials: credService,
		Importer:    importer,
		Orders:      ordersService,
		Stock:       ledger,
		Catalog:     productRepo,
		Stores:      storeRepo,
		Metrics:     metrics.NewSyncMetrics(prometheus.DefaultRegisterer),
		Logger:      logg,
		Config:      cfg.Sync,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create queue processor", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sync worker")

	if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync worker shutting down gracefully")
}
