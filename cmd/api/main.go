package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kasirkita/kasirkita-backend/api/routes"
	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/internal/credentials"
	"github.com/kasirkita/kasirkita-backend/internal/orders"
	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/internal/scheduler"
	"github.com/kasirkita/kasirkita-backend/internal/stock"
	"github.com/kasirkita/kasirkita-backend/internal/stores"
	"github.com/kasirkita/kasirkita-backend/internal/syncqueue"
	"github.com/kasirkita/kasirkita-backend/internal/webhooks/shopee"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/metrics"
	"github.com/kasirkita/kasirkita-backend/pkg/migrate"
	"github.com/kasirkita/kasirkita-backend/pkg/pubsub"
	"github.com/kasirkita/kasirkita-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

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
	storeService, err := stores.NewService(stores.ServiceParams{
		Repo:      storeRepo,
		Exchanger: marketplace,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
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

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	processor, err := syncqueue.NewProcessor(syncqueue.ProcessorParams{
		Repo:        queueRepo,
		Marketplace: marketplace,
		Credentials: credService,
		Importer:    importer,
		Orders:      ordersService,
		Stock:       ledger,
		Catalog:     productRepo,
		Stores:      storeRepo,
		Metrics:     syncMetrics,
		Logger:      logg,
		Config:      cfg.Sync,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create queue processor", err)
		os.Exit(1)
	}

	var notifier scheduler.Notifier
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create pubsub client", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier = psClient.SyncNotifier()
	}

	schedService, err := scheduler.NewService(scheduler.ServiceParams{
		Stores:   storeRepo,
		Queue:    queueRepo,
		Drainer:  processor,
		Locker:   redisClient,
		Stamper:  storeRepo,
		Notifier: notifier,
		Metrics:  syncMetrics,
		Logger:   logg,
		Config:   cfg.Sync,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler", err)
		os.Exit(1)
	}
	processor.SetSink(schedService.Sink())

	ingestor, err := shopee.NewIngestor(shopee.IngestorParams{
		DB:       dbClient.DB(),
		Deduper:  redisClient,
		Stores:   storeRepo,
		Queue:    queueRepo,
		Logger:   logg,
		DedupTTL: cfg.Sync.WebhookDedupTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook ingestor", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:             dbClient,
			Redis:          redisClient,
			Stores:         storeService,
			SyncTrigger:    schedService,
			Queue:          queueRepo,
			Marketplace:    marketplace,
			ShopeeIngestor: ingestor,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
