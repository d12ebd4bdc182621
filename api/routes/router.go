package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kasirkita/kasirkita-backend/api/controllers"
	webhookcontrollers "github.com/kasirkita/kasirkita-backend/api/controllers/webhooks"
	"github.com/kasirkita/kasirkita-backend/api/middleware"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/redis"
)

// Deps carries the wired services the router exposes over HTTP.
type Deps struct {
	DB             db.Pinger
	Redis          *redis.Client
	Stores         controllers.StoreService
	SyncTrigger    controllers.SyncTrigger
	Queue          controllers.QueueRepository
	Marketplace    controllers.MarketplaceUpdater
	ShopeeIngestor webhookcontrollers.ShopeeIngestor
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var cache controllers.Pinger
	if deps.Redis != nil {
		cache = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, cache))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/shopee", webhookcontrollers.ShopeeWebhook(deps.ShopeeIngestor, logg))
	})

	// The POS shell calls this from a file:// origin, so the group runs
	// with open CORS and OPTIONS preflight answered by the middleware.
	r.Route("/api/v1/marketplace", func(r chi.Router) {
		r.Use(middleware.OpenCORS())
		r.Post("/update", controllers.MarketplaceUpdate(deps.Marketplace, logg))
	})

	r.Route("/api/v1/stores", func(r chi.Router) {
		r.Get("/", controllers.StoreList(deps.Stores, logg))
		r.Post("/connect", controllers.StoreConnect(deps.Stores, logg))
		r.Delete("/{id}", controllers.StoreDisconnect(deps.Stores, logg))
		r.Post("/{id}/sync", controllers.StoreSync(deps.Stores, deps.SyncTrigger, logg))
	})

	r.Route("/api/v1/sync/queue", func(r chi.Router) {
		r.Get("/", controllers.QueueList(deps.Queue, logg))
		r.Post("/{id}/retry", controllers.QueueRetry(deps.Queue, logg))
	})

	return r
}
