package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/metrics"
)

// Locker is the Redis slice used for run mutual exclusion.
type Locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	SyncLeaseKey(storeID string) string
}

// StoreLister returns the stores eligible for periodic sync.
type StoreLister interface {
	List(ctx context.Context, onlyActive bool) ([]models.Store, error)
}

// Enqueuer accepts the refresh items a run produces.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *models.SyncQueueItem) error
}

// Drainer processes queue items until none are eligible.
type Drainer interface {
	ProcessOne(ctx context.Context) (bool, error)
}

// Stamper persists the completed run time.
type Stamper interface {
	StampLastSync(ctx context.Context, storeID uuid.UUID, at time.Time) error
}

// Notifier publishes the run summary. Nil-safe implementations are expected.
type Notifier interface {
	Publish(ctx context.Context, data []byte) error
}

type ServiceParams struct {
	Stores   StoreLister
	Queue    Enqueuer
	Drainer  Drainer
	Locker   Locker
	Stamper  Stamper
	Notifier Notifier
	Metrics  *metrics.SyncMetrics
	Logger   *logger.Logger
	Config   config.SyncConfig
}

// Service runs periodic per-store syncs with lease-based re-entrancy guards
// and cooldowns. One store failing never stops the others.
type Service struct {
	stores    StoreLister
	queue     Enqueuer
	drainer   Drainer
	locker    Locker
	stamper   Stamper
	notifier  Notifier
	metrics   *metrics.SyncMetrics
	logg      *logger.Logger
	cfg       config.SyncConfig
	owner     string
	collector *Collector
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Stores == nil:
		return nil, errors.New("store lister is required")
	case params.Queue == nil:
		return nil, errors.New("queue is required")
	case params.Drainer == nil:
		return nil, errors.New("drainer is required")
	case params.Locker == nil:
		return nil, errors.New("locker is required")
	case params.Stamper == nil:
		return nil, errors.New("stamper is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	cfg := params.Config
	if cfg.SchedulerInterval <= 0 {
		cfg.SchedulerInterval = 15 * time.Minute
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Minute
	}
	return &Service{
		stores:    params.Stores,
		queue:     params.Queue,
		drainer:   params.Drainer,
		locker:    params.Locker,
		stamper:   params.Stamper,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       cfg,
		owner:     uuid.NewString(),
		collector: NewCollector(),
		now:       time.Now,
	}, nil
}

// Sink returns the outcome aggregator to install on the queue processor.
func (s *Service) Sink() *Collector {
	return s.collector
}

// StoreSummary is one store's slice of a cycle report.
type StoreSummary struct {
	StoreID      uuid.UUID `json:"store_id"`
	Platform     string    `json:"platform"`
	Imported     int       `json:"imported"`
	Updated      int       `json:"updated"`
	Skipped      int       `json:"skipped"`
	OrdersSynced int       `json:"orders_synced"`
	Failed       int       `json:"failed"`
	SkippedRun   bool      `json:"skipped_run,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// CycleReport aggregates one full scheduler pass.
type CycleReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stores     []StoreSummary `json:"stores"`
}

// ErrLeaseHeld signals that another worker owns the cycle or store lease.
var ErrLeaseHeld = errors.New("sync lease is held elsewhere")

// Run loops until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		if _, err := s.RunCycle(ctx, false); err != nil && !errors.Is(err, ErrLeaseHeld) {
			s.logg.Error(ctx, "sync cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one pass over all active stores. Errors from individual
// stores are aggregated; the cycle itself only fails on infrastructure
// problems (listing stores, lease backend down).
func (s *Service) RunCycle(ctx context.Context, force bool) (*CycleReport, error) {
	cycleKey := s.locker.SyncLeaseKey("cycle")
	acquired, err := s.locker.SetNX(ctx, cycleKey, s.owner, s.cfg.LeaseTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		s.logg.Info(ctx, "sync cycle lease held elsewhere; skipping")
		return nil, ErrLeaseHeld
	}
	defer func() {
		if err := s.locker.Del(ctx, cycleKey); err != nil {
			s.logg.Warn(ctx, "releasing cycle lease failed: "+err.Error())
		}
	}()

	stores, err := s.stores.List(ctx, true)
	if err != nil {
		return nil, err
	}

	report := &CycleReport{StartedAt: s.now()}
	var runErrs error
	for i := range stores {
		store := &stores[i]
		if !store.Platform.IsMarketplace() {
			continue
		}
		summary, err := s.runStore(ctx, store, force)
		if err != nil && !errors.Is(err, ErrLeaseHeld) {
			summary.Error = err.Error()
			runErrs = multierr.Append(runErrs, err)
			s.metrics.IncRunFailure(string(store.Platform))
		}
		report.Stores = append(report.Stores, summary)
	}
	report.FinishedAt = s.now()

	s.publish(ctx, report)
	if runErrs != nil {
		s.logg.Warn(ctx, "sync cycle finished with errors: "+runErrs.Error())
	}
	return report, nil
}

// RunStore syncs one store on demand (the manual trigger endpoint).
func (s *Service) RunStore(ctx context.Context, store *models.Store, force bool) (StoreSummary, error) {
	return s.runStore(ctx, store, force)
}

func (s *Service) runStore(ctx context.Context, store *models.Store, force bool) (StoreSummary, error) {
	summary := StoreSummary{StoreID: store.ID, Platform: string(store.Platform)}
	lctx := s.logg.WithStoreID(s.logg.WithPlatform(ctx, string(store.Platform)), store.ID.String())

	// re-entrancy guard: one sync per store at a time, process-independent
	leaseKey := s.locker.SyncLeaseKey(store.ID.String())
	acquired, err := s.locker.SetNX(ctx, leaseKey, s.owner, s.cfg.LeaseTTL)
	if err != nil {
		return summary, err
	}
	if !acquired {
		summary.SkippedRun = true
		s.logg.Info(lctx, "store sync already in progress; skipping")
		return summary, ErrLeaseHeld
	}
	defer func() {
		if err := s.locker.Del(ctx, leaseKey); err != nil {
			s.logg.Warn(lctx, "releasing store lease failed: "+err.Error())
		}
	}()

	if !force && s.inCooldown(store) {
		summary.SkippedRun = true
		s.logg.Info(lctx, "store synced recently; cooldown skip")
		return summary, nil
	}

	started := s.now()
	s.collector.reset(store.ID)

	if err := s.enqueueRefresh(ctx, store, force); err != nil {
		return summary, err
	}
	if err := s.drain(ctx); err != nil {
		return summary, err
	}

	counts := s.collector.forStore(store.ID)
	summary.Imported = counts.imports.Imported
	summary.Updated = counts.imports.Updated
	summary.Skipped = counts.imports.Skipped
	summary.OrdersSynced = counts.orders
	summary.Failed = counts.failed

	if err := s.stamper.StampLastSync(ctx, store.ID, s.now()); err != nil {
		return summary, err
	}

	s.metrics.ObserveRunDuration(string(store.Platform), s.now().Sub(started))
	s.metrics.IncRunSuccess(string(store.Platform))
	s.logg.Info(s.logg.WithFields(lctx, map[string]any{
		"imported":      summary.Imported,
		"updated":       summary.Updated,
		"skipped":       summary.Skipped,
		"orders_synced": summary.OrdersSynced,
		"failed":        summary.Failed,
	}), "store sync completed")
	return summary, nil
}

func (s *Service) inCooldown(store *models.Store) bool {
	if s.cfg.Cooldown <= 0 || store.LastSyncAt == nil {
		return false
	}
	return s.now().Sub(*store.LastSyncAt) < s.cfg.Cooldown
}

func (s *Service) enqueueRefresh(ctx context.Context, store *models.Store, force bool) error {
	productItem := &models.SyncQueueItem{
		StoreID:   store.ID,
		SyncType:  enums.SyncTypeProductRefresh,
		Direction: enums.SyncDirectionInbound,
		Priority:  enums.PriorityLow,
	}
	if err := s.queue.Enqueue(ctx, productItem); err != nil {
		return err
	}

	orderItem := &models.SyncQueueItem{
		StoreID:   store.ID,
		SyncType:  enums.SyncTypeOrderRefresh,
		Direction: enums.SyncDirectionInbound,
		Priority:  enums.PriorityLow,
	}
	if force {
		// full window instead of the incremental lastSync one
		payload, err := json.Marshal(map[string]int64{"from": 0})
		if err != nil {
			return err
		}
		orderItem.Payload = payload
	}
	return s.queue.Enqueue(ctx, orderItem)
}

func (s *Service) drain(ctx context.Context) error {
	for {
		claimed, err := s.drainer.ProcessOne(ctx)
		if err != nil {
			return err
		}
		if !claimed {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *Service) publish(ctx context.Context, report *CycleReport) {
	if s.notifier == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.logg.Error(ctx, "encoding cycle report", err)
		return
	}
	if err := s.notifier.Publish(ctx, data); err != nil {
		s.logg.Warn(ctx, "publishing sync summary failed: "+err.Error())
	}
}

// Collector aggregates processor outcomes per store. It satisfies
// syncqueue.ResultSink and is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	counts map[uuid.UUID]*storeCounts
}

type storeCounts struct {
	imports reconcile.Summary
	orders  int
	failed  int
}

func NewCollector() *Collector {
	return &Collector{counts: map[uuid.UUID]*storeCounts{}}
}

func (c *Collector) RecordImport(storeID uuid.UUID, summary reconcile.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entry(storeID)
	entry.imports = entry.imports.Add(summary)
}

func (c *Collector) RecordOrders(storeID uuid.UUID, synced int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(storeID).orders += synced
}

func (c *Collector) RecordFailure(storeID uuid.UUID, _ enums.SyncType, terminal bool) {
	if !terminal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(storeID).failed++
}

func (c *Collector) entry(storeID uuid.UUID) *storeCounts {
	if c.counts[storeID] == nil {
		c.counts[storeID] = &storeCounts{}
	}
	return c.counts[storeID]
}

func (c *Collector) reset(storeID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, storeID)
}

func (c *Collector) forStore(storeID uuid.UUID) storeCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry := c.counts[storeID]; entry != nil {
		return *entry
	}
	return storeCounts{}
}
