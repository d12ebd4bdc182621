package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

type memLocker struct {
	held map[string]bool
}

func (m *memLocker) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if m.held == nil {
		m.held = map[string]bool{}
	}
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

func (m *memLocker) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.held, key)
	}
	return nil
}

func (m *memLocker) SyncLeaseKey(storeID string) string {
	return "kk:sync_lease:" + storeID
}

type stubLister struct {
	stores []models.Store
}

func (s *stubLister) List(_ context.Context, _ bool) ([]models.Store, error) {
	return s.stores, nil
}

type stubQueue struct {
	items []*models.SyncQueueItem
}

func (s *stubQueue) Enqueue(_ context.Context, item *models.SyncQueueItem) error {
	s.items = append(s.items, item)
	return nil
}

// stubDrainer simulates the processor: each ProcessOne call consumes one
// enqueued item and reports into the sink.
type stubDrainer struct {
	queue     *stubQueue
	sink      *Collector
	summary   reconcile.Summary
	orders    int
	failEvery bool
	processed int
}

func (s *stubDrainer) ProcessOne(_ context.Context) (bool, error) {
	if s.processed >= len(s.queue.items) {
		return false, nil
	}
	item := s.queue.items[s.processed]
	s.processed++
	if s.failEvery {
		s.sink.RecordFailure(item.StoreID, item.SyncType, true)
		return true, nil
	}
	switch item.SyncType {
	case enums.SyncTypeProductRefresh:
		s.sink.RecordImport(item.StoreID, s.summary)
	case enums.SyncTypeOrderRefresh:
		s.sink.RecordOrders(item.StoreID, s.orders)
	}
	return true, nil
}

type stubStamper struct {
	stamps map[uuid.UUID]time.Time
	err    error
}

func (s *stubStamper) StampLastSync(_ context.Context, storeID uuid.UUID, at time.Time) error {
	if s.err != nil {
		return s.err
	}
	if s.stamps == nil {
		s.stamps = map[uuid.UUID]time.Time{}
	}
	s.stamps[storeID] = at
	return nil
}

type captureNotifier struct {
	payloads [][]byte
}

func (c *captureNotifier) Publish(_ context.Context, data []byte) error {
	c.payloads = append(c.payloads, data)
	return nil
}

type rig struct {
	svc      *Service
	locker   *memLocker
	lister   *stubLister
	queue    *stubQueue
	drainer  *stubDrainer
	stamper  *stubStamper
	notifier *captureNotifier
}

func newSchedRig(t *testing.T, stores ...models.Store) *rig {
	t.Helper()
	locker := &memLocker{}
	lister := &stubLister{stores: stores}
	queue := &stubQueue{}
	stamper := &stubStamper{}
	notifier := &captureNotifier{}

	svc, err := NewService(ServiceParams{
		Stores:   lister,
		Queue:    queue,
		Drainer:  &stubDrainer{queue: queue},
		Locker:   locker,
		Stamper:  stamper,
		Notifier: notifier,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Config: config.SyncConfig{
			Cooldown: 10 * time.Minute,
			LeaseTTL: 30 * time.Minute,
		},
	})
	require.NoError(t, err)

	drainer := &stubDrainer{
		queue:   queue,
		sink:    svc.Sink(),
		summary: reconcile.Summary{Imported: 2, Updated: 1, Skipped: 0, Total: 3},
		orders:  4,
	}
	svc.drainer = drainer

	return &rig{svc: svc, locker: locker, lister: lister, queue: queue, drainer: drainer, stamper: stamper, notifier: notifier}
}

func shopeeStore() models.Store {
	return models.Store{
		ID:       uuid.New(),
		Platform: enums.PlatformShopee,
		ShopID:   "shop-1",
		ShopName: "Toko",
		IsActive: true,
	}
}

func TestRunCycleSyncsActiveStores(t *testing.T) {
	store := shopeeStore()
	r := newSchedRig(t, store)

	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, report.Stores, 1)

	summary := report.Stores[0]
	assert.Equal(t, store.ID, summary.StoreID)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 4, summary.OrdersSynced)
	assert.False(t, summary.SkippedRun)

	// product_refresh + order_refresh per store
	assert.Len(t, r.queue.items, 2)
	assert.Contains(t, r.stamper.stamps, store.ID)

	// summary published
	require.Len(t, r.notifier.payloads, 1)
	var published CycleReport
	require.NoError(t, json.Unmarshal(r.notifier.payloads[0], &published))
	assert.Len(t, published.Stores, 1)

	// cycle lease released
	assert.False(t, r.locker.held[r.locker.SyncLeaseKey("cycle")])
}

func TestRunCycleSkipsWhenLeaseHeld(t *testing.T) {
	r := newSchedRig(t, shopeeStore())
	_, err := r.locker.SetNX(context.Background(), r.locker.SyncLeaseKey("cycle"), "other", time.Minute)
	require.NoError(t, err)

	_, err = r.svc.RunCycle(context.Background(), false)
	assert.ErrorIs(t, err, ErrLeaseHeld)
	assert.Empty(t, r.queue.items)
}

func TestRunStoreSkipsWhenStoreLeaseHeld(t *testing.T) {
	store := shopeeStore()
	r := newSchedRig(t, store)
	_, err := r.locker.SetNX(context.Background(), r.locker.SyncLeaseKey(store.ID.String()), "other", time.Minute)
	require.NoError(t, err)

	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err) // lease skip is not a cycle failure
	require.Len(t, report.Stores, 1)
	assert.True(t, report.Stores[0].SkippedRun)
	assert.Empty(t, r.queue.items)
}

func TestRunStoreCooldownSkip(t *testing.T) {
	store := shopeeStore()
	recent := time.Now().Add(-2 * time.Minute)
	store.LastSyncAt = &recent
	r := newSchedRig(t, store)

	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, report.Stores, 1)
	assert.True(t, report.Stores[0].SkippedRun)
	assert.Empty(t, r.queue.items)
}

func TestForceOverridesCooldown(t *testing.T) {
	store := shopeeStore()
	recent := time.Now().Add(-2 * time.Minute)
	store.LastSyncAt = &recent
	r := newSchedRig(t, store)

	report, err := r.svc.RunCycle(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, report.Stores, 1)
	assert.False(t, report.Stores[0].SkippedRun)
	assert.Len(t, r.queue.items, 2)

	// forced order refresh asks for the full window
	var payload map[string]int64
	require.NoError(t, json.Unmarshal(r.queue.items[1].Payload, &payload))
	assert.Equal(t, int64(0), payload["from"])
}

func TestManualPlatformStoresAreSkipped(t *testing.T) {
	manual := shopeeStore()
	manual.Platform = enums.PlatformManual
	r := newSchedRig(t, manual)

	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.Stores)
	assert.Empty(t, r.queue.items)
}

func TestOneStoreFailureDoesNotAbortOthers(t *testing.T) {
	first := shopeeStore()
	second := shopeeStore()
	second.ShopID = "shop-2"
	r := newSchedRig(t, first, second)

	// stamping the first store fails; the second must still run
	r.stamper.err = errors.New("db down")
	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, report.Stores, 2)
	assert.NotEmpty(t, report.Stores[0].Error)
	assert.NotEmpty(t, report.Stores[1].Error)
	// both stores were attempted: two refresh items each
	assert.Len(t, r.queue.items, 4)
}

func TestFailedItemsCountInSummary(t *testing.T) {
	store := shopeeStore()
	r := newSchedRig(t, store)
	r.drainer.failEvery = true

	report, err := r.svc.RunCycle(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, report.Stores, 1)
	assert.Equal(t, 2, report.Stores[0].Failed)
	assert.Equal(t, 0, report.Stores[0].Imported)
}
