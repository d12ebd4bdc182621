package syncqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/internal/stock"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/dbtest"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

type stubMarketplace struct {
	updateErr    error
	updateCalls  []string
	products     []connector.RawProduct
	orders       []connector.RawOrder
	fetchErr     error
	lastField    string
	lastValue    string
	lastProdRef  connector.ProductRef
	orderWindows [][2]time.Time
}

func (m *stubMarketplace) UpdateField(_ context.Context, _ connector.Credentials, ref connector.ProductRef, field, value string) (*connector.Ack, error) {
	m.updateCalls = append(m.updateCalls, field)
	m.lastField = field
	m.lastValue = value
	m.lastProdRef = ref
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &connector.Ack{RequestID: "req"}, nil
}

func (m *stubMarketplace) FetchProducts(_ context.Context, _ connector.Credentials, _ string) (*connector.Page, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return &connector.Page{Products: m.products}, nil
}

func (m *stubMarketplace) FetchOrders(_ context.Context, _ connector.Credentials, from, to time.Time) ([]connector.RawOrder, error) {
	m.orderWindows = append(m.orderWindows, [2]time.Time{from, to})
	return m.orders, nil
}

type stubCreds struct {
	store *models.Store
	err   error
}

func (s *stubCreds) EnsureFresh(_ context.Context, _ uuid.UUID) (*models.Store, connector.Credentials, error) {
	if s.err != nil {
		return nil, connector.Credentials{}, s.err
	}
	return s.store, connector.Credentials{PartnerID: "p", PartnerKey: "k", ShopID: "s", AccessToken: "t"}, nil
}

type stubImporter struct {
	summary reconcile.Summary
	calls   int
}

func (s *stubImporter) ImportProducts(_ context.Context, _ *models.Store, raws []connector.RawProduct) (reconcile.Summary, error) {
	s.calls++
	return s.summary, nil
}

type stubOrders struct {
	synced int
	calls  int
}

func (s *stubOrders) ApplyOrders(_ context.Context, _ *models.Store, raws []connector.RawOrder) (int, error) {
	s.calls++
	return s.synced, nil
}

type stubStamper struct {
	stamps []uuid.UUID
}

func (s *stubStamper) StampLastSync(_ context.Context, storeID uuid.UUID, _ time.Time) error {
	s.stamps = append(s.stamps, storeID)
	return nil
}

type fixture struct {
	repo        *Repository
	processor   *Processor
	marketplace *stubMarketplace
	importer    *stubImporter
	orders      *stubOrders
	stamper     *stubStamper
	ledger      *stock.Ledger
	catalog     *reconcile.Repository
	store       *models.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &models.Store{}, &models.Product{}, &models.StockHistory{}, &models.SyncQueueItem{})

	repo, err := NewRepository(db, 3)
	require.NoError(t, err)
	ledger, err := stock.NewLedger(db)
	require.NoError(t, err)
	catalog, err := reconcile.NewRepository(db)
	require.NoError(t, err)

	store := &models.Store{Platform: enums.PlatformShopee, ShopID: "shop-1", ShopName: "Toko"}
	require.NoError(t, db.Create(store).Error)

	marketplace := &stubMarketplace{}
	importer := &stubImporter{}
	orders := &stubOrders{}
	stamper := &stubStamper{}

	processor, err := NewProcessor(ProcessorParams{
		Repo:        repo,
		Marketplace: marketplace,
		Credentials: &stubCreds{store: store},
		Importer:    importer,
		Orders:      orders,
		Stock:       ledger,
		Catalog:     catalog,
		Stores:      stamper,
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		Config:      config.SyncConfig{BackoffBase: 30 * time.Second, MaxRetries: 3},
	})
	require.NoError(t, err)

	return &fixture{
		repo:        repo,
		processor:   processor,
		marketplace: marketplace,
		importer:    importer,
		orders:      orders,
		stamper:     stamper,
		ledger:      ledger,
		catalog:     catalog,
		store:       store,
	}
}

func (f *fixture) enqueueOutboundStock(t *testing.T, stockQty int) *models.SyncQueueItem {
	t.Helper()
	itemID := int64(42)
	payload, _ := json.Marshal(map[string]int{"stock": stockQty})
	item := &models.SyncQueueItem{
		StoreID:   f.store.ID,
		SyncType:  enums.SyncTypeStockUpdate,
		Direction: enums.SyncDirectionOutbound,
		ItemID:    &itemID,
		Payload:   payload,
	}
	require.NoError(t, f.repo.Enqueue(context.Background(), item))
	return item
}

func TestProcessOutboundStockSuccess(t *testing.T) {
	f := newFixture(t)
	item := f.enqueueOutboundStock(t, 90)

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	assert.Equal(t, connector.FieldStock, f.marketplace.lastField)
	assert.Equal(t, "90", f.marketplace.lastValue)
	assert.Equal(t, int64(42), f.marketplace.lastProdRef.ItemID)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusSuccess, got.Status)
	assert.Equal(t, []uuid.UUID{f.store.ID}, f.stamper.stamps)
}

func TestProcessTransientFailureReschedules(t *testing.T) {
	f := newFixture(t)
	item := f.enqueueOutboundStock(t, 5)
	f.marketplace.updateErr = pkgerrors.New(pkgerrors.CodeDependency, "platform unreachable")

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.True(t, got.ScheduledAt.After(time.Now()))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "platform unreachable", *got.LastError)
	assert.Empty(t, f.stamper.stamps)
}

func TestProcessRetriesExactlyMaxTimes(t *testing.T) {
	f := newFixture(t)
	item := f.enqueueOutboundStock(t, 5)
	f.marketplace.updateErr = pkgerrors.New(pkgerrors.CodeDependency, "still down")

	// make rescheduled items immediately claimable
	future := time.Now().Add(365 * 24 * time.Hour)
	f.repo.now = func() time.Time { return future }
	f.processor.now = func() time.Time { return time.Now() }

	for attempt := 0; attempt < 3; attempt++ {
		claimed, err := f.processor.ProcessOne(context.Background())
		require.NoError(t, err)
		require.True(t, claimed, "attempt %d should claim", attempt+1)
	}

	// the item is terminal after exactly maxRetries attempts
	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.Len(t, f.marketplace.updateCalls, 3)

	// nothing left to claim
	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestProcessRejectionFailsImmediately(t *testing.T) {
	f := newFixture(t)
	item := f.enqueueOutboundStock(t, 5)
	f.marketplace.updateErr = pkgerrors.New(pkgerrors.CodeUpstreamRejected, "price must be at least 100")

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusFailed, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "price must be at least 100", *got.LastError)
}

func TestProcessMissingCredentialsFailsImmediately(t *testing.T) {
	f := newFixture(t)
	item := f.enqueueOutboundStock(t, 5)

	failing, err := NewProcessor(ProcessorParams{
		Repo:        f.repo,
		Marketplace: f.marketplace,
		Credentials: &stubCreds{err: pkgerrors.New(pkgerrors.CodeMissingCredentials, "store has no partner credentials")},
		Importer:    f.importer,
		Orders:      f.orders,
		Stock:       f.ledger,
		Catalog:     f.catalog,
		Stores:      f.stamper,
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)

	claimed, err := failing.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusFailed, got.Status)
}

func TestProcessProductRefresh(t *testing.T) {
	f := newFixture(t)
	f.marketplace.products = []connector.RawProduct{{ItemID: 1, ItemName: "x"}}
	f.importer.summary = reconcile.Summary{Imported: 1, Total: 1}

	item := &models.SyncQueueItem{
		StoreID:   f.store.ID,
		SyncType:  enums.SyncTypeProductRefresh,
		Direction: enums.SyncDirectionInbound,
	}
	require.NoError(t, f.repo.Enqueue(context.Background(), item))

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, f.importer.calls)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusSuccess, got.Status)
}

func TestProcessOrderRefreshUsesLastSyncWindow(t *testing.T) {
	f := newFixture(t)
	lastSync := time.Now().Add(-2 * time.Hour).Truncate(time.Second)
	f.store.LastSyncAt = &lastSync

	item := &models.SyncQueueItem{
		StoreID:   f.store.ID,
		SyncType:  enums.SyncTypeOrderRefresh,
		Direction: enums.SyncDirectionInbound,
	}
	require.NoError(t, f.repo.Enqueue(context.Background(), item))

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, f.orders.calls)
	require.Len(t, f.marketplace.orderWindows, 1)
	assert.True(t, f.marketplace.orderWindows[0][0].Equal(lastSync))
}

func TestProcessInboundStockEcho(t *testing.T) {
	f := newFixture(t)

	itemID := int64(42)
	storeID := f.store.ID
	key := reconcile.RemoteKey(itemID, nil)
	product := &models.Product{
		StoreID:   &storeID,
		RemoteKey: &key,
		ItemID:    &itemID,
		Name:      "Teh",
		Price:     decimal.NewFromInt(5000),
		Stock:     10,
		Source:    enums.ProductSourceMarketplace,
	}
	require.NoError(t, f.catalog.Create(context.Background(), product))

	payload, _ := json.Marshal(map[string]int{"stock": 4})
	item := &models.SyncQueueItem{
		StoreID:   f.store.ID,
		SyncType:  enums.SyncTypeStockUpdate,
		Direction: enums.SyncDirectionInbound,
		ItemID:    &itemID,
		Payload:   payload,
	}
	require.NoError(t, f.repo.Enqueue(context.Background(), item))

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	updated, err := f.catalog.FindByRemoteKey(context.Background(), f.store.ID, key)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 4, updated.Stock)

	history, err := f.ledger.History(context.Background(), product.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.StockChangeMarketplaceSync, history[0].Reason)
}

func TestProcessInboundStockUnknownProductSucceeds(t *testing.T) {
	f := newFixture(t)

	itemID := int64(99)
	payload, _ := json.Marshal(map[string]int{"stock": 4})
	item := &models.SyncQueueItem{
		StoreID:   f.store.ID,
		SyncType:  enums.SyncTypeStockUpdate,
		Direction: enums.SyncDirectionInbound,
		ItemID:    &itemID,
		Payload:   payload,
	}
	require.NoError(t, f.repo.Enqueue(context.Background(), item))

	claimed, err := f.processor.ProcessOne(context.Background())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := f.repo.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusSuccess, got.Status)
}
