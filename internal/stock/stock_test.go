package stock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/dbtest"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

func TestAdvertisedStock(t *testing.T) {
	cases := []struct {
		name          string
		actual        int
		bufferPercent int
		minBuffer     int
		want          int
	}{
		{"typical", 100, 10, 1, 90},
		{"percent rounds up", 95, 10, 1, 85},   // ceil(9.5) = 10
		{"min buffer wins", 5, 10, 3, 2},       // ceil(0.5)=1 < 3
		{"zero actual", 0, 10, 1, 0},
		{"negative actual", -4, 10, 1, 0},
		{"buffer exceeds stock", 2, 10, 5, 0},
		{"no buffer configured", 10, 0, 0, 10},
		{"one unit", 1, 10, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdvertisedStock(tc.actual, tc.bufferPercent, tc.minBuffer)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func seedProduct(t *testing.T, ledger *Ledger, stockQty int) *models.Product {
	t.Helper()
	storeID := uuid.New()
	itemID := int64(42)
	product := &models.Product{
		StoreID: &storeID,
		ItemID:  &itemID,
		Name:    "Teh Botol",
		Price:   decimal.NewFromInt(5000),
		Stock:   stockQty,
		Source:  enums.ProductSourceManual,
	}
	require.NoError(t, ledger.db.Create(product).Error)
	return product
}

func TestLedgerApplyRecordsHistory(t *testing.T) {
	db := dbtest.Open(t, &models.Product{}, &models.StockHistory{})
	ledger, err := NewLedger(db)
	require.NoError(t, err)

	product := seedProduct(t, ledger, 10)

	row, err := ledger.Apply(context.Background(), Change{
		ProductID: product.ID,
		NewStock:  7,
		Reason:    enums.StockChangeSale,
		Actor:     "kasir-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, row.OldStock)
	assert.Equal(t, 7, row.NewStock)
	assert.Equal(t, -3, row.Delta)

	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, "id = ?", product.ID).Error)
	assert.Equal(t, 7, reloaded.Stock)

	history, err := ledger.History(context.Background(), product.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedgerRejectsNegativeStock(t *testing.T) {
	db := dbtest.Open(t, &models.Product{}, &models.StockHistory{})
	ledger, err := NewLedger(db)
	require.NoError(t, err)

	product := seedProduct(t, ledger, 2)

	_, err = ledger.Apply(context.Background(), Change{
		ProductID: product.ID,
		NewStock:  -1,
		Reason:    enums.StockChangeSale,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestLedgerUnknownProduct(t *testing.T) {
	db := dbtest.Open(t, &models.Product{}, &models.StockHistory{})
	ledger, err := NewLedger(db)
	require.NoError(t, err)

	_, err = ledger.Apply(context.Background(), Change{
		ProductID: uuid.New(),
		NewStock:  1,
		Reason:    enums.StockChangeAdjustment,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

type captureQueue struct {
	items []*models.SyncQueueItem
}

func (c *captureQueue) Enqueue(_ context.Context, item *models.SyncQueueItem) error {
	c.items = append(c.items, item)
	return nil
}

func TestProducerQueuesBufferedStock(t *testing.T) {
	queue := &captureQueue{}
	producer, err := NewProducer(ProducerParams{
		Queue:  queue,
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Config: config.StockConfig{BufferPercent: 10, MinBuffer: 1},
	})
	require.NoError(t, err)

	storeID := uuid.New()
	itemID := int64(42)
	product := &models.Product{
		ID:      uuid.New(),
		StoreID: &storeID,
		ItemID:  &itemID,
		Stock:   100,
	}

	require.NoError(t, producer.QueueStockUpdate(context.Background(), product))
	require.Len(t, queue.items, 1)

	item := queue.items[0]
	assert.Equal(t, enums.SyncTypeStockUpdate, item.SyncType)
	assert.Equal(t, enums.SyncDirectionOutbound, item.Direction)
	assert.Equal(t, storeID, item.StoreID)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(item.Payload, &payload))
	assert.Equal(t, 90, payload["stock"])
}

func TestProducerSkipsUnlinkedProduct(t *testing.T) {
	queue := &captureQueue{}
	producer, err := NewProducer(ProducerParams{
		Queue:  queue,
		Logger: logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)

	require.NoError(t, producer.QueueStockUpdate(context.Background(), &models.Product{ID: uuid.New(), Stock: 5}))
	assert.Empty(t, queue.items)
}
