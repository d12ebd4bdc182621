package stock

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// Enqueuer accepts new queue items. Satisfied by the sync queue repository.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *models.SyncQueueItem) error
}

type ProducerParams struct {
	Queue  Enqueuer
	Logger *logger.Logger
	Config config.StockConfig
}

// Producer turns local stock changes into outbound marketplace updates.
type Producer struct {
	queue  Enqueuer
	logg   *logger.Logger
	buffer config.StockConfig
}

func NewProducer(params ProducerParams) (*Producer, error) {
	if params.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Producer{
		queue:  params.Queue,
		logg:   params.Logger,
		buffer: params.Config,
	}, nil
}

// stockPayload is what the queue processor sends to the marketplace.
type stockPayload struct {
	Stock int `json:"stock"`
}

// QueueStockUpdate enqueues an outbound stock update for a marketplace-linked
// product. Products without a store mapping are a no-op: there is nothing to
// push for a purely local row.
func (p *Producer) QueueStockUpdate(ctx context.Context, product *models.Product) error {
	if product == nil {
		return errors.New("product is required")
	}
	if product.StoreID == nil || product.ItemID == nil {
		return nil
	}

	advertised := AdvertisedStock(product.Stock, p.buffer.BufferPercent, p.buffer.MinBuffer)
	payload, err := json.Marshal(stockPayload{Stock: advertised})
	if err != nil {
		return err
	}

	item := &models.SyncQueueItem{
		StoreID:   *product.StoreID,
		SyncType:  enums.SyncTypeStockUpdate,
		Direction: enums.SyncDirectionOutbound,
		ProductID: &product.ID,
		ItemID:    product.ItemID,
		ModelID:   product.ModelID,
		Payload:   payload,
		Priority:  enums.PriorityNormal,
	}
	if err := p.queue.Enqueue(ctx, item); err != nil {
		return err
	}

	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"product_id": product.ID.String(),
		"actual":     product.Stock,
		"advertised": advertised,
	}), "queued outbound stock update")
	return nil
}
