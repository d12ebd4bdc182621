package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/internal/reconcile"
	"github.com/kasirkita/kasirkita-backend/internal/stock"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/metrics"
)

// Marketplace is the slice of the connector the processor needs.
type Marketplace interface {
	UpdateField(ctx context.Context, creds connector.Credentials, ref connector.ProductRef, field, value string) (*connector.Ack, error)
	FetchProducts(ctx context.Context, creds connector.Credentials, cursor string) (*connector.Page, error)
	FetchOrders(ctx context.Context, creds connector.Credentials, from, to time.Time) ([]connector.RawOrder, error)
}

// CredentialSource loads a store with usable signing credentials.
type CredentialSource interface {
	EnsureFresh(ctx context.Context, storeID uuid.UUID) (*models.Store, connector.Credentials, error)
}

// Importer folds fetched products into the local catalog.
type Importer interface {
	ImportProducts(ctx context.Context, store *models.Store, raws []connector.RawProduct) (reconcile.Summary, error)
}

// OrderApplier upserts fetched orders.
type OrderApplier interface {
	ApplyOrders(ctx context.Context, store *models.Store, raws []connector.RawOrder) (int, error)
}

// StockApplier applies inbound stock changes through the ledger.
type StockApplier interface {
	Apply(ctx context.Context, change stock.Change) (*models.StockHistory, error)
}

// CatalogReader resolves inbound item references to local rows.
type CatalogReader interface {
	FindByRemoteKey(ctx context.Context, storeID uuid.UUID, remoteKey string) (*models.Product, error)
}

// StoreStamper records when a store last completed a sync operation.
type StoreStamper interface {
	StampLastSync(ctx context.Context, storeID uuid.UUID, at time.Time) error
}

// ResultSink receives per-item outcomes so a caller draining the queue (the
// scheduler) can aggregate a run summary. All methods must be cheap.
type ResultSink interface {
	RecordImport(storeID uuid.UUID, summary reconcile.Summary)
	RecordOrders(storeID uuid.UUID, synced int)
	RecordFailure(storeID uuid.UUID, syncType enums.SyncType, terminal bool)
}

type ProcessorParams struct {
	Repo        *Repository
	Marketplace Marketplace
	Credentials CredentialSource
	Importer    Importer
	Orders      OrderApplier
	Stock       StockApplier
	Catalog     CatalogReader
	Stores      StoreStamper
	Metrics     *metrics.SyncMetrics
	Logger      *logger.Logger
	Config      config.SyncConfig

	// Sink is optional; nil means outcomes are only visible in queue state.
	Sink ResultSink
}

// Processor drains the queue one item at a time. It is the only component
// that decides retry versus terminal failure.
type Processor struct {
	repo        *Repository
	marketplace Marketplace
	credentials CredentialSource
	importer    Importer
	orders      OrderApplier
	stock       StockApplier
	catalog     CatalogReader
	stores      StoreStamper
	metrics     *metrics.SyncMetrics
	logg        *logger.Logger
	cfg         config.SyncConfig
	sink        ResultSink
	now         func() time.Time
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("queue repository is required")
	case params.Marketplace == nil:
		return nil, errors.New("marketplace client is required")
	case params.Credentials == nil:
		return nil, errors.New("credential source is required")
	case params.Importer == nil:
		return nil, errors.New("product importer is required")
	case params.Orders == nil:
		return nil, errors.New("order applier is required")
	case params.Stock == nil:
		return nil, errors.New("stock applier is required")
	case params.Catalog == nil:
		return nil, errors.New("catalog reader is required")
	case params.Stores == nil:
		return nil, errors.New("store stamper is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	cfg := params.Config
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	return &Processor{
		repo:        params.Repo,
		marketplace: params.Marketplace,
		credentials: params.Credentials,
		importer:    params.Importer,
		orders:      params.Orders,
		stock:       params.Stock,
		catalog:     params.Catalog,
		stores:      params.Stores,
		metrics:     params.Metrics,
		logg:        params.Logger,
		cfg:         cfg,
		sink:        params.Sink,
		now:         time.Now,
	}, nil
}

// SetSink installs the outcome aggregator. Not safe to call while Run is
// active; the scheduler sets it once at wiring time.
func (p *Processor) SetSink(sink ResultSink) {
	p.sink = sink
}

// ProcessOne claims and executes a single eligible item. It reports whether
// an item was claimed; item-level failures are absorbed into queue state and
// never returned as errors.
func (p *Processor) ProcessOne(ctx context.Context) (bool, error) {
	item, err := p.repo.Claim(ctx)
	if err != nil {
		return false, err
	}
	if item == nil {
		return false, nil
	}

	lctx := p.logg.WithFields(ctx, map[string]any{
		"sync_item": item.ID.String(),
		"sync_type": string(item.SyncType),
		"direction": string(item.Direction),
		"store_id":  item.StoreID.String(),
		"attempt":   item.RetryCount + 1,
	})

	execErr := p.execute(ctx, item)
	if execErr == nil {
		if err := p.repo.MarkSuccess(ctx, item.ID); err != nil {
			return true, err
		}
		if err := p.stores.StampLastSync(ctx, item.StoreID, p.now()); err != nil {
			p.logg.Warn(lctx, "stamping last sync failed: "+err.Error())
		}
		p.metrics.IncQueueItem(string(item.SyncType), "success")
		p.logg.Info(lctx, "sync item succeeded")
		return true, nil
	}

	return true, p.settleFailure(lctx, item, execErr)
}

// Run polls the queue until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	interval := p.cfg.WorkerPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for {
			claimed, err := p.ProcessOne(ctx)
			if err != nil {
				p.logg.Error(ctx, "queue processing error", err)
				break
			}
			if !claimed {
				break
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// settleFailure is the retry/terminal decision point.
func (p *Processor) settleFailure(ctx context.Context, item *models.SyncQueueItem, execErr error) error {
	message := execErr.Error()
	if typed := pkgerrors.As(execErr); typed != nil {
		// keep the platform's own words for the operator
		message = typed.Message()
	}

	if !pkgerrors.IsRetryable(execErr) {
		p.metrics.IncQueueItem(string(item.SyncType), "rejected")
		p.recordFailure(item, true)
		p.logg.Warn(p.logg.WithField(ctx, "error", message), "sync item rejected")
		return p.repo.MarkFailed(ctx, item.ID, message)
	}

	// this attempt counts before the verdict: an item is allowed maxRetries
	// attempts in total, then goes terminal
	attempts := item.RetryCount + 1
	if attempts >= item.MaxRetries {
		p.metrics.IncQueueItem(string(item.SyncType), "failed")
		p.recordFailure(item, true)
		p.logg.Warn(p.logg.WithField(ctx, "error", message), "sync item exhausted retries")
		return p.repo.MarkExhausted(ctx, item.ID, attempts, message)
	}

	delay := Backoff(p.cfg.BackoffBase, item.RetryCount)
	p.metrics.IncQueueItem(string(item.SyncType), "retry")
	p.recordFailure(item, false)
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"error":    message,
		"retry_in": delay.String(),
	}), "sync item rescheduled")
	return p.repo.Reschedule(ctx, item.ID, attempts, p.now().Add(delay), message)
}

func (p *Processor) execute(ctx context.Context, item *models.SyncQueueItem) error {
	store, creds, err := p.credentials.EnsureFresh(ctx, item.StoreID)
	if err != nil {
		return err
	}

	if item.Direction == enums.SyncDirectionOutbound {
		return p.executeOutbound(ctx, item, creds)
	}
	return p.executeInbound(ctx, item, store, creds)
}

// fieldPayload is the JSON body carried by outbound field updates.
type fieldPayload struct {
	Stock *int    `json:"stock,omitempty"`
	Price *string `json:"price,omitempty"`
	SKU   *string `json:"sku,omitempty"`
	Name  *string `json:"name,omitempty"`
}

func (p *Processor) executeOutbound(ctx context.Context, item *models.SyncQueueItem, creds connector.Credentials) error {
	if item.ItemID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "outbound item has no marketplace item id")
	}
	ref := connector.ProductRef{ItemID: *item.ItemID, ModelID: item.ModelID}

	var payload fieldPayload
	if len(item.Payload) > 0 {
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed outbound payload")
		}
	}

	field, value, err := outboundField(item.SyncType, payload)
	if err != nil {
		return err
	}
	_, err = p.marketplace.UpdateField(ctx, creds, ref, field, value)
	return err
}

func outboundField(syncType enums.SyncType, payload fieldPayload) (string, string, error) {
	switch syncType {
	case enums.SyncTypeStockUpdate:
		if payload.Stock == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "stock update payload has no stock")
		}
		return connector.FieldStock, strconv.Itoa(*payload.Stock), nil
	case enums.SyncTypePriceUpdate:
		if payload.Price == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "price update payload has no price")
		}
		return connector.FieldPrice, *payload.Price, nil
	case enums.SyncTypeSKUUpdate:
		if payload.SKU == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "sku update payload has no sku")
		}
		return connector.FieldSKU, *payload.SKU, nil
	case enums.SyncTypeNameUpdate:
		if payload.Name == nil {
			return "", "", pkgerrors.New(pkgerrors.CodeValidation, "name update payload has no name")
		}
		return connector.FieldName, *payload.Name, nil
	default:
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sync type %s is not outbound", syncType))
	}
}

// inboundWindow is the payload of order_refresh items.
type inboundWindow struct {
	From *int64 `json:"from,omitempty"`
	To   *int64 `json:"to,omitempty"`
}

// inboundStock is the payload of inbound stock echoes.
type inboundStock struct {
	Stock *int `json:"stock"`
}

func (p *Processor) executeInbound(ctx context.Context, item *models.SyncQueueItem, store *models.Store, creds connector.Credentials) error {
	switch item.SyncType {
	case enums.SyncTypeProductRefresh:
		return p.refreshProducts(ctx, store, creds)
	case enums.SyncTypeOrderRefresh:
		return p.refreshOrders(ctx, item, store, creds)
	case enums.SyncTypeStockUpdate:
		return p.applyInboundStock(ctx, item)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("sync type %s is not inbound", item.SyncType))
	}
}

func (p *Processor) refreshProducts(ctx context.Context, store *models.Store, creds connector.Credentials) error {
	cursor := ""
	total := reconcile.Summary{}
	for {
		page, err := p.marketplace.FetchProducts(ctx, creds, cursor)
		if err != nil {
			return err
		}
		summary, err := p.importer.ImportProducts(ctx, store, page.Products)
		if err != nil {
			return err
		}
		total = total.Add(summary)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if p.sink != nil {
		p.sink.RecordImport(store.ID, total)
	}
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"imported": total.Imported,
		"updated":  total.Updated,
		"skipped":  total.Skipped,
	}), "product refresh applied")
	return nil
}

func (p *Processor) refreshOrders(ctx context.Context, item *models.SyncQueueItem, store *models.Store, creds connector.Credentials) error {
	var window inboundWindow
	if len(item.Payload) > 0 {
		if err := json.Unmarshal(item.Payload, &window); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed order refresh payload")
		}
	}

	to := p.now()
	from := to.Add(-24 * time.Hour)
	if store.LastSyncAt != nil {
		from = *store.LastSyncAt
	}
	if window.From != nil {
		from = time.Unix(*window.From, 0)
	}
	if window.To != nil {
		to = time.Unix(*window.To, 0)
	}

	raws, err := p.marketplace.FetchOrders(ctx, creds, from, to)
	if err != nil {
		return err
	}
	synced, err := p.orders.ApplyOrders(ctx, store, raws)
	if err != nil {
		return err
	}
	if p.sink != nil {
		p.sink.RecordOrders(store.ID, synced)
	}
	p.logg.Info(p.logg.WithField(ctx, "orders_synced", synced), "order refresh applied")
	return nil
}

func (p *Processor) recordFailure(item *models.SyncQueueItem, terminal bool) {
	if p.sink == nil {
		return
	}
	p.sink.RecordFailure(item.StoreID, item.SyncType, terminal)
}

// applyInboundStock handles a marketplace stock echo: the platform says the
// listing's stock changed, the local row follows through the ledger.
func (p *Processor) applyInboundStock(ctx context.Context, item *models.SyncQueueItem) error {
	if item.ItemID == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "inbound stock item has no marketplace item id")
	}
	var payload inboundStock
	if err := json.Unmarshal(item.Payload, &payload); err != nil || payload.Stock == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "malformed inbound stock payload")
	}

	key := reconcile.RemoteKey(*item.ItemID, item.ModelID)
	product, err := p.catalog.FindByRemoteKey(ctx, item.StoreID, key)
	if err != nil {
		return err
	}
	if product == nil {
		// never imported locally; nothing to reconcile
		p.logg.Info(p.logg.WithField(ctx, "remote_key", key), "inbound stock for unknown product ignored")
		return nil
	}

	newStock := *payload.Stock
	if newStock < 0 {
		newStock = 0
	}
	_, err = p.stock.Apply(ctx, stock.Change{
		ProductID: product.ID,
		NewStock:  newStock,
		Reason:    enums.StockChangeMarketplaceSync,
		Actor:     "marketplace",
	})
	return err
}
