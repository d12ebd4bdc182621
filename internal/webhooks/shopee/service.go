package shopee

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/internal/signing"
	"github.com/kasirkita/kasirkita-backend/pkg/db"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// Deduper is the Redis guard in front of the webhook_logs unique index.
type Deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	WebhookDedupKey(platform, eventID string) string
}

// StoreFinder resolves the shop a push belongs to.
type StoreFinder interface {
	FindByShopID(ctx context.Context, platform enums.Platform, shopID string) (*models.Store, error)
}

// Enqueuer accepts the queue items an accepted event produces.
type Enqueuer interface {
	Enqueue(ctx context.Context, item *models.SyncQueueItem) error
}

type IngestorParams struct {
	DB       *gorm.DB
	Deduper  Deduper
	Stores   StoreFinder
	Queue    Enqueuer
	Logger   *logger.Logger
	DedupTTL time.Duration
}

// Ingestor turns raw platform pushes into logged, deduplicated queue work.
type Ingestor struct {
	db       *gorm.DB
	deduper  Deduper
	stores   StoreFinder
	queue    Enqueuer
	logg     *logger.Logger
	dedupTTL time.Duration
}

func NewIngestor(params IngestorParams) (*Ingestor, error) {
	switch {
	case params.DB == nil:
		return nil, errors.New("db handle is required")
	case params.Deduper == nil:
		return nil, errors.New("deduper is required")
	case params.Stores == nil:
		return nil, errors.New("store finder is required")
	case params.Queue == nil:
		return nil, errors.New("queue is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	ttl := params.DedupTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Ingestor{
		db:       params.DB,
		deduper:  params.Deduper,
		stores:   params.Stores,
		queue:    params.Queue,
		logg:     params.Logger,
		dedupTTL: ttl,
	}, nil
}

// event is the platform push envelope.
type event struct {
	MsgID     string          `json:"msg_id"`
	Code      int             `json:"code"`
	ShopID    json.Number     `json:"shop_id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// eventData carries the fields the engine reads out of handled codes.
type eventData struct {
	ItemID      *int64 `json:"item_id"`
	VariationID *int64 `json:"variation_id"`
	Stock       *int   `json:"stock"`
}

// Result reports what ingestion did with one push.
type Result struct {
	Status    enums.WebhookStatus
	Duplicate bool
	EventID   string
}

// Ingest verifies, deduplicates, logs, and enqueues one raw push body.
// Duplicates are dropped silently; unknown codes are logged as ignored.
func (i *Ingestor) Ingest(ctx context.Context, raw []byte, signature string) (*Result, error) {
	var evt event
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed webhook body")
	}

	sum := sha256.Sum256(raw)
	bodyDigest := hex.EncodeToString(sum[:])

	eventID := evt.MsgID
	if eventID == "" {
		// no platform message id; the body hash is the next best stable identity
		eventID = bodyDigest
	}
	shopID := evt.ShopID.String()

	lctx := i.logg.WithFields(ctx, map[string]any{
		"event_id":     eventID,
		"webhook_code": evt.Code,
		"shop_id":      shopID,
	})

	store, err := i.stores.FindByShopID(ctx, enums.PlatformShopee, shopID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		i.logg.Warn(lctx, "webhook for unknown shop")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no connected store for shop")
	}

	if !signing.VerifyWebhook(raw, store.PartnerKey, signature) {
		// log under the body digest, not the claimed msg_id: an unverified
		// delivery must not reserve the real event's identity
		i.persistLog(ctx, bodyDigest, evt, shopID, raw, false, enums.WebhookStatusFailed)
		i.logg.Warn(lctx, "webhook signature rejected")
		return &Result{Status: enums.WebhookStatusFailed, EventID: eventID},
			pkgerrors.New(pkgerrors.CodeSignatureInvalid, "webhook signature mismatch")
	}

	// Fast duplicate guard. A Redis miss is not authoritative (restart, TTL
	// expiry); the webhook_logs unique index is the backstop below.
	fresh, err := i.deduper.SetNX(ctx, i.deduper.WebhookDedupKey(string(enums.PlatformShopee), eventID), 1, i.dedupTTL)
	if err != nil {
		i.logg.Warn(lctx, "webhook dedup guard unavailable: "+err.Error())
	} else if !fresh {
		if i.logSucceeded(ctx, eventID) {
			i.logg.Info(lctx, "duplicate webhook dropped")
			return &Result{Duplicate: true, EventID: eventID}, nil
		}
	}

	r, handled := routes[evt.Code]
	if !handled {
		if dup := i.persistLog(ctx, eventID, evt, shopID, raw, true, enums.WebhookStatusIgnored); dup {
			return &Result{Duplicate: true, EventID: eventID}, nil
		}
		i.logg.Info(lctx, "webhook code not handled; ignored")
		return &Result{Status: enums.WebhookStatusIgnored, EventID: eventID}, nil
	}

	if dup := i.persistLog(ctx, eventID, evt, shopID, raw, true, enums.WebhookStatusPending); dup {
		return &Result{Duplicate: true, EventID: eventID}, nil
	}

	item, err := i.buildItem(store, evt, r)
	if err != nil {
		i.markLog(ctx, eventID, enums.WebhookStatusFailed)
		return &Result{Status: enums.WebhookStatusFailed, EventID: eventID}, err
	}
	if err := i.queue.Enqueue(ctx, item); err != nil {
		i.markLog(ctx, eventID, enums.WebhookStatusFailed)
		return &Result{Status: enums.WebhookStatusFailed, EventID: eventID}, err
	}

	i.markLog(ctx, eventID, enums.WebhookStatusSuccess)
	i.logg.Info(lctx, "webhook accepted")
	return &Result{Status: enums.WebhookStatusSuccess, EventID: eventID}, nil
}

func (i *Ingestor) buildItem(store *models.Store, evt event, r route) (*models.SyncQueueItem, error) {
	item := &models.SyncQueueItem{
		StoreID:   store.ID,
		SyncType:  r.syncType,
		Direction: enums.SyncDirectionInbound,
		Priority:  r.priority,
	}

	if evt.Code == CodeStockUpdate {
		var data eventData
		if err := json.Unmarshal(evt.Data, &data); err != nil || data.ItemID == nil || data.Stock == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock push without item_id or stock")
		}
		item.ItemID = data.ItemID
		item.ModelID = data.VariationID
		payload, err := json.Marshal(map[string]int{"stock": *data.Stock})
		if err != nil {
			return nil, err
		}
		item.Payload = payload
	}
	return item, nil
}

// persistLog writes the log row for this delivery. Returns true only when
// the event already completed (an existing row with status success); an
// earlier delivery that never completed has its row refreshed so the
// redelivery can run.
func (i *Ingestor) persistLog(ctx context.Context, eventID string, evt event, shopID string, raw []byte, verified bool, status enums.WebhookStatus) bool {
	row := &models.WebhookLog{
		EventID:     eventID,
		WebhookCode: evt.Code,
		ShopID:      shopID,
		Payload:     json.RawMessage(raw),
		Verified:    verified,
		Status:      status,
	}
	err := i.db.WithContext(ctx).Create(row).Error
	if err == nil {
		return false
	}
	if !db.IsUniqueViolation(err) {
		i.logg.Error(ctx, "persisting webhook log", err)
		return false
	}

	var existing models.WebhookLog
	if err := i.db.WithContext(ctx).Where("event_id = ?", eventID).First(&existing).Error; err != nil {
		i.logg.Error(ctx, "loading webhook log", err)
		return true
	}
	if existing.Status == enums.WebhookStatusSuccess {
		return true
	}

	updates := map[string]any{
		"webhook_code": evt.Code,
		"shop_id":      shopID,
		"payload":      json.RawMessage(raw),
		"verified":     verified,
		"status":       status,
	}
	if err := i.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error; err != nil {
		i.logg.Error(ctx, "refreshing webhook log", err)
	}
	return false
}

func (i *Ingestor) markLog(ctx context.Context, eventID string, status enums.WebhookStatus) {
	err := i.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("event_id = ?", eventID).
		Update("status", status).Error
	if err != nil {
		i.logg.Error(ctx, "updating webhook log status", err)
	}
}

func (i *Ingestor) logSucceeded(ctx context.Context, eventID string) bool {
	var count int64
	err := i.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("event_id = ? AND status = ?", eventID, enums.WebhookStatusSuccess).
		Count(&count).Error
	if err != nil {
		i.logg.Error(ctx, "checking webhook log", err)
		return false
	}
	return count > 0
}
