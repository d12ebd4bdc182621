package syncqueue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

// Repository owns all queue row access. Items are never deleted; terminal
// failures stay behind for inspection and manual retry.
type Repository struct {
	db         *gorm.DB
	maxRetries int
	now        func() time.Time
}

// NewRepository builds the queue store. maxRetries is the retry budget
// stamped onto enqueued items that do not carry their own.
func NewRepository(db *gorm.DB, maxRetries int) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db handle is required")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Repository{db: db, maxRetries: maxRetries, now: time.Now}, nil
}

// Enqueue inserts a new pending item.
func (r *Repository) Enqueue(ctx context.Context, item *models.SyncQueueItem) error {
	if item == nil {
		return errors.New("item is required")
	}
	if !item.SyncType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown sync type")
	}
	if !item.Direction.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown sync direction")
	}
	if item.Status == "" {
		item.Status = enums.SyncStatusPending
	}
	if item.MaxRetries <= 0 {
		item.MaxRetries = r.maxRetries
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueueing sync item")
	}
	return nil
}

const claimSQL = `
UPDATE sync_queue_items
SET status = 'processing', updated_at = NOW()
WHERE id = (
	SELECT id FROM sync_queue_items
	WHERE status = 'pending' AND scheduled_at <= NOW()
	ORDER BY priority DESC, created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id`

// Claim atomically moves the most eligible pending item to processing and
// returns it. Returns (nil, nil) when nothing is eligible. On Postgres the
// claim uses SKIP LOCKED so concurrent workers never double-claim; other
// dialects fall back to an optimistic two-step claim.
func (r *Repository) Claim(ctx context.Context) (*models.SyncQueueItem, error) {
	if r.db.Dialector.Name() == "postgres" {
		return r.claimPostgres(ctx)
	}
	return r.claimOptimistic(ctx)
}

func (r *Repository) claimPostgres(ctx context.Context) (*models.SyncQueueItem, error) {
	var claimed struct{ ID uuid.UUID }
	result := r.db.WithContext(ctx).Raw(claimSQL).Scan(&claimed)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "claiming sync item")
	}
	if result.RowsAffected == 0 || claimed.ID == uuid.Nil {
		return nil, nil
	}
	return r.Get(ctx, claimed.ID)
}

func (r *Repository) claimOptimistic(ctx context.Context) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", enums.SyncStatusPending, r.now()).
		Order("priority DESC, created_at ASC").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "selecting sync item")
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncQueueItem{}).
		Where("id = ? AND status = ?", item.ID, enums.SyncStatusPending).
		Update("status", enums.SyncStatusProcessing)
	if result.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "claiming sync item")
	}
	if result.RowsAffected == 0 {
		// lost the race; let the caller poll again
		return nil, nil
	}
	item.Status = enums.SyncStatusProcessing
	return &item, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.SyncQueueItem, error) {
	var item models.SyncQueueItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sync item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading sync item")
	}
	return &item, nil
}

// MarkSuccess finishes a processing item.
func (r *Repository) MarkSuccess(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id, map[string]any{
		"status":     enums.SyncStatusSuccess,
		"last_error": nil,
	})
}

// Reschedule sends a transiently-failed item back to pending with a bumped
// retry count and a future scheduled_at.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, retryCount int, at time.Time, lastError string) error {
	return r.transition(ctx, id, map[string]any{
		"status":       enums.SyncStatusPending,
		"retry_count":  retryCount,
		"scheduled_at": at,
		"last_error":   lastError,
	})
}

// MarkFailed terminally fails an item, keeping the error verbatim.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.transition(ctx, id, map[string]any{
		"status":     enums.SyncStatusFailed,
		"last_error": lastError,
	})
}

// MarkExhausted terminally fails an item after its last allowed attempt,
// recording the final attempt count alongside the error.
func (r *Repository) MarkExhausted(ctx context.Context, id uuid.UUID, retryCount int, lastError string) error {
	return r.transition(ctx, id, map[string]any{
		"status":      enums.SyncStatusFailed,
		"retry_count": retryCount,
		"last_error":  lastError,
	})
}

func (r *Repository) transition(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncQueueItem{}).
		Where("id = ? AND status = ?", id, enums.SyncStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "updating sync item")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "sync item is not processing")
	}
	return nil
}

// RetryFailed puts a terminally-failed item back in line with a clean slate.
func (r *Repository) RetryFailed(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.SyncQueueItem{}).
		Where("id = ? AND status = ?", id, enums.SyncStatusFailed).
		Updates(map[string]any{
			"status":       enums.SyncStatusPending,
			"retry_count":  0,
			"scheduled_at": r.now(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "retrying sync item")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no failed sync item with that id")
	}
	return nil
}

// List returns queue rows, optionally filtered by status, newest first.
func (r *Repository) List(ctx context.Context, status enums.SyncStatus, limit int) ([]models.SyncQueueItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Model(&models.SyncQueueItem{})
	if status != "" {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown sync status")
		}
		query = query.Where("status = ?", status)
	}
	var items []models.SyncQueueItem
	if err := query.Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing sync items")
	}
	return items, nil
}

// CountByStatus reports queue depth per status for health and metrics.
func (r *Repository) CountByStatus(ctx context.Context) (map[enums.SyncStatus]int64, error) {
	type row struct {
		Status enums.SyncStatus
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.SyncQueueItem{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting sync items")
	}
	counts := make(map[enums.SyncStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
