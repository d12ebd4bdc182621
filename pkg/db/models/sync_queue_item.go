package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/enums"
)

// SyncQueueItem is one pending unit of synchronization work. Rows are never
// deleted; terminal failures stay visible for operator retry.
type SyncQueueItem struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`

	SyncType  enums.SyncType      `gorm:"column:sync_type;type:sync_type;not null"`
	Direction enums.SyncDirection `gorm:"column:direction;type:sync_direction;not null"`

	ProductID *uuid.UUID      `gorm:"column:product_id;type:uuid"`
	ItemID    *int64          `gorm:"column:item_id"`
	ModelID   *int64          `gorm:"column:model_id"`
	Payload   json.RawMessage `gorm:"column:payload;type:jsonb"`

	Priority   int              `gorm:"column:priority;not null;default:0;index:ix_sync_queue_claim"`
	Status     enums.SyncStatus `gorm:"column:status;type:sync_status;not null;default:'pending';index:ix_sync_queue_claim"`
	RetryCount int              `gorm:"column:retry_count;not null;default:0"`
	MaxRetries int              `gorm:"column:max_retries;not null;default:3"`

	ScheduledAt time.Time `gorm:"column:scheduled_at;not null;index:ix_sync_queue_claim"`
	LastError   *string   `gorm:"column:last_error"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *SyncQueueItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.ScheduledAt.IsZero() {
		i.ScheduledAt = time.Now()
	}
	return nil
}
