package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/enums"
)

// WebhookLog is the append-only record of one inbound marketplace event.
// EventID carries the platform-assigned identifier and backs idempotency.
type WebhookLog struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	EventID     string              `gorm:"column:event_id;not null;uniqueIndex:ux_webhook_logs_event"`
	WebhookCode int                 `gorm:"column:webhook_code;not null"`
	ShopID      string              `gorm:"column:shop_id;not null"`
	Payload     json.RawMessage     `gorm:"column:payload;type:jsonb"`
	Verified    bool                `gorm:"column:verified;not null;default:false"`
	Status      enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null;default:'pending'"`
	ReceivedAt  time.Time           `gorm:"column:received_at;autoCreateTime"`
}

func (w *WebhookLog) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
