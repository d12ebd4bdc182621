package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/enums"
)

// StockHistory is the append-only ledger of stock mutations. Rows are never
// updated after creation.
type StockHistory struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID               `gorm:"column:product_id;type:uuid;not null;index"`
	OldStock  int                     `gorm:"column:old_stock;not null"`
	NewStock  int                     `gorm:"column:new_stock;not null"`
	Delta     int                     `gorm:"column:delta;not null"`
	Reason    enums.StockChangeReason `gorm:"column:reason;type:stock_change_reason;not null"`
	Actor     string                  `gorm:"column:actor;not null;default:'system'"`
	Note      *string                 `gorm:"column:note"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (h *StockHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
