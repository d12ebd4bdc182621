package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarketOrder mirrors one marketplace order locally. Identity is the
// platform order serial scoped to the store.
type MarketOrder struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	StoreID uuid.UUID `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_market_orders_store_sn"`
	OrderSN string    `gorm:"column:order_sn;not null;uniqueIndex:ux_market_orders_store_sn"`

	Status        string          `gorm:"column:status;not null"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:numeric(14,2);not null"`
	Currency      string          `gorm:"column:currency;not null;default:'IDR'"`
	BuyerUsername *string         `gorm:"column:buyer_username"`
	OrderedAt     time.Time       `gorm:"column:ordered_at"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *MarketOrder) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
