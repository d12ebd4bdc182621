package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	"github.com/kasirkita/kasirkita-backend/pkg/types"
)

// Product is one sellable row in the local catalog. Multi-variant
// marketplace items are flattened into one row per variant; RemoteKey is the
// deterministic identity derived from (item_id, model_id) so re-imports
// update instead of duplicating.
type Product struct {
	ID      uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	StoreID *uuid.UUID `gorm:"column:store_id;type:uuid;index;uniqueIndex:ux_products_store_remote"`

	RemoteKey *string    `gorm:"column:remote_key;uniqueIndex:ux_products_store_remote"`
	ItemID    *int64     `gorm:"column:item_id"`
	ModelID   *int64     `gorm:"column:model_id"`
	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid"`

	// SKU may be empty for rows that never touch a marketplace; when set it
	// must be unique across the catalog (enforced at reconciliation time and
	// by a partial index in migrations).
	SKU      string              `gorm:"column:sku;not null;default:''"`
	Name     string              `gorm:"column:name;not null"`
	Price    decimal.Decimal     `gorm:"column:price;type:numeric(14,2);not null"`
	Stock    int                 `gorm:"column:stock;not null;default:0"`
	MinStock int                 `gorm:"column:min_stock;not null;default:0"`
	Category string              `gorm:"column:category"`
	Unit     string              `gorm:"column:unit"`
	Images   types.StringList    `gorm:"column:images;type:jsonb"`
	Source   enums.ProductSource `gorm:"column:source;not null;default:'manual'"`
	IsActive bool                `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
