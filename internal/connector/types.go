package connector

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
)

// Credentials is the read-only slice of a Store needed to sign requests.
type Credentials struct {
	PartnerID   string
	PartnerKey  string
	ShopID      string
	AccessToken string
}

// FromStore extracts signing credentials from a store row.
func FromStore(store *models.Store) Credentials {
	if store == nil {
		return Credentials{}
	}
	return Credentials{
		PartnerID:   store.PartnerID,
		PartnerKey:  store.PartnerKey,
		ShopID:      store.ShopID,
		AccessToken: store.AccessToken,
	}
}

// Missing returns the names of absent credential fields.
func (c Credentials) Missing() []string {
	missing := []string{}
	if strings.TrimSpace(c.PartnerID) == "" {
		missing = append(missing, "partner_id")
	}
	if strings.TrimSpace(c.PartnerKey) == "" {
		missing = append(missing, "partner_key")
	}
	if strings.TrimSpace(c.ShopID) == "" {
		missing = append(missing, "shop_id")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		missing = append(missing, "access_token")
	}
	return missing
}

// ProductRef addresses one remote item, optionally one of its variants.
type ProductRef struct {
	ItemID  int64
	ModelID *int64
}

// Field names accepted by UpdateField.
const (
	FieldPrice = "price"
	FieldStock = "stock"
	FieldSKU   = "sku"
	FieldName  = "name"
)

// RawModel is one variant of a marketplace item as the platform returns it.
type RawModel struct {
	ModelID   int64            `json:"model_id"`
	ModelName string           `json:"model_name"`
	ModelSKU  string           `json:"model_sku"`
	Price     *json.Number     `json:"price"`
	PriceInfo []RawPriceInfo   `json:"price_info"`
	StockInfo *RawStockInfoV2  `json:"stock_info_v2"`
	Stock     *int             `json:"stock"`
}

// RawPriceInfo mirrors the platform's nested price block.
type RawPriceInfo struct {
	CurrentPrice  *json.Number `json:"current_price"`
	OriginalPrice *json.Number `json:"original_price"`
}

// RawStockInfoV2 mirrors the platform's nested stock block.
type RawStockInfoV2 struct {
	SellerStock []RawSellerStock `json:"seller_stock"`
	Summary     *RawStockSummary `json:"summary_info"`
}

type RawSellerStock struct {
	Stock int `json:"stock"`
}

type RawStockSummary struct {
	TotalAvailableStock int `json:"total_available_stock"`
}

// RawProduct is one marketplace item, possibly bundling several variants.
// Price and stock appear under differently-named fields depending on the
// platform API version; the reconciliation extractors handle the fallbacks.
type RawProduct struct {
	ItemID        int64           `json:"item_id"`
	ItemName      string          `json:"item_name"`
	ItemSKU       string          `json:"item_sku"`
	CategoryName  string          `json:"category_name"`
	Images        []string        `json:"images"`
	CurrentPrice  *json.Number    `json:"current_price"`
	PriceInfo     []RawPriceInfo  `json:"price_info"`
	Price         *json.Number    `json:"price"`
	OriginalPrice *json.Number    `json:"original_price"`
	NormalStock   *int            `json:"normal_stock"`
	CurrentStock  *int            `json:"current_stock"`
	Stock         *int            `json:"stock"`
	StockInfo     *RawStockInfoV2 `json:"stock_info_v2"`
	Models        []RawModel      `json:"models"`
}

// Page is one page of a product listing.
type Page struct {
	Products   []RawProduct
	NextCursor string
	HasMore    bool
}

// RawOrder is one marketplace order as returned by the order list API.
type RawOrder struct {
	OrderSN       string       `json:"order_sn"`
	OrderStatus   string       `json:"order_status"`
	TotalAmount   *json.Number `json:"total_amount"`
	Currency      string       `json:"currency"`
	BuyerUsername string       `json:"buyer_username"`
	CreateTime    int64        `json:"create_time"`
}

// OrderedAt converts the platform epoch into a time.Time.
func (o RawOrder) OrderedAt() time.Time {
	if o.CreateTime <= 0 {
		return time.Time{}
	}
	return time.Unix(o.CreateTime, 0).UTC()
}

// TokenBundle is the result of an OAuth code or refresh exchange.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Ack is the minimal confirmation for a successful update call.
type Ack struct {
	RequestID string
}
