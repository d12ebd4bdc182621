package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
)

// candidate is one flattened local row derived from a platform payload.
type candidate struct {
	RemoteKey string
	ItemID    int64
	ModelID   *int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Category  string
	Images    []string
}

// RemoteKey derives the stable identity for an imported row so repeated
// imports of the same item or variant update instead of duplicating.
func RemoteKey(itemID int64, modelID *int64) string {
	if modelID != nil {
		return fmt.Sprintf("item:%d:model:%d", itemID, *modelID)
	}
	return fmt.Sprintf("item:%d", itemID)
}

// expand flattens one platform item into candidate rows. Items bundling two
// or more variants produce one row per variant; everything else produces a
// single row. Items without a usable id produce nothing.
func expand(raw connector.RawProduct) []candidate {
	if raw.ItemID <= 0 {
		return nil
	}

	if len(raw.Models) >= 2 {
		out := make([]candidate, 0, len(raw.Models))
		for _, model := range raw.Models {
			modelID := model.ModelID
			name := raw.ItemName
			if model.ModelName != "" {
				name = raw.ItemName + " - " + model.ModelName
			}
			out = append(out, candidate{
				RemoteKey: RemoteKey(raw.ItemID, &modelID),
				ItemID:    raw.ItemID,
				ModelID:   &modelID,
				SKU:       model.ModelSKU,
				Name:      name,
				Price:     modelPrice(model),
				Stock:     modelStock(model),
				Category:  raw.CategoryName,
				Images:    raw.Images,
			})
		}
		return out
	}

	cand := candidate{
		RemoteKey: RemoteKey(raw.ItemID, nil),
		ItemID:    raw.ItemID,
		SKU:       raw.ItemSKU,
		Name:      raw.ItemName,
		Price:     itemPrice(raw),
		Stock:     itemStock(raw),
		Category:  raw.CategoryName,
		Images:    raw.Images,
	}
	// A lone variant carries the commercial fields; fold them into the item row.
	if len(raw.Models) == 1 {
		model := raw.Models[0]
		if model.ModelSKU != "" {
			cand.SKU = model.ModelSKU
		}
		if price := modelPrice(model); !price.IsZero() {
			cand.Price = price
		}
		if stock := modelStock(model); stock > 0 {
			cand.Stock = stock
		}
	}
	return []candidate{cand}
}

// itemPrice reads the item price through the platform's fallback chain.
func itemPrice(raw connector.RawProduct) decimal.Decimal {
	if price, ok := number(raw.CurrentPrice); ok {
		return price
	}
	for _, info := range raw.PriceInfo {
		if price, ok := number(info.CurrentPrice); ok {
			return price
		}
	}
	if price, ok := number(raw.Price); ok {
		return price
	}
	if price, ok := number(raw.OriginalPrice); ok {
		return price
	}
	return decimal.Zero
}

func modelPrice(model connector.RawModel) decimal.Decimal {
	if price, ok := number(model.Price); ok {
		return price
	}
	for _, info := range model.PriceInfo {
		if price, ok := number(info.CurrentPrice); ok {
			return price
		}
		if price, ok := number(info.OriginalPrice); ok {
			return price
		}
	}
	return decimal.Zero
}

// itemStock reads stock through the platform's fallback chain.
func itemStock(raw connector.RawProduct) int {
	if stock, ok := stockInfo(raw.StockInfo); ok {
		return stock
	}
	if raw.NormalStock != nil {
		return *raw.NormalStock
	}
	if raw.Stock != nil {
		return *raw.Stock
	}
	if raw.CurrentStock != nil {
		return *raw.CurrentStock
	}
	return 0
}

func modelStock(model connector.RawModel) int {
	if stock, ok := stockInfo(model.StockInfo); ok {
		return stock
	}
	if model.Stock != nil {
		return *model.Stock
	}
	return 0
}

func stockInfo(info *connector.RawStockInfoV2) (int, bool) {
	if info == nil {
		return 0, false
	}
	if len(info.SellerStock) > 0 {
		total := 0
		for _, entry := range info.SellerStock {
			total += entry.Stock
		}
		return total, true
	}
	if info.Summary != nil {
		return info.Summary.TotalAvailableStock, true
	}
	return 0, false
}

func number(value *json.Number) (decimal.Decimal, bool) {
	if value == nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(value.String())
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}
