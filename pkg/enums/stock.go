package enums

import "fmt"

// StockChangeReason maps to the stock_change_reason enum in Postgres.
type StockChangeReason string

const (
	StockChangeSale            StockChangeReason = "sale"
	StockChangePurchase        StockChangeReason = "purchase"
	StockChangeAdjustment      StockChangeReason = "adjustment"
	StockChangeMarketplaceSync StockChangeReason = "marketplace_sync"
	StockChangeReturn          StockChangeReason = "return"
)

var validStockChangeReasons = []StockChangeReason{
	StockChangeSale,
	StockChangePurchase,
	StockChangeAdjustment,
	StockChangeMarketplaceSync,
	StockChangeReturn,
}

// IsValid reports whether the value matches the canonical enum.
func (r StockChangeReason) IsValid() bool {
	for _, candidate := range validStockChangeReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockChangeReason converts raw input into StockChangeReason.
func ParseStockChangeReason(value string) (StockChangeReason, error) {
	for _, candidate := range validStockChangeReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock change reason %q", value)
}

// ProductSource records where a catalog row originated.
type ProductSource string

const (
	ProductSourceManual      ProductSource = "manual"
	ProductSourceMarketplace ProductSource = "marketplace"
)

// IsValid reports whether the value matches the canonical enum.
func (s ProductSource) IsValid() bool {
	return s == ProductSourceManual || s == ProductSourceMarketplace
}
