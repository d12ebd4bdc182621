package enums

import "fmt"

// SyncType maps to the sync_type enum in Postgres.
type SyncType string

const (
	SyncTypeStockUpdate    SyncType = "stock_update"
	SyncTypePriceUpdate    SyncType = "price_update"
	SyncTypeSKUUpdate      SyncType = "sku_update"
	SyncTypeNameUpdate     SyncType = "name_update"
	SyncTypeProductRefresh SyncType = "product_refresh"
	SyncTypeOrderRefresh   SyncType = "order_refresh"
)

var validSyncTypes = []SyncType{
	SyncTypeStockUpdate,
	SyncTypePriceUpdate,
	SyncTypeSKUUpdate,
	SyncTypeNameUpdate,
	SyncTypeProductRefresh,
	SyncTypeOrderRefresh,
}

// IsValid reports whether the value matches the canonical sync_type enum.
func (s SyncType) IsValid() bool {
	for _, candidate := range validSyncTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncType converts raw input into SyncType.
func ParseSyncType(value string) (SyncType, error) {
	for _, candidate := range validSyncTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync type %q", value)
}

// SyncDirection maps to the sync_direction enum in Postgres.
type SyncDirection string

const (
	// SyncDirectionOutbound pushes local state to the marketplace.
	SyncDirectionOutbound SyncDirection = "outbound"
	// SyncDirectionInbound applies marketplace state locally.
	SyncDirectionInbound SyncDirection = "inbound"
)

// IsValid reports whether the value matches the canonical sync_direction enum.
func (d SyncDirection) IsValid() bool {
	return d == SyncDirectionOutbound || d == SyncDirectionInbound
}

// SyncStatus maps to the sync_status enum in Postgres.
//
// Transitions are monotonic: pending -> processing -> success, or
// processing -> pending (transient retry), or processing -> failed.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusPending,
	SyncStatusProcessing,
	SyncStatusSuccess,
	SyncStatusFailed,
}

// IsValid reports whether the value matches the canonical sync_status enum.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the item will not be processed again without
// operator action.
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSuccess || s == SyncStatusFailed
}

// ParseSyncStatus converts raw input into SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}

// Queue priorities. Higher values are claimed first.
const (
	PriorityLow    = 0
	PriorityNormal = 5
	PriorityHigh   = 10
)
