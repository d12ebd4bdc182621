package shopee

import (
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
)

// Platform push codes the engine reacts to. Anything else is logged as
// ignored and never enqueued.
const (
	CodeOrderStatusUpdate = 3
	CodeTrackingNoUpdate  = 4
	CodeStockUpdate       = 8
	CodeItemUpdate        = 9
)

// route describes what one push code turns into.
type route struct {
	syncType enums.SyncType
	priority int
}

// routes maps handled codes to queue work. Order events outrank stock echoes
// so a cancellation restocks before the next scheduled push overwrites it.
var routes = map[int]route{
	CodeOrderStatusUpdate: {syncType: enums.SyncTypeOrderRefresh, priority: enums.PriorityHigh},
	CodeStockUpdate:       {syncType: enums.SyncTypeStockUpdate, priority: enums.PriorityNormal},
	CodeItemUpdate:        {syncType: enums.SyncTypeProductRefresh, priority: enums.PriorityNormal},
}
