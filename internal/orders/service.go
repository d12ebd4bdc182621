package orders

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// CounterBumper keeps the store's cached order count in step with inserts.
type CounterBumper interface {
	AddOrderCount(ctx context.Context, id uuid.UUID, delta int) error
}

type ServiceParams struct {
	DB       *gorm.DB
	Counters CounterBumper
	Logger   *logger.Logger
}

// Service mirrors marketplace orders into local rows.
type Service struct {
	gdb      *gorm.DB
	counters CounterBumper
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db handle is required")
	}
	if params.Counters == nil {
		return nil, errors.New("counter bumper is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{gdb: params.DB, counters: params.Counters, logg: params.Logger}, nil
}

// ApplyOrders upserts fetched orders by (storeID, orderSN) and returns how
// many were written. Malformed entries are skipped, never abort the batch.
func (s *Service) ApplyOrders(ctx context.Context, store *models.Store, raws []connector.RawOrder) (int, error) {
	if store == nil {
		return 0, errors.New("store is required")
	}

	synced := 0
	inserted := 0
	for _, raw := range raws {
		if raw.OrderSN == "" {
			continue
		}
		wasNew, err := s.upsert(ctx, store.ID, raw)
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"store_id": store.ID.String(),
				"order_sn": raw.OrderSN,
				"error":    err.Error(),
			}), "skipping order row after persistence failure")
			continue
		}
		synced++
		if wasNew {
			inserted++
		}
	}

	if inserted > 0 {
		if err := s.counters.AddOrderCount(ctx, store.ID, inserted); err != nil {
			s.logg.Warn(ctx, "bumping order count failed: "+err.Error())
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"store_id": store.ID.String(),
		"synced":   synced,
		"inserted": inserted,
	}), "orders applied")
	return synced, nil
}

func (s *Service) upsert(ctx context.Context, storeID uuid.UUID, raw connector.RawOrder) (bool, error) {
	amount := decimal.Zero
	if raw.TotalAmount != nil {
		if parsed, err := decimal.NewFromString(raw.TotalAmount.String()); err == nil {
			amount = parsed
		}
	}
	currency := raw.Currency
	if currency == "" {
		currency = "IDR"
	}
	orderedAt := raw.OrderedAt()
	if orderedAt.IsZero() {
		orderedAt = time.Now()
	}
	payload, _ := json.Marshal(raw)

	var existing models.MarketOrder
	err := s.gdb.WithContext(ctx).
		Where("store_id = ? AND order_sn = ?", storeID, raw.OrderSN).
		First(&existing).Error
	if err == nil {
		existing.Status = raw.OrderStatus
		existing.TotalAmount = amount
		existing.Currency = currency
		existing.Payload = payload
		if raw.BuyerUsername != "" {
			buyer := raw.BuyerUsername
			existing.BuyerUsername = &buyer
		}
		if saveErr := s.gdb.WithContext(ctx).Save(&existing).Error; saveErr != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, saveErr, "updating order")
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up order")
	}

	row := &models.MarketOrder{
		StoreID:     storeID,
		OrderSN:     raw.OrderSN,
		Status:      raw.OrderStatus,
		TotalAmount: amount,
		Currency:    currency,
		OrderedAt:   orderedAt,
		Payload:     payload,
	}
	if raw.BuyerUsername != "" {
		buyer := raw.BuyerUsername
		row.BuyerUsername = &buyer
	}
	if createErr := s.gdb.WithContext(ctx).Create(row).Error; createErr != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "inserting order")
	}
	return true, nil
}

// List returns a store's mirrored orders, newest first.
func (s *Service) List(ctx context.Context, storeID uuid.UUID, limit int) ([]models.MarketOrder, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.MarketOrder
	err := s.gdb.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("ordered_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing orders")
	}
	return rows, nil
}
