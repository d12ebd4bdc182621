package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

// Ledger applies stock mutations and records every change in the append-only
// stock history. Both writes happen in one transaction so the ledger never
// disagrees with the product row.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("db handle is required")
	}
	return &Ledger{db: db}, nil
}

// Change is one requested stock mutation.
type Change struct {
	ProductID uuid.UUID
	NewStock  int
	Reason    enums.StockChangeReason
	Actor     string
	Note      string
}

// Apply sets the product's stock and appends a history row. Negative target
// stock is a validation error; the product row is never driven below zero.
func (l *Ledger) Apply(ctx context.Context, change Change) (*models.StockHistory, error) {
	if change.NewStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if !change.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown stock change reason")
	}
	actor := change.Actor
	if actor == "" {
		actor = "system"
	}

	var history *models.StockHistory
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", change.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
		}

		old := product.Stock
		if err := tx.Model(&product).Update("stock", change.NewStock).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating stock")
		}

		row := &models.StockHistory{
			ProductID: product.ID,
			OldStock:  old,
			NewStock:  change.NewStock,
			Delta:     change.NewStock - old,
			Reason:    change.Reason,
			Actor:     actor,
		}
		if change.Note != "" {
			note := change.Note
			row.Note = &note
		}
		if err := tx.Create(row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "appending stock history")
		}
		history = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// History returns the ledger rows for a product, newest first.
func (l *Ledger) History(ctx context.Context, productID uuid.UUID, limit int) ([]models.StockHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.StockHistory
	err := l.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading stock history")
	}
	return rows, nil
}
