package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
	"github.com/kasirkita/kasirkita-backend/pkg/types"
)

// Summary reports the outcome of one import run. Imported+Updated+Skipped
// never exceeds Total; entries that expand to nothing count toward none.
type Summary struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

func (s Summary) Add(other Summary) Summary {
	return Summary{
		Imported: s.Imported + other.Imported,
		Updated:  s.Updated + other.Updated,
		Skipped:  s.Skipped + other.Skipped,
		Total:    s.Total + other.Total,
	}
}

// Repo is the catalog access the engine needs.
type Repo interface {
	FindByRemoteKey(ctx context.Context, storeID uuid.UUID, remoteKey string) (*models.Product, error)
	FindBySKU(ctx context.Context, sku string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
}

type EngineParams struct {
	Repo   Repo
	Logger *logger.Logger
}

// Engine folds marketplace product payloads into the local catalog.
type Engine struct {
	repo Repo
	logg *logger.Logger
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Repo == nil {
		return nil, errors.New("product repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Engine{repo: params.Repo, logg: params.Logger}, nil
}

// ImportProducts reconciles one batch of platform items. A malformed or
// conflicting entry is skipped, never aborts the batch.
func (e *Engine) ImportProducts(ctx context.Context, store *models.Store, raws []connector.RawProduct) (Summary, error) {
	if store == nil {
		return Summary{}, errors.New("store is required")
	}

	summary := Summary{}
	for _, raw := range raws {
		for _, cand := range expand(raw) {
			summary.Total++

			outcome, err := e.apply(ctx, store, cand)
			if err != nil {
				// Persistence failures on a single row do not abort the batch;
				// the row simply does not count toward any bucket.
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
					"store_id":   store.ID.String(),
					"remote_key": cand.RemoteKey,
					"error":      err.Error(),
				}), "skipping product row after persistence failure")
				continue
			}
			switch outcome {
			case outcomeImported:
				summary.Imported++
			case outcomeUpdated:
				summary.Updated++
			case outcomeSkipped:
				summary.Skipped++
			}
		}
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"store_id": store.ID.String(),
		"imported": summary.Imported,
		"updated":  summary.Updated,
		"skipped":  summary.Skipped,
		"total":    summary.Total,
	}), "product import reconciled")
	return summary, nil
}

type outcome int

const (
	outcomeImported outcome = iota
	outcomeUpdated
	outcomeSkipped
)

func (e *Engine) apply(ctx context.Context, store *models.Store, cand candidate) (outcome, error) {
	existing, err := e.repo.FindByRemoteKey(ctx, store.ID, cand.RemoteKey)
	if err != nil {
		return outcomeSkipped, err
	}
	if existing != nil {
		merge(existing, cand)
		if err := e.repo.Save(ctx, existing); err != nil {
			return outcomeSkipped, err
		}
		return outcomeUpdated, nil
	}

	// Duplicate-SKU protection: a non-empty SKU already owned by a different
	// row means the incoming record is dropped, never merged over it.
	if cand.SKU != "" {
		owner, err := e.repo.FindBySKU(ctx, cand.SKU)
		if err != nil {
			return outcomeSkipped, err
		}
		if owner != nil {
			return outcomeSkipped, nil
		}
	}

	storeID := store.ID
	product := &models.Product{
		StoreID:   &storeID,
		RemoteKey: strPtr(cand.RemoteKey),
		ItemID:    int64Ptr(cand.ItemID),
		ModelID:   cand.ModelID,
		SKU:       cand.SKU,
		Name:      cand.Name,
		Price:     cand.Price,
		Stock:     cand.Stock,
		Category:  cand.Category,
		Images:    types.StringList(cand.Images),
		Source:    enums.ProductSourceMarketplace,
		IsActive:  true,
	}
	if err := e.repo.Create(ctx, product); err != nil {
		return outcomeSkipped, err
	}
	return outcomeImported, nil
}

// merge folds the incoming commercial fields into an existing row. Identity
// fields (SKU, remote key, source) are left alone.
func merge(existing *models.Product, cand candidate) {
	existing.Name = cand.Name
	existing.Price = cand.Price
	existing.Stock = cand.Stock
	if cand.Category != "" {
		existing.Category = cand.Category
	}
	if len(cand.Images) > 0 {
		existing.Images = types.StringList(cand.Images)
	}
	existing.IsActive = true
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
