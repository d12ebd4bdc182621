package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/db"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

// Repository owns Store row access.
type Repository struct {
	gdb *gorm.DB
}

func NewRepository(gdb *gorm.DB) (*Repository, error) {
	if gdb == nil {
		return nil, errors.New("db handle is required")
	}
	return &Repository{gdb: gdb}, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.gdb.WithContext(ctx).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	return &store, nil
}

// FindByShopID returns nil when no store matches; absence is not an error
// at this layer.
func (r *Repository) FindByShopID(ctx context.Context, platform enums.Platform, shopID string) (*models.Store, error) {
	var store models.Store
	err := r.gdb.WithContext(ctx).
		Where("platform = ? AND shop_id = ?", platform, shopID).
		First(&store).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up store by shop id")
	}
	return &store, nil
}

func (r *Repository) List(ctx context.Context, onlyActive bool) ([]models.Store, error) {
	query := r.gdb.WithContext(ctx).Model(&models.Store{})
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	var stores []models.Store
	if err := query.Order("created_at ASC").Find(&stores).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing stores")
	}
	return stores, nil
}

func (r *Repository) Create(ctx context.Context, store *models.Store) error {
	if err := r.gdb.WithContext(ctx).Create(store).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return pkgerrors.New(pkgerrors.CodeConflict, "a store for this platform and shop already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating store")
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, store *models.Store) error {
	if err := r.gdb.WithContext(ctx).Save(store).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving store")
	}
	return nil
}

// Delete removes the store row. Disconnect is terminal.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.gdb.WithContext(ctx).Delete(&models.Store{}, "id = ?", id)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "deleting store")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return nil
}

// StampLastSync records a completed sync operation.
func (r *Repository) StampLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.gdb.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Update("last_sync_at", at)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "stamping last sync")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return nil
}

// SetCounters refreshes the cached product/order counts.
func (r *Repository) SetCounters(ctx context.Context, id uuid.UUID, productCount, orderCount int) error {
	result := r.gdb.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"product_count": productCount,
			"order_count":   orderCount,
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "updating store counters")
	}
	return nil
}

// AddOrderCount bumps the cached order counter.
func (r *Repository) AddOrderCount(ctx context.Context, id uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	err := r.gdb.WithContext(ctx).
		Model(&models.Store{}).
		Where("id = ?", id).
		Update("order_count", gorm.Expr("order_count + ?", delta)).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bumping order count")
	}
	return nil
}
