package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

// Repository is the gorm-backed catalog access used by the engine.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db handle is required")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) FindByRemoteKey(ctx context.Context, storeID uuid.UUID, remoteKey string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND remote_key = ?", storeID, remoteKey).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up product by remote key")
	}
	return &product, nil
}

func (r *Repository) FindBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "looking up product by sku")
	}
	return &product, nil
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating product")
	}
	return nil
}

func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving product")
	}
	return nil
}
