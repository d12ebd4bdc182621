package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshToken(ctx context.Context, creds connector.Credentials, refreshToken string) (*connector.TokenBundle, error)
}

// Repo persists token state for a store.
type Repo interface {
	GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error)
	SaveTokens(ctx context.Context, id uuid.UUID, bundle connector.TokenBundle) error
}

type ServiceParams struct {
	Repo      Repo
	Refresher Refresher
	Logger    *logger.Logger
	TokenSkew time.Duration
}

// Service hands out signing credentials, transparently refreshing access
// tokens that are expired or about to expire.
type Service struct {
	repo      Repo
	refresher Refresher
	logg      *logger.Logger
	skew      time.Duration
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("credentials repo is required")
	}
	if params.Refresher == nil {
		return nil, errors.New("token refresher is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	skew := params.TokenSkew
	if skew <= 0 {
		skew = 10 * time.Minute
	}
	return &Service{
		repo:      params.Repo,
		refresher: params.Refresher,
		logg:      params.Logger,
		skew:      skew,
		now:       time.Now,
	}, nil
}

// ForStore returns usable credentials for the store, refreshing first when
// the access token expires inside the skew window. The store row is updated
// in place on refresh so callers keep a consistent view.
func (s *Service) ForStore(ctx context.Context, store *models.Store) (connector.Credentials, error) {
	if store == nil {
		return connector.Credentials{}, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}

	creds := connector.FromStore(store)
	if creds.PartnerID == "" || creds.PartnerKey == "" {
		return connector.Credentials{}, pkgerrors.New(pkgerrors.CodeMissingCredentials, "store has no partner credentials").
			WithDetails(map[string]any{"store_id": store.ID.String()})
	}

	if !s.needsRefresh(store) {
		if missing := creds.Missing(); len(missing) > 0 {
			return connector.Credentials{}, pkgerrors.New(pkgerrors.CodeMissingCredentials, "store credentials incomplete").
				WithDetails(map[string]any{"missing": missing})
		}
		return creds, nil
	}

	if store.RefreshToken == "" {
		return connector.Credentials{}, pkgerrors.New(pkgerrors.CodeMissingCredentials, "access token expired and no refresh token is stored").
			WithDetails(map[string]any{"store_id": store.ID.String()})
	}

	bundle, err := s.refresher.RefreshToken(ctx, creds, store.RefreshToken)
	if err != nil {
		return connector.Credentials{}, err
	}
	if err := s.repo.SaveTokens(ctx, store.ID, *bundle); err != nil {
		return connector.Credentials{}, err
	}

	store.AccessToken = bundle.AccessToken
	store.RefreshToken = bundle.RefreshToken
	expiry := bundle.ExpiresAt
	store.TokenExpiry = &expiry

	s.logg.Info(s.logg.WithStoreID(ctx, store.ID.String()), "access token refreshed")

	creds.AccessToken = bundle.AccessToken
	return creds, nil
}

// EnsureFresh loads the store and returns it with usable credentials.
func (s *Service) EnsureFresh(ctx context.Context, storeID uuid.UUID) (*models.Store, connector.Credentials, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, connector.Credentials{}, err
	}
	creds, err := s.ForStore(ctx, store)
	if err != nil {
		return nil, connector.Credentials{}, err
	}
	return store, creds, nil
}

func (s *Service) needsRefresh(store *models.Store) bool {
	if store.AccessToken == "" {
		return true
	}
	if store.TokenExpiry == nil {
		return false
	}
	return !store.TokenExpiry.After(s.now().Add(s.skew))
}

// Repository is the gorm-backed Repo implementation.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("db handle is required")
	}
	return &Repository{db: db}, nil
}

func (r *Repository) GetStore(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	return &store, nil
}

func (r *Repository) SaveTokens(ctx context.Context, id uuid.UUID, bundle connector.TokenBundle) error {
	updates := map[string]any{
		"access_token":  bundle.AccessToken,
		"refresh_token": bundle.RefreshToken,
		"token_expiry":  bundle.ExpiresAt,
	}
	result := r.db.WithContext(ctx).Model(&models.Store{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "saving tokens")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return nil
}
