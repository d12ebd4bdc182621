package stores

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/internal/connector"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// TokenExchanger swaps an OAuth authorization code for tokens.
type TokenExchanger interface {
	ExchangeAuthCode(ctx context.Context, creds connector.Credentials, code string) (*connector.TokenBundle, error)
}

type ServiceParams struct {
	Repo      *Repository
	Exchanger TokenExchanger
	Logger    *logger.Logger
}

// Service manages the store lifecycle: connect, disconnect, activation.
type Service struct {
	repo      *Repository
	exchanger TokenExchanger
	logg      *logger.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("store repository is required")
	}
	if params.Exchanger == nil {
		return nil, errors.New("token exchanger is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:      params.Repo,
		exchanger: params.Exchanger,
		logg:      params.Logger,
		validate:  validator.New(),
		now:       time.Now,
	}, nil
}

// ConnectRequest carries everything needed to link a marketplace shop.
type ConnectRequest struct {
	Platform   string `json:"platform" validate:"required"`
	ShopID     string `json:"shop_id" validate:"required"`
	ShopName   string `json:"shop_name" validate:"required"`
	PartnerID  string `json:"partner_id" validate:"required"`
	PartnerKey string `json:"partner_key" validate:"required"`
	AuthCode   string `json:"auth_code" validate:"required"`
}

// Connect exchanges the OAuth code and creates (or re-links) the store.
// Reconnecting an existing (platform, shopId) pair refreshes its credentials
// instead of failing the unique constraint.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (*models.Store, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid connect request")
	}
	platform, err := enums.ParsePlatform(req.Platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid platform")
	}
	if !platform.IsMarketplace() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform does not support OAuth connect")
	}

	creds := connector.Credentials{
		PartnerID:  req.PartnerID,
		PartnerKey: req.PartnerKey,
		ShopID:     req.ShopID,
	}
	bundle, err := s.exchanger.ExchangeAuthCode(ctx, creds, req.AuthCode)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByShopID(ctx, platform, req.ShopID)
	if err != nil {
		return nil, err
	}

	expiry := bundle.ExpiresAt
	if existing != nil {
		existing.ShopName = req.ShopName
		existing.PartnerID = req.PartnerID
		existing.PartnerKey = req.PartnerKey
		existing.AccessToken = bundle.AccessToken
		existing.RefreshToken = bundle.RefreshToken
		existing.TokenExpiry = &expiry
		existing.IsActive = true
		if err := s.repo.Save(ctx, existing); err != nil {
			return nil, err
		}
		s.logg.Info(s.logg.WithStoreID(ctx, existing.ID.String()), "store reconnected")
		return existing, nil
	}

	store := &models.Store{
		Platform:     platform,
		ShopID:       req.ShopID,
		ShopName:     req.ShopName,
		PartnerID:    req.PartnerID,
		PartnerKey:   req.PartnerKey,
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		TokenExpiry:  &expiry,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithStoreID(ctx, store.ID.String()), "store connected")
	return store, nil
}

// Disconnect removes the store permanently.
func (s *Service) Disconnect(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithStoreID(ctx, id.String()), "store disconnected")
	return nil
}

// SetActive toggles whether the scheduler includes the store.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Store, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	store.IsActive = active
	if err := s.repo.Save(ctx, store); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, onlyActive bool) ([]models.Store, error) {
	return s.repo.List(ctx, onlyActive)
}
