package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/internal/scheduler"
	"github.com/kasirkita/kasirkita-backend/internal/stores"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

type stubStoreService struct {
	store      *models.Store
	err        error
	disconnect []uuid.UUID
}

func (s *stubStoreService) Connect(_ context.Context, _ stores.ConnectRequest) (*models.Store, error) {
	return s.store, s.err
}

func (s *stubStoreService) Disconnect(_ context.Context, id uuid.UUID) error {
	s.disconnect = append(s.disconnect, id)
	return s.err
}

func (s *stubStoreService) Get(_ context.Context, _ uuid.UUID) (*models.Store, error) {
	return s.store, s.err
}

func (s *stubStoreService) List(_ context.Context, _ bool) ([]models.Store, error) {
	if s.store == nil {
		return nil, s.err
	}
	return []models.Store{*s.store}, s.err
}

type stubTrigger struct {
	summary scheduler.StoreSummary
	err     error
}

func (s *stubTrigger) RunStore(_ context.Context, _ *models.Store, _ bool) (scheduler.StoreSummary, error) {
	return s.summary, s.err
}

func urlParamRequest(method, path, id string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestStoreConnectCreated(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Platform: enums.PlatformShopee, ShopID: "shop-1", ShopName: "Toko"}
	svc := &stubStoreService{store: store}

	body, _ := json.Marshal(stores.ConnectRequest{
		Platform:   "shopee",
		ShopID:     "shop-1",
		ShopName:   "Toko",
		PartnerID:  "10001",
		PartnerKey: "secret",
		AuthCode:   "auth-code",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/connect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	StoreConnect(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
}

func TestStoreConnectValidation(t *testing.T) {
	body := []byte(`{"platform":"shopee"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stores/connect", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	StoreConnect(&stubStoreService{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestStoreSyncConflictWhenLeaseHeld(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Platform: enums.PlatformShopee}
	svc := &stubStoreService{store: store}
	trigger := &stubTrigger{err: scheduler.ErrLeaseHeld}

	rec := httptest.NewRecorder()
	StoreSync(svc, trigger, nil).ServeHTTP(rec, urlParamRequest(http.MethodPost, "/api/v1/stores/x/sync", store.ID.String()))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestStoreSyncReturnsSummary(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Platform: enums.PlatformShopee}
	svc := &stubStoreService{store: store}
	trigger := &stubTrigger{summary: scheduler.StoreSummary{StoreID: store.ID, Imported: 3}}

	rec := httptest.NewRecorder()
	StoreSync(svc, trigger, nil).ServeHTTP(rec, urlParamRequest(http.MethodPost, "/api/v1/stores/x/sync", store.ID.String()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var envelope struct {
		Data scheduler.StoreSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Imported != 3 {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
}

func TestStoreDisconnectUnknown(t *testing.T) {
	svc := &stubStoreService{err: pkgerrors.New(pkgerrors.CodeNotFound, "store not found")}

	rec := httptest.NewRecorder()
	StoreDisconnect(svc, nil).ServeHTTP(rec, urlParamRequest(http.MethodDelete, "/api/v1/stores/x", uuid.NewString()))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestStoreSyncInvalidID(t *testing.T) {
	rec := httptest.NewRecorder()
	StoreSync(&stubStoreService{}, &stubTrigger{}, nil).ServeHTTP(rec, urlParamRequest(http.MethodPost, "/api/v1/stores/x/sync", "nope"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
