package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/api/responses"
	"github.com/kasirkita/kasirkita-backend/api/validators"
	"github.com/kasirkita/kasirkita-backend/internal/scheduler"
	"github.com/kasirkita/kasirkita-backend/internal/stores"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// StoreService is the slice of internal/stores the controllers need.
type StoreService interface {
	Connect(ctx context.Context, req stores.ConnectRequest) (*models.Store, error)
	Disconnect(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Store, error)
	List(ctx context.Context, onlyActive bool) ([]models.Store, error)
}

// SyncTrigger runs one store's sync cycle on demand.
type SyncTrigger interface {
	RunStore(ctx context.Context, store *models.Store, force bool) (scheduler.StoreSummary, error)
}

func storeIDFromURL(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	return id, nil
}

func StoreConnect(svc StoreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		var payload stores.ConnectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.Connect(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, store)
	}
}

func StoreDisconnect(svc StoreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		id, err := storeIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Disconnect(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "disconnected"})
	}
}

func StoreList(svc StoreService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store service unavailable"))
			return
		}

		onlyActive := r.URL.Query().Get("active") == "true"
		rows, err := svc.List(r.Context(), onlyActive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// StoreSync triggers a forced sync for one store. A sync already running
// under the store lease answers 409.
func StoreSync(svc StoreService, trigger SyncTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || trigger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync trigger unavailable"))
			return
		}

		id, err := storeIDFromURL(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := trigger.RunStore(r.Context(), store, true)
		if err != nil {
			if errors.Is(err, scheduler.ErrLeaseHeld) {
				err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sync already in progress")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
