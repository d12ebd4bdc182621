package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kasirkita/kasirkita-backend/api/responses"
	"github.com/kasirkita/kasirkita-backend/pkg/db/models"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// QueueRepository is the slice of internal/syncqueue the controllers need.
type QueueRepository interface {
	List(ctx context.Context, status enums.SyncStatus, limit int) ([]models.SyncQueueItem, error)
	CountByStatus(ctx context.Context) (map[enums.SyncStatus]int64, error)
	RetryFailed(ctx context.Context, id uuid.UUID) error
}

func QueueList(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "queue repository unavailable"))
			return
		}

		var status enums.SyncStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseSyncStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = parsed
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit"))
				return
			}
			limit = parsed
		}

		items, err := repo.List(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := repo.CountByStatus(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items":  items,
			"counts": counts,
		})
	}
}

// QueueRetry re-arms a terminally failed item for immediate pickup.
func QueueRetry(repo QueueRepository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "queue repository unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid queue item id"))
			return
		}

		if err := repo.RetryFailed(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "requeued"})
	}
}
