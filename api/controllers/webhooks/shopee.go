package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/kasirkita/kasirkita-backend/api/responses"
	"github.com/kasirkita/kasirkita-backend/internal/webhooks/shopee"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// ShopeeIngestor verifies and ingests one raw push body.
type ShopeeIngestor interface {
	Ingest(ctx context.Context, raw []byte, signature string) (*shopee.Result, error)
}

// ShopeeWebhook receives marketplace push notifications. The signature
// travels in the Authorization header, computed over the raw body.
func ShopeeWebhook(svc ShopeeIngestor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook ingestor unavailable"))
			return
		}

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get("Authorization")
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature missing"))
			return
		}

		result, err := svc.Ingest(ctx, raw, signature)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"event_id":  result.EventID,
			"status":    result.Status,
			"duplicate": result.Duplicate,
		})
	}
}
