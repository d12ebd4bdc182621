package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasirkita/kasirkita-backend/api/responses"
	"github.com/kasirkita/kasirkita-backend/api/validators"
	"github.com/kasirkita/kasirkita-backend/internal/connector"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

// MarketplaceUpdater is the slice of the connector the update endpoint uses.
type MarketplaceUpdater interface {
	UpdatePrice(ctx context.Context, creds connector.Credentials, ref connector.ProductRef, price decimal.Decimal) (*connector.Ack, error)
	UpdateStock(ctx context.Context, creds connector.Credentials, ref connector.ProductRef, stock int) (*connector.Ack, error)
	UpdateSKU(ctx context.Context, creds connector.Credentials, ref connector.ProductRef, sku string) (*connector.Ack, error)
	UpdateName(ctx context.Context, creds connector.Credentials, ref connector.ProductRef, name string) (*connector.Ack, error)
}

type marketplaceUpdateRequest struct {
	PartnerID   string           `json:"partner_id" validate:"required"`
	PartnerKey  string           `json:"partner_key" validate:"required"`
	ShopID      string           `json:"shop_id" validate:"required"`
	AccessToken string           `json:"access_token" validate:"required"`
	ItemID      int64            `json:"item_id" validate:"required,gt=0"`
	ModelID     *int64           `json:"model_id,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	Action      string           `json:"action" validate:"required,oneof=update_price update_stock update_sku update_name update_all"`
}

func (r marketplaceUpdateRequest) credentials() connector.Credentials {
	return connector.Credentials{
		PartnerID:   r.PartnerID,
		PartnerKey:  r.PartnerKey,
		ShopID:      r.ShopID,
		AccessToken: r.AccessToken,
	}
}

func (r marketplaceUpdateRequest) ref() connector.ProductRef {
	return connector.ProductRef{ItemID: r.ItemID, ModelID: r.ModelID}
}

type updateResult struct {
	Field     string `json:"field"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// updateResponse is the POS shell's boundary contract, not the standard
// API envelope.
type updateResponse struct {
	Success   bool           `json:"success"`
	Results   []updateResult `json:"results"`
	Error     string         `json:"error,omitempty"`
	Details   any            `json:"details,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

func writeUpdateFailure(w http.ResponseWriter, results []updateResult, msg string, details any) {
	responses.WriteJSON(w, http.StatusBadRequest, updateResponse{
		Success:   false,
		Results:   results,
		Error:     msg,
		Details:   details,
		Timestamp: time.Now().Unix(),
	})
}

// MarketplaceUpdate pushes one or more product fields straight to the
// marketplace with the credentials carried in the request body.
func MarketplaceUpdate(client MarketplaceUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "marketplace client unavailable"))
			return
		}

		var payload marketplaceUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			typed := pkgerrors.As(err)
			writeUpdateFailure(w, nil, typed.Message(), typed.Details())
			return
		}

		steps, err := payload.steps()
		if err != nil {
			typed := pkgerrors.As(err)
			writeUpdateFailure(w, nil, typed.Message(), typed.Details())
			return
		}

		creds := payload.credentials()
		ref := payload.ref()

		results := make([]updateResult, 0, len(steps))
		failures := map[string]string{}
		for _, step := range steps {
			res := updateResult{Field: step.field}
			ack, err := step.run(ctx, client, creds, ref)
			if err != nil {
				msg := err.Error()
				if typed := pkgerrors.As(err); typed != nil {
					msg = typed.Message()
				}
				res.Error = msg
				failures[step.field] = msg
				if logg != nil {
					logg.Error(logg.WithField(ctx, "field", step.field), "marketplace.update.failed", err)
				}
			} else if ack != nil {
				res.RequestID = ack.RequestID
			}
			results = append(results, res)
		}

		if len(failures) > 0 {
			first := results[0].Error
			for _, res := range results {
				if res.Error != "" {
					first = res.Error
					break
				}
			}
			writeUpdateFailure(w, results, first, failures)
			return
		}

		responses.WriteJSON(w, http.StatusOK, updateResponse{
			Success:   true,
			Results:   results,
			Timestamp: time.Now().Unix(),
		})
	}
}

type updateStep struct {
	field string
	run   func(ctx context.Context, client MarketplaceUpdater, creds connector.Credentials, ref connector.ProductRef) (*connector.Ack, error)
}

// steps maps the requested action onto the concrete connector calls.
// update_all runs every field present in the payload.
func (r marketplaceUpdateRequest) steps() ([]updateStep, error) {
	var steps []updateStep

	wantPrice := r.Action == "update_price" || (r.Action == "update_all" && r.Price != nil)
	wantStock := r.Action == "update_stock" || (r.Action == "update_all" && r.Stock != nil)
	wantSKU := r.Action == "update_sku" || (r.Action == "update_all" && r.SKU != nil)
	wantName := r.Action == "update_name" || (r.Action == "update_all" && r.Name != nil)

	if wantPrice {
		if r.Price == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price is required for update_price")
		}
		price := *r.Price
		steps = append(steps, updateStep{field: connector.FieldPrice, run: func(ctx context.Context, c MarketplaceUpdater, creds connector.Credentials, ref connector.ProductRef) (*connector.Ack, error) {
			return c.UpdatePrice(ctx, creds, ref, price)
		}})
	}
	if wantStock {
		if r.Stock == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock is required for update_stock")
		}
		stock := *r.Stock
		steps = append(steps, updateStep{field: connector.FieldStock, run: func(ctx context.Context, c MarketplaceUpdater, creds connector.Credentials, ref connector.ProductRef) (*connector.Ack, error) {
			return c.UpdateStock(ctx, creds, ref, stock)
		}})
	}
	if wantSKU {
		if r.SKU == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required for update_sku")
		}
		sku := *r.SKU
		steps = append(steps, updateStep{field: connector.FieldSKU, run: func(ctx context.Context, c MarketplaceUpdater, creds connector.Credentials, ref connector.ProductRef) (*connector.Ack, error) {
			return c.UpdateSKU(ctx, creds, ref, sku)
		}})
	}
	if wantName {
		if r.Name == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required for update_name")
		}
		name := *r.Name
		steps = append(steps, updateStep{field: connector.FieldName, run: func(ctx context.Context, c MarketplaceUpdater, creds connector.Credentials, ref connector.ProductRef) (*connector.Ack, error) {
			return c.UpdateName(ctx, creds, ref, name)
		}})
	}

	if len(steps) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no updatable fields in request")
	}
	return steps, nil
}
