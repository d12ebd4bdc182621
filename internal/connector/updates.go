package connector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

const (
	pathUpdatePrice = "/product/update_price"
	pathUpdateStock = "/product/update_stock"
	pathUpdateSKU   = "/product/update_sku"
	pathUpdateItem  = "/product/update_item"
)

// UpdatePrice pushes a new price for an item or one of its variants.
func (c *Client) UpdatePrice(ctx context.Context, creds Credentials, ref ProductRef, price decimal.Decimal) (*Ack, error) {
	entry := map[string]any{"original_price": price.InexactFloat64()}
	if ref.ModelID != nil {
		entry["model_id"] = *ref.ModelID
	}
	body := map[string]any{
		"item_id":    ref.ItemID,
		"price_list": []map[string]any{entry},
	}
	return c.ack(ctx, creds, pathUpdatePrice, body)
}

// UpdateStock pushes the advertised stock for an item or one of its variants.
func (c *Client) UpdateStock(ctx context.Context, creds Credentials, ref ProductRef, stock int) (*Ack, error) {
	entry := map[string]any{
		"seller_stock": []map[string]any{{"stock": stock}},
	}
	if ref.ModelID != nil {
		entry["model_id"] = *ref.ModelID
	}
	body := map[string]any{
		"item_id":    ref.ItemID,
		"stock_list": []map[string]any{entry},
	}
	return c.ack(ctx, creds, pathUpdateStock, body)
}

// UpdateSKU pushes a new SKU. Variant rows carry model_sku, parent items item_sku.
func (c *Client) UpdateSKU(ctx context.Context, creds Credentials, ref ProductRef, sku string) (*Ack, error) {
	entry := map[string]any{}
	if ref.ModelID != nil {
		entry["model_id"] = *ref.ModelID
		entry["model_sku"] = sku
	} else {
		entry["item_sku"] = sku
	}
	body := map[string]any{
		"item_id":  ref.ItemID,
		"sku_list": []map[string]any{entry},
	}
	return c.ack(ctx, creds, pathUpdateSKU, body)
}

// UpdateName pushes a new item name.
func (c *Client) UpdateName(ctx context.Context, creds Credentials, ref ProductRef, name string) (*Ack, error) {
	body := map[string]any{
		"item_id":   ref.ItemID,
		"item_name": name,
	}
	return c.ack(ctx, creds, pathUpdateItem, body)
}

// UpdateField dispatches a single-field update from its wire name. The value
// arrives as a string (the glue endpoint is schemaless) and is coerced here.
func (c *Client) UpdateField(ctx context.Context, creds Credentials, ref ProductRef, field, value string) (*Ack, error) {
	switch field {
	case FieldPrice:
		price, err := decimal.NewFromString(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid price %q", value))
		}
		return c.UpdatePrice(ctx, creds, ref, price)
	case FieldStock:
		stock, err := strconv.Atoi(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid stock %q", value))
		}
		return c.UpdateStock(ctx, creds, ref, stock)
	case FieldSKU:
		return c.UpdateSKU(ctx, creds, ref, value)
	case FieldName:
		return c.UpdateName(ctx, creds, ref, value)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown update field %q", field))
	}
}

func (c *Client) ack(ctx context.Context, creds Credentials, path string, body any) (*Ack, error) {
	requestID, err := c.call(ctx, creds, path, body, nil)
	if err != nil {
		return nil, err
	}
	return &Ack{RequestID: requestID}, nil
}
