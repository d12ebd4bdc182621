package connector

import (
	"context"
	"time"
)

const (
	pathProductList = "/product/get_item_list"
	pathOrderList   = "/order/get_order_list"
	defaultPageSize = 50
)

// FetchProducts returns one page of the shop's product catalog. Callers loop
// on Page.HasMore with the returned cursor until exhausted.
func (c *Client) FetchProducts(ctx context.Context, creds Credentials, cursor string) (*Page, error) {
	body := map[string]any{
		"page_size": c.pageSize,
	}
	if cursor != "" {
		body["cursor"] = cursor
	}

	var resp struct {
		Items      []RawProduct `json:"item"`
		NextCursor string       `json:"next_cursor"`
		HasMore    bool         `json:"has_next_page"`
	}
	if _, err := c.call(ctx, creds, pathProductList, body, &resp); err != nil {
		return nil, err
	}
	return &Page{
		Products:   resp.Items,
		NextCursor: resp.NextCursor,
		HasMore:    resp.HasMore,
	}, nil
}

// FetchOrders returns orders created inside the given time range.
func (c *Client) FetchOrders(ctx context.Context, creds Credentials, from, to time.Time) ([]RawOrder, error) {
	body := map[string]any{
		"time_range_field": "create_time",
		"time_from":        from.Unix(),
		"time_to":          to.Unix(),
		"page_size":        c.pageSize,
	}

	var resp struct {
		Orders []RawOrder `json:"order_list"`
	}
	if _, err := c.call(ctx, creds, pathOrderList, body, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}
