package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kasirkita/kasirkita-backend/internal/signing"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

func testCreds() Credentials {
	return Credentials{
		PartnerID:   "10001",
		PartnerKey:  "partner-secret",
		ShopID:      "shop-1",
		AccessToken: "token-1",
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(config.MarketplaceConfig{
		ShopeeBaseURL:  server.URL,
		RequestTimeout: 2 * time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestUpdatePriceSignsRequest(t *testing.T) {
	var gotQuery map[string]string
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"request_id": "req-1", "error": ""})
	})

	client, _ := newTestClient(t, handler)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	ack, err := client.UpdatePrice(context.Background(), testCreds(), ProductRef{ItemID: 42}, decimal.NewFromInt(1500))
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if ack.RequestID != "req-1" {
		t.Fatalf("ack request id = %q", ack.RequestID)
	}

	expected := signing.Sign("10001", "partner-secret", "/product/update_price", 1700000000, "token-1", "shop-1")
	if gotQuery["sign"] != expected {
		t.Fatalf("signature mismatch: got %q want %q", gotQuery["sign"], expected)
	}
	if gotQuery["partner_id"] != "10001" || gotQuery["shop_id"] != "shop-1" || gotQuery["access_token"] != "token-1" {
		t.Fatalf("query params missing: %v", gotQuery)
	}
	if gotBody["item_id"] != float64(42) {
		t.Fatalf("item_id = %v", gotBody["item_id"])
	}
	priceList := gotBody["price_list"].([]any)
	if len(priceList) != 1 {
		t.Fatalf("price_list = %v", priceList)
	}
}

func TestUpdateStockVariantBodyShape(t *testing.T) {
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": ""})
	})
	client, _ := newTestClient(t, handler)

	modelID := int64(7)
	if _, err := client.UpdateStock(context.Background(), testCreds(), ProductRef{ItemID: 42, ModelID: &modelID}, 9); err != nil {
		t.Fatalf("update stock: %v", err)
	}
	stockList := gotBody["stock_list"].([]any)
	entry := stockList[0].(map[string]any)
	if entry["model_id"] != float64(7) {
		t.Fatalf("model_id = %v", entry["model_id"])
	}
	sellerStock := entry["seller_stock"].([]any)
	if sellerStock[0].(map[string]any)["stock"] != float64(9) {
		t.Fatalf("seller stock = %v", sellerStock)
	}
}

func TestMissingCredentialsShortCircuits(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	client, _ := newTestClient(t, handler)

	creds := testCreds()
	creds.AccessToken = ""
	_, err := client.UpdateName(context.Background(), creds, ProductRef{ItemID: 1}, "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeMissingCredentials {
		t.Fatalf("code = %q", pkgerrors.As(err).Code())
	}
	if called {
		t.Fatal("no HTTP call should be made with incomplete credentials")
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client, _ := newTestClient(t, handler)

	_, err := client.UpdateName(context.Background(), testCreds(), ProductRef{ItemID: 1}, "x")
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("5xx should classify as dependency error, got %v", err)
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatal("5xx must be retryable")
	}
}

func TestPlatformRejectionIsNotRetryable(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "product.error_price_below_minimum",
			"message": "price must be at least 100",
		})
	})
	client, _ := newTestClient(t, handler)

	_, err := client.UpdatePrice(context.Background(), testCreds(), ProductRef{ItemID: 1}, decimal.NewFromInt(1))
	typed := pkgerrors.As(err)
	if typed.Code() != pkgerrors.CodeUpstreamRejected {
		t.Fatalf("code = %q", typed.Code())
	}
	if typed.Message() != "price must be at least 100" {
		t.Fatalf("platform message must survive verbatim, got %q", typed.Message())
	}
	if pkgerrors.IsRetryable(err) {
		t.Fatal("platform rejections must not be retried")
	}
}

func TestBodyLevelErrorWith200Status(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "error_sku_duplicate", "message": "sku exists"})
	})
	client, _ := newTestClient(t, handler)

	_, err := client.UpdateSKU(context.Background(), testCreds(), ProductRef{ItemID: 1}, "A1")
	if pkgerrors.As(err).Code() != pkgerrors.CodeUpstreamRejected {
		t.Fatalf("body-level platform error should reject, got %v", err)
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(config.MarketplaceConfig{
		ShopeeBaseURL:  server.URL,
		RequestTimeout: 20 * time.Millisecond,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.UpdateName(context.Background(), testCreds(), ProductRef{ItemID: 1}, "x")
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("timeout should classify as dependency error, got %v", err)
	}
}

func TestFetchProductsPagination(t *testing.T) {
	page := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		if page == 1 {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": "",
				"response": map[string]any{
					"item":          []map[string]any{{"item_id": 1, "item_name": "first"}},
					"next_cursor":   "c2",
					"has_next_page": true,
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "",
			"response": map[string]any{
				"item":          []map[string]any{{"item_id": 2, "item_name": "second"}},
				"has_next_page": false,
			},
		})
	})
	client, _ := newTestClient(t, handler)

	first, err := client.FetchProducts(context.Background(), testCreds(), "")
	if err != nil {
		t.Fatalf("fetch page 1: %v", err)
	}
	if !first.HasMore || first.NextCursor != "c2" || len(first.Products) != 1 {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second, err := client.FetchProducts(context.Background(), testCreds(), first.NextCursor)
	if err != nil {
		t.Fatalf("fetch page 2: %v", err)
	}
	if second.HasMore || len(second.Products) != 1 || second.Products[0].ItemID != 2 {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestFetchProductsUsesConfiguredPageSize(t *testing.T) {
	var gotBody map[string]any
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": ""})
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logg := logger.New(logger.Options{ServiceName: "test"})
	client, err := NewClient(config.MarketplaceConfig{
		ShopeeBaseURL:  server.URL,
		RequestTimeout: 2 * time.Second,
		PageSize:       25,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.FetchProducts(context.Background(), testCreds(), ""); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotBody["page_size"] != float64(25) {
		t.Fatalf("page_size = %v", gotBody["page_size"])
	}
}

func TestExchangeAuthCode(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": "",
			"response": map[string]any{
				"access_token":  "at-new",
				"refresh_token": "rt-new",
				"expire_in":     3600,
			},
		})
	})
	client, _ := newTestClient(t, handler)
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	creds := Credentials{PartnerID: "10001", PartnerKey: "partner-secret", ShopID: "shop-1"}
	bundle, err := client.ExchangeAuthCode(context.Background(), creds, "auth-code")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if bundle.AccessToken != "at-new" || bundle.RefreshToken != "rt-new" {
		t.Fatalf("bundle = %+v", bundle)
	}
	if !bundle.ExpiresAt.Equal(time.Unix(1700003600, 0)) {
		t.Fatalf("expiry = %v", bundle.ExpiresAt)
	}

	if _, err := client.ExchangeAuthCode(context.Background(), creds, ""); err == nil {
		t.Fatal("empty code must be rejected")
	}
}
