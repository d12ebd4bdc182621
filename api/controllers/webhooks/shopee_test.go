package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kasirkita/kasirkita-backend/internal/webhooks/shopee"
	"github.com/kasirkita/kasirkita-backend/pkg/enums"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

type stubIngestor struct {
	result *shopee.Result
	err    error
	raw    []byte
	sig    string
}

func (s *stubIngestor) Ingest(_ context.Context, raw []byte, signature string) (*shopee.Result, error) {
	s.raw = raw
	s.sig = signature
	return s.result, s.err
}

func pushRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopee", bytes.NewReader([]byte(body)))
	if signature != "" {
		req.Header.Set("Authorization", signature)
	}
	return req
}

func TestShopeeWebhookAccepted(t *testing.T) {
	ingestor := &stubIngestor{result: &shopee.Result{EventID: "msg-1", Status: enums.WebhookStatusSuccess}}

	rec := httptest.NewRecorder()
	ShopeeWebhook(ingestor, nil).ServeHTTP(rec, pushRequest(`{"code":9}`, "sig"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if string(ingestor.raw) != `{"code":9}` || ingestor.sig != "sig" {
		t.Fatalf("ingestor got raw=%q sig=%q", ingestor.raw, ingestor.sig)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["event_id"] != "msg-1" {
		t.Fatalf("unexpected body %v", envelope.Data)
	}
}

func TestShopeeWebhookMissingSignature(t *testing.T) {
	rec := httptest.NewRecorder()
	ShopeeWebhook(&stubIngestor{}, nil).ServeHTTP(rec, pushRequest(`{}`, ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestShopeeWebhookBadSignature(t *testing.T) {
	ingestor := &stubIngestor{err: pkgerrors.New(pkgerrors.CodeSignatureInvalid, "signature mismatch")}

	rec := httptest.NewRecorder()
	ShopeeWebhook(ingestor, nil).ServeHTTP(rec, pushRequest(`{"code":9}`, "bad"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
