package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kasirkita/kasirkita-backend/internal/signing"
	"github.com/kasirkita/kasirkita-backend/pkg/config"
	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
	"github.com/kasirkita/kasirkita-backend/pkg/logger"
)

var errLoggerRequired = errors.New("connector logger is required")

// Client talks to the marketplace partner API with centralized signing,
// logging, timeouts, and error normalization. It never mutates local state.
type Client struct {
	baseURL  string
	pageSize int
	http     *http.Client
	logg     *logger.Logger
	now      func() time.Time
}

// NewClient initializes the marketplace wrapper.
func NewClient(cfg config.MarketplaceConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(cfg.ShopeeBaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("marketplace base url is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		http:     &http.Client{Timeout: timeout},
		logg:     logg,
		now:      time.Now,
	}, nil
}

// envelope is the platform's standard response wrapper.
type envelope struct {
	RequestID string          `json:"request_id"`
	Error     string          `json:"error"`
	Message   string          `json:"message"`
	Response  json.RawMessage `json:"response"`
}

// call signs and POSTs a request, decodes the envelope, and normalizes
// failures into the engine error taxonomy. It returns the platform request id.
func (c *Client) call(ctx context.Context, creds Credentials, path string, body any, out any) (string, error) {
	if missing := creds.Missing(); len(missing) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeMissingCredentials, "store credentials incomplete").
			WithDetails(map[string]any{"missing": missing})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode request body")
	}

	timestamp := c.now().Unix()
	sign := signing.Sign(creds.PartnerID, creds.PartnerKey, path, timestamp, creds.AccessToken, creds.ShopID)

	query := url.Values{}
	query.Set("partner_id", creds.PartnerID)
	query.Set("timestamp", strconv.FormatInt(timestamp, 10))
	query.Set("sign", sign)
	query.Set("shop_id", creds.ShopID)
	query.Set("access_token", creds.AccessToken)
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", path, map[string]any{"shop_id": creds.ShopID})

	resp, err := c.http.Do(req)
	if err != nil {
		c.log(ctx, "error", path, map[string]any{"error": err.Error()})
		return "", classifyTransportError(err, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read response body")
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("platform returned %d for %s", resp.StatusCode, path))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode platform response")
	}

	if resp.StatusCode >= 400 || env.Error != "" {
		// Platform validation failures carry the message verbatim so the
		// operator can correct the source data.
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("platform returned %d for %s", resp.StatusCode, path)
		}
		c.log(ctx, "rejected", path, map[string]any{"platform_error": env.Error, "message": msg})
		return env.RequestID, pkgerrors.New(pkgerrors.CodeUpstreamRejected, msg).
			WithDetails(map[string]any{"platform_error": env.Error, "request_id": env.RequestID})
	}

	if out != nil && len(env.Response) > 0 {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return env.RequestID, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response payload")
		}
	}

	c.log(ctx, "response", path, map[string]any{"request_id": env.RequestID})
	return env.RequestID, nil
}

func classifyTransportError(err error, path string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("timeout calling %s", path))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("timeout calling %s", path))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("transport failure calling %s", path))
}

func (c *Client) log(ctx context.Context, stage, path string, fields map[string]any) {
	if c.logg == nil {
		return
	}
	entry := map[string]any{"stage": stage, "path": path}
	for k, v := range fields {
		entry[k] = v
	}
	c.logg.Debug(c.logg.WithFields(ctx, entry), "marketplace call")
}
