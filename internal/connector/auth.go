package connector

import (
	"context"
	"time"

	pkgerrors "github.com/kasirkita/kasirkita-backend/pkg/errors"
)

const (
	pathTokenExchange = "/auth/token/get"
	pathTokenRefresh  = "/auth/access_token/get"
)

// authCall signs without shop_id/access_token: the OAuth endpoints only take
// partner credentials, so the regular call() preconditions do not apply.
func (c *Client) authCall(ctx context.Context, creds Credentials, path string, body map[string]any, out any) error {
	if creds.PartnerID == "" || creds.PartnerKey == "" {
		return pkgerrors.New(pkgerrors.CodeMissingCredentials, "partner credentials required for token exchange")
	}
	full := Credentials{
		PartnerID:   creds.PartnerID,
		PartnerKey:  creds.PartnerKey,
		ShopID:      creds.ShopID,
		AccessToken: "-",
	}
	if full.ShopID == "" {
		full.ShopID = "-"
	}
	_, err := c.call(ctx, full, path, body, out)
	return err
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireIn     int64  `json:"expire_in"`
}

func (r tokenResponse) bundle(now time.Time) TokenBundle {
	expiry := now.Add(time.Duration(r.ExpireIn) * time.Second)
	return TokenBundle{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    expiry,
	}
}

// ExchangeAuthCode swaps an OAuth authorization code for tokens.
func (c *Client) ExchangeAuthCode(ctx context.Context, creds Credentials, code string) (*TokenBundle, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "authorization code is required")
	}
	body := map[string]any{
		"code":       code,
		"partner_id": creds.PartnerID,
		"shop_id":    creds.ShopID,
	}
	var resp tokenResponse
	if err := c.authCall(ctx, creds, pathTokenExchange, body, &resp); err != nil {
		return nil, err
	}
	bundle := resp.bundle(c.now())
	return &bundle, nil
}

// RefreshToken exchanges a refresh token for a fresh access token.
func (c *Client) RefreshToken(ctx context.Context, creds Credentials, refreshToken string) (*TokenBundle, error) {
	if refreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingCredentials, "refresh token is required")
	}
	body := map[string]any{
		"refresh_token": refreshToken,
		"partner_id":    creds.PartnerID,
		"shop_id":       creds.ShopID,
	}
	var resp tokenResponse
	if err := c.authCall(ctx, creds, pathTokenRefresh, body, &resp); err != nil {
		return nil, err
	}
	bundle := resp.bundle(c.now())
	return &bundle, nil
}
