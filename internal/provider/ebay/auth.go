package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"labelagent/internal/httpx"
	"labelagent/internal/provider"
)

const (
	apiScope = "https://api.ebay.com/oauth/api_scope"
	// defaultTokenLifetime applies when the response omits expires_in.
	defaultTokenLifetime = 7200 * time.Second
	// tokenSafetyMargin is subtracted from the issuer's lifetime.
	tokenSafetyMargin = 60 * time.Second
	tokenTimeout      = 10 * time.Second
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AccessToken returns a cached token or exchanges the refresh token for a new one.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if !c.creds.complete() {
		return "", fmt.Errorf("missing eBay credentials: %w", provider.ErrNotConfigured)
	}
	return c.tokens.Get(ctx, c.refreshToken)
}

func (c *Client) refreshToken(ctx context.Context) (string, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, tokenTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.creds.RefreshToken)
	form.Set("scope", apiScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identity/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.creds.AppID + ":" + c.creds.CertID))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basic)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request: %w", err)
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}

	var body tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("decoding token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("token response without access_token")
	}
	lifetime := defaultTokenLifetime
	if body.ExpiresIn > 0 {
		lifetime = time.Duration(body.ExpiresIn) * time.Second
	}
	ttl := lifetime - tokenSafetyMargin
	if ttl < lifetime/2 {
		ttl = lifetime / 2
	}
	return body.AccessToken, ttl, nil
}
