// Package sheets appends catalog rows through a Google Apps Script webhook.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"labelagent/internal/httpx"
	"labelagent/internal/item"
)

// ErrNotConfigured is returned when no webhook URL is set.
var ErrNotConfigured = errors.New("sheets webhook not configured")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=sheets_test -destination=mock_http_client_test.go -source=sheets.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts rows to the webhook.
type Client struct {
	webhookURL string
	httpClient HTTPClient
	timeout    time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func NewClient(webhookURL string, options ...ClientOption) *Client {
	c := &Client{webhookURL: webhookURL, httpClient: http.DefaultClient, timeout: 20 * time.Second}
	for _, option := range options {
		option(c)
	}
	return c
}

type payload struct {
	Type   item.Category `json:"type"`
	Fields item.Fields   `json:"fields"`
	Row    []string      `json:"row"`
}

// AppendRow sends fields for category c. The webhook's JSON reply is returned;
// a non-JSON reply is wrapped as {"raw_text": body}.
func (c *Client) AppendRow(ctx context.Context, cat item.Category, fields item.Fields) (map[string]any, error) {
	if c.webhookURL == "" {
		return nil, ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(payload{Type: cat, Fields: fields, Row: fields.Row(cat)})
	if err != nil {
		return nil, fmt.Errorf("encoding row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting row: %w", err)
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return nil, fmt.Errorf("posting row: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{"raw_text": string(raw)}, nil
	}
	return out, nil
}
