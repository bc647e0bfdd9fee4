// Package sandpiper creates inventory items in Sandpiper and mints their
// shelf barcodes.
package sandpiper

import (
	"context"
	"errors"
	"net/http"
	"time"

	"labelagent/internal/httpx"
	"labelagent/internal/tokencache"
)

const (
	baseURL = "https://app.sandpiperhq.com"
	// NoBarcode is returned when Sandpiper produced no usable barcode line.
	NoBarcode = "#"
	tokenTTL  = time.Hour
)

// ErrNotConfigured is returned when credentials or the account are missing.
var ErrNotConfigured = errors.New("sandpiper not configured")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=sandpiper_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Account identifies the login and the booth items are created in.
type Account struct {
	Username  string
	Password  string
	AccountID string
	Booth     string
}

type Client struct {
	baseURL    string
	account    Account
	httpClient HTTPClient
	tokens     *tokencache.Cache
	timeout    time.Duration
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithRetryDelay sets the wait before re-reading empty barcode text.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithSleep replaces the context-aware sleep, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// WithClock replaces time.Now for the acquired timestamp.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(account Account, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		account:    account,
		httpClient: http.DefaultClient,
		tokens:     &tokencache.Cache{},
		timeout:    20 * time.Second,
		retryDelay: 5 * time.Second,
		sleep:      httpx.SleepContext,
		now:        time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}
