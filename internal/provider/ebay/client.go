package ebay

import (
	"net/http"
	"time"

	"labelagent/internal/httpx"
	"labelagent/internal/tokencache"
)

const (
	productionBaseURL = "https://api.ebay.com"
	sandboxBaseURL    = "https://api.sandbox.ebay.com"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=ebay_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials are the application keys and the user refresh token.
type Credentials struct {
	AppID        string
	CertID       string
	RefreshToken string
}

func (c Credentials) complete() bool {
	return c.AppID != "" && c.CertID != "" && c.RefreshToken != ""
}

// Client is a client for the eBay OAuth and Browse APIs.
type Client struct {
	// baseURL is the API host, production or sandbox.
	baseURL string
	// creds authenticate the refresh-token grant.
	creds Credentials
	// marketplace is sent as X-EBAY-C-MARKETPLACE-ID.
	marketplace string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// tokens caches the application access token.
	tokens *tokencache.Cache
	// backoff governs retries on rate limiting and timeouts.
	backoff httpx.Backoff
}

// ClientOption is a configuration option for the eBay client.
type ClientOption func(*Client)

// WithBaseURL sets the API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithSandbox switches to the sandbox host.
func WithSandbox(sandbox bool) ClientOption {
	return func(c *Client) {
		if sandbox {
			c.baseURL = sandboxBaseURL
		}
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithMarketplace overrides the EBAY_US marketplace.
func WithMarketplace(id string) ClientOption {
	return func(c *Client) {
		c.marketplace = id
	}
}

// WithTokenCache shares a token cache, mostly for tests.
func WithTokenCache(tc *tokencache.Cache) ClientOption {
	return func(c *Client) {
		c.tokens = tc
	}
}

// WithBackoff replaces the retry policy of Browse calls.
func WithBackoff(b httpx.Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

// NewClient creates a new eBay client.
func NewClient(creds Credentials, options ...ClientOption) *Client {
	c := &Client{
		baseURL:     productionBaseURL,
		creds:       creds,
		marketplace: "EBAY_US",
		httpClient:  http.DefaultClient,
		header:      http.Header{},
		tokens:      &tokencache.Cache{},
		backoff:     httpx.Backoff{Attempts: 2, Base: time.Second},
	}
	c.header.Set("User-Agent", "pricing-agent/1.0")
	for _, option := range options {
		option(c)
	}
	return c
}
