package discogs

import (
	"net/http"
	"time"

	"labelagent/internal/httpx"
)

const baseURL = "https://api.discogs.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=discogs_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Discogs database and marketplace API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// token is the personal access token.
	token string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// backoff governs retries on rate limiting and timeouts.
	backoff httpx.Backoff
}

// ClientOption is a configuration option for the Discogs client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
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

// WithBackoff replaces the retry policy.
func WithBackoff(b httpx.Backoff) ClientOption {
	return func(c *Client) {
		c.backoff = b
	}
}

// NewClient creates a new Discogs client. An empty token yields a client whose
// lookups fail with provider.ErrNotConfigured.
func NewClient(token string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		backoff:    httpx.Backoff{Attempts: 2, Base: time.Second},
	}
	c.header.Set("User-Agent", "pricing-agent/1.0")
	c.header.Set("Accept", "application/json")
	for _, option := range options {
		option(c)
	}
	return c
}
