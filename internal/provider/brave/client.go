package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"labelagent/internal/httpx"
	"labelagent/internal/money"
	"labelagent/internal/provider"
)

const baseURL = "https://api.search.brave.com"

// dollarPattern matches "$12", "$ 12.5" and "$1234.99" in result snippets.
var dollarPattern = regexp.MustCompile(`\$\s?(\d{1,4}(?:\.\d{1,2})?)`)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=brave_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the Brave web search API.
type Client struct {
	// baseURL is the base URL of the API.
	baseURL string
	// apiKey is sent as X-Subscription-Token.
	apiKey string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// backoff governs retries on rate limiting and timeouts.
	backoff httpx.Backoff
}

// ClientOption is a configuration option for the Brave client.
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

// NewClient creates a new Brave search client.
func NewClient(apiKey string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		backoff:    httpx.Backoff{Attempts: 2, Base: time.Second},
	}
	c.header.Set("Accept", "application/json")
	for _, option := range options {
		option(c)
	}
	return c
}

// Result is one organic web result.
type Result struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type searchResponse struct {
	Web struct {
		Results []Result `json:"results"`
	} `json:"web"`
}

// Search returns the organic results for q.
func (c *Client) Search(ctx context.Context, q string, count int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("missing Brave API key: %w", provider.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(count))

	u := c.baseURL + "/res/v1/web/search?" + params.Encode()
	res, err := c.backoff.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header = c.header.Clone()
		req.Header.Set("X-Subscription-Token", c.apiKey)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return nil, err
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return body.Web.Results, nil
}

// ExtractPrices finds dollar amounts in the titles and descriptions of results.
func ExtractPrices(results []Result) []decimal.Decimal {
	var out []decimal.Decimal
	for _, r := range results {
		for _, m := range dollarPattern.FindAllStringSubmatch(r.Title+" "+r.Description, -1) {
			if d, ok := money.Normalize(m[1]); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// MedianPrice searches q and returns the median of every dollar amount found.
func (c *Client) MedianPrice(ctx context.Context, q string, count int) (decimal.Decimal, int, error) {
	results, err := c.Search(ctx, q, count)
	if err != nil {
		return decimal.Zero, 0, err
	}
	prices := ExtractPrices(results)
	if len(prices) == 0 {
		return decimal.Zero, 0, fmt.Errorf("no dollar amounts in %d results: %w", len(results), provider.ErrNoPrice)
	}
	return money.Round2(money.Median(prices)), len(prices), nil
}
