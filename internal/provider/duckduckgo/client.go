// Package duckduckgo scrapes the DuckDuckGo HTML endpoint for dollar amounts.
// It needs no API key and serves as the alternative web fallback.
package duckduckgo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"

	"labelagent/internal/httpx"
	"labelagent/internal/money"
	"labelagent/internal/provider"
)

const baseURL = "https://duckduckgo.com"

var (
	dollarPattern = regexp.MustCompile(`\$\s?(\d{1,4}(?:[.,]\d{2})?)`)
	minPrice      = decimal.NewFromInt(2)
	maxPrice      = decimal.NewFromInt(1000)
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=duckduckgo_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	backoff    httpx.Backoff
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBackoff replaces the retry policy.
func WithBackoff(b httpx.Backoff) ClientOption {
	return func(c *Client) { c.backoff = b }
}

func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		backoff:    httpx.Backoff{Attempts: 2, Base: time.Second},
	}
	c.header.Set("User-Agent", "Mozilla/5.0 (compatible; label-agent/1.0)")
	for _, option := range options {
		option(c)
	}
	return c
}

// Page fetches the result page for q and returns its visible text.
func (c *Client) Page(ctx context.Context, q string) (string, error) {
	u := c.baseURL + "/html/?q=" + url.QueryEscape(q)
	res, err := c.backoff.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header = c.header.Clone()
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return "", err
	}
	return VisibleText(io.LimitReader(res.Body, 2<<20))
}

// VisibleText concatenates the text nodes of an HTML document, skipping
// script and style elements.
func VisibleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return b.String(), nil
}

// ExtractPrices returns the plausible dollar amounts in text. A comma before
// exactly two digits is read as a decimal separator.
func ExtractPrices(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, m := range dollarPattern.FindAllStringSubmatch(text, -1) {
		d, err := decimal.NewFromString(strings.Replace(m[1], ",", ".", 1))
		if err != nil || d.LessThan(minPrice) || d.GreaterThan(maxPrice) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// MeanPrice searches q and averages the plausible amounts on the page.
func (c *Client) MeanPrice(ctx context.Context, q string) (decimal.Decimal, int, error) {
	text, err := c.Page(ctx, q)
	if err != nil {
		return decimal.Zero, 0, err
	}
	prices := ExtractPrices(text)
	if len(prices) == 0 {
		return decimal.Zero, 0, fmt.Errorf("no plausible amounts for %q: %w", q, provider.ErrNoPrice)
	}
	return money.Round2(money.Mean(prices)), len(prices), nil
}
