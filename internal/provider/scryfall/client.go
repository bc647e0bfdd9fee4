// Package scryfall prices Magic: The Gathering cards from Scryfall's public
// card database. No API key is required.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"labelagent/internal/httpx"
	"labelagent/internal/provider"
)

const baseURL = "https://api.scryfall.com"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=scryfall_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	httpClient HTTPClient
	header     http.Header
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

func NewClient(options ...ClientOption) *Client {
	c := &Client{baseURL: baseURL, httpClient: http.DefaultClient, header: http.Header{}}
	c.header.Set("User-Agent", "pricing-agent/1.0")
	c.header.Set("Accept", "application/json")
	for _, option := range options {
		option(c)
	}
	return c
}

// Card is the subset of a Scryfall card object used for pricing.
type Card struct {
	Name   string `json:"name"`
	Set    string `json:"set_name"`
	Prices struct {
		USD     *string `json:"usd"`
		USDFoil *string `json:"usd_foil"`
	} `json:"prices"`
}

// Price returns the non-foil USD price, falling back to the foil price.
func (c Card) Price() (string, bool) {
	if c.Prices.USD != nil && *c.Prices.USD != "" {
		return *c.Prices.USD, true
	}
	if c.Prices.USDFoil != nil && *c.Prices.USDFoil != "" {
		return *c.Prices.USDFoil, true
	}
	return "", false
}

// Named resolves a card by fuzzy name.
func (c *Client) Named(ctx context.Context, name string) (Card, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cards/named?fuzzy="+url.QueryEscape(name), http.NoBody)
	if err != nil {
		return Card{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Card{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return Card{}, fmt.Errorf("no card named %q: %w", name, provider.ErrNoPrice)
	}
	if err := httpx.CheckStatus(res); err != nil {
		return Card{}, err
	}

	var card Card
	if err := json.NewDecoder(res.Body).Decode(&card); err != nil {
		return Card{}, fmt.Errorf("decoding card: %w", err)
	}
	return card, nil
}
