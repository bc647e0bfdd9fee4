package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"labelagent/internal/httpx"
	"labelagent/internal/money"
	"labelagent/internal/provider"
)

// Listing is one active fixed-price listing.
type Listing struct {
	Title     string
	Price     decimal.NullDecimal
	Currency  string
	Condition string
	URL       string
	Seller    string
}

// Summary reduces the listings of a search to one price.
type Summary struct {
	Median     decimal.Decimal
	Average    decimal.Decimal
	Count      int
	TitleMatch string
}

type searchResponse struct {
	ItemSummaries []struct {
		Title string `json:"title"`
		Price struct {
			Value    json.Number `json:"value"`
			Currency string      `json:"currency"`
		} `json:"price"`
		Condition  string `json:"condition"`
		ItemWebURL string `json:"itemWebUrl"`
		Seller     *struct {
			Username string `json:"username"`
		} `json:"seller"`
	} `json:"itemSummaries"`
}

// SearchListings returns active fixed-price listings for q.
func (c *Client) SearchListings(ctx context.Context, q string, limit int) ([]Listing, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("filter", "buyingOptions:{FIXED_PRICE}")

	u := c.baseURL + "/buy/browse/v1/item_summary/search?" + params.Encode()
	res, err := c.backoff.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header = c.header.Clone()
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplace)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		if res.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		return nil, err
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	out := make([]Listing, 0, len(body.ItemSummaries))
	for _, it := range body.ItemSummaries {
		d, ok := money.Normalize(it.Price.Value)
		l := Listing{
			Title:     it.Title,
			Price:     decimal.NullDecimal{Decimal: d, Valid: ok},
			Currency:  it.Price.Currency,
			Condition: it.Condition,
			URL:       it.ItemWebURL,
		}
		if it.Seller != nil {
			l.Seller = it.Seller.Username
		}
		out = append(out, l)
	}
	return out, nil
}

// ActivePrice summarises the positive listing prices for q.
func (c *Client) ActivePrice(ctx context.Context, q string, limit int) (Summary, error) {
	listings, err := c.SearchListings(ctx, q, limit)
	if err != nil {
		return Summary{}, err
	}
	prices := make([]decimal.Decimal, 0, len(listings))
	for _, l := range listings {
		if l.Price.Valid {
			prices = append(prices, l.Price.Decimal)
		}
	}
	if len(prices) == 0 {
		return Summary{}, fmt.Errorf("no priced listings for %q: %w", q, provider.ErrNoPrice)
	}
	return Summary{
		Median:     money.Round2(money.Median(prices)),
		Average:    money.Round2(money.Mean(prices)),
		Count:      len(prices),
		TitleMatch: listings[0].Title,
	}, nil
}
