package discogs

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

// Release is a search hit.
type Release struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Stats is the marketplace summary for one release.
type Stats struct {
	NumForSale int
	Lowest     decimal.NullDecimal
	Median     decimal.NullDecimal
	Blocked    bool
}

// Listing is the release chosen to represent a query.
type Listing struct {
	ReleaseID  int
	Title      string
	NumForSale int
	Median     decimal.NullDecimal
	Lowest     decimal.NullDecimal
}

// Price prefers the median and falls back to the lowest listing.
func (l Listing) Price() decimal.NullDecimal {
	if l.Median.Valid {
		return l.Median
	}
	return l.Lowest
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	res, err := c.backoff.Do(ctx, c.httpClient, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header = c.header.Clone()
		req.Header.Set("Authorization", "Discogs token="+c.token)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if err := httpx.CheckStatus(res); err != nil {
		return err
	}
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// Search finds releases matching q.
func (c *Client) Search(ctx context.Context, q string, perPage int) ([]Release, error) {
	if c.token == "" {
		return nil, provider.ErrNotConfigured
	}
	var body struct {
		Results []Release `json:"results"`
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("type", "release")
	params.Set("per_page", strconv.Itoa(perPage))
	if err := c.getJSON(ctx, "/database/search", params, &body); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return body.Results, nil
}

// MarketStats returns the marketplace summary for a release.
func (c *Client) MarketStats(ctx context.Context, releaseID int) (Stats, error) {
	if c.token == "" {
		return Stats{}, provider.ErrNotConfigured
	}
	var raw map[string]any
	if err := c.getJSON(ctx, fmt.Sprintf("/marketplace/stats/%d", releaseID), nil, &raw); err != nil {
		return Stats{}, fmt.Errorf("stats %d: %w", releaseID, err)
	}
	return parseStats(raw), nil
}

// parseStats accepts lowest_price as {"value": n} or a bare number, and an
// optional price object carrying median/median_price/lowest.
func parseStats(raw map[string]any) Stats {
	var s Stats
	if n, ok := raw["num_for_sale"].(json.Number); ok {
		if v, err := n.Int64(); err == nil {
			s.NumForSale = int(v)
		}
	}
	if b, ok := raw["blocked_from_sale"].(bool); ok {
		s.Blocked = b
	}
	switch lp := raw["lowest_price"].(type) {
	case map[string]any:
		s.Lowest = amount(lp["value"])
	default:
		s.Lowest = amount(lp)
	}
	if p, ok := raw["price"].(map[string]any); ok {
		s.Median = amount(p["median"])
		if !s.Median.Valid {
			s.Median = amount(p["median_price"])
		}
		if !s.Lowest.Valid {
			s.Lowest = amount(p["lowest"])
		}
	}
	return s
}

func amount(v any) decimal.NullDecimal {
	d, ok := money.Normalize(v)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// BestListing searches q and picks, among releases with listings and a price,
// the one with the most copies for sale. Releases whose stats cannot be read
// are skipped.
func (c *Client) BestListing(ctx context.Context, q string, perPage int) (Listing, error) {
	releases, err := c.Search(ctx, q, perPage)
	if err != nil {
		return Listing{}, err
	}
	if len(releases) == 0 {
		return Listing{}, fmt.Errorf("no results for %q: %w", q, provider.ErrNoPrice)
	}

	var best Listing
	for _, r := range releases {
		if r.ID == 0 {
			continue
		}
		stats, err := c.MarketStats(ctx, r.ID)
		if err != nil {
			if ctx.Err() != nil {
				return Listing{}, ctx.Err()
			}
			continue
		}
		if stats.Blocked || stats.NumForSale <= 0 {
			continue
		}
		if !stats.Median.Valid && !stats.Lowest.Valid {
			continue
		}
		if stats.NumForSale > best.NumForSale {
			best = Listing{
				ReleaseID:  r.ID,
				Title:      r.Title,
				NumForSale: stats.NumForSale,
				Median:     stats.Median,
				Lowest:     stats.Lowest,
			}
		}
	}
	if best.ReleaseID == 0 {
		return Listing{}, fmt.Errorf("no release with price data for %q: %w", q, provider.ErrNoPrice)
	}
	return best, nil
}
