package duckduckgo

import (
	"context"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// Name is reported as a web search source; the aggregator weights it as WebSearch.
const Name = "DuckDuckGo"

// querySuffix narrows results to marketplaces that quote prices.
const querySuffix = "site:ebay.com OR site:discogs.com price"

type Config struct {
	Name    string
	Timeout time.Duration
}

type Adapter struct {
	cfg    Config
	client *Client
	log    *logger.Entry
}

func NewAdapter(cfg Config, client *Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	return &Adapter{cfg: cfg, client: client, log: logger.GetLogger().WithComponent("duckduckgo")}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	return provider.Guard(ctx, a.cfg.Name, a.log, q, func(ctx context.Context) (provider.Observation, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		mean, n, err := a.client.MeanPrice(ctx, q.Text()+" "+querySuffix)
		if err != nil {
			return provider.Observation{}, err
		}
		return provider.Observation{Amount: mean, Count: n}, nil
	})
}
