package ebay

import (
	"context"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// Name is the source name eBay samples are reported under.
const Name = "eBay"

type Config struct {
	Name    string        // display name, default: eBay
	Limit   int           // listings per search, default 20
	Timeout time.Duration // bound on the whole lookup, 0 = none
}

// Adapter exposes eBay active listings as a provider.Provider.
type Adapter struct {
	cfg    Config
	client *Client
	log    *logger.Entry
}

func NewAdapter(cfg Config, client *Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	return &Adapter{cfg: cfg, client: client, log: logger.GetLogger().WithComponent("ebay")}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	return provider.Guard(ctx, a.cfg.Name, a.log, q, func(ctx context.Context) (provider.Observation, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		s, err := a.client.ActivePrice(ctx, q.Text(), a.cfg.Limit)
		if err != nil {
			return provider.Observation{}, err
		}
		a.log.WithFields(logger.Fields{"median": s.Median.StringFixed(2), "average": s.Average.StringFixed(2), "listings": s.Count}).Debug("listing summary")
		return provider.Observation{Amount: s.Median, Count: s.Count}, nil
	})
}
