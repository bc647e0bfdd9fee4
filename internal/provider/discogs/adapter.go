package discogs

import (
	"context"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// Name is the source name Discogs samples are reported under.
const Name = "Discogs"

type Config struct {
	Name    string        // display name, default: Discogs
	PerPage int           // search results to inspect, default 10
	Timeout time.Duration // bound on the whole lookup, 0 = none
}

// Adapter exposes the Discogs marketplace as a provider.Provider.
type Adapter struct {
	cfg    Config
	client *Client
	log    *logger.Entry
}

func NewAdapter(cfg Config, client *Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 10
	}
	return &Adapter{cfg: cfg, client: client, log: logger.GetLogger().WithComponent("discogs")}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	return provider.Guard(ctx, a.cfg.Name, a.log, q, func(ctx context.Context) (provider.Observation, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		l, err := a.client.BestListing(ctx, q.Text(), a.cfg.PerPage)
		if err != nil {
			return provider.Observation{}, err
		}
		a.log.WithFields(logger.Fields{"release": l.ReleaseID, "release_title": l.Title, "for_sale": l.NumForSale}).Debug("selected release")
		return provider.Observation{Amount: l.Price(), Count: l.NumForSale}, nil
	})
}
