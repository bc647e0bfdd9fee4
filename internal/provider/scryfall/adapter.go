package scryfall

import (
	"context"
	"fmt"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

const Name = "Scryfall"

type Config struct {
	Name    string
	Timeout time.Duration
}

// Adapter is an authoritative card source. Only the title is sent; artist
// text confuses the fuzzy matcher.
type Adapter struct {
	cfg    Config
	client *Client
	log    *logger.Entry
}

func NewAdapter(cfg Config, client *Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	return &Adapter{cfg: cfg, client: client, log: logger.GetLogger().WithComponent("scryfall")}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	return provider.Guard(ctx, a.cfg.Name, a.log, q, func(ctx context.Context) (provider.Observation, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		card, err := a.client.Named(ctx, q.Title)
		if err != nil {
			return provider.Observation{}, err
		}
		price, ok := card.Price()
		if !ok {
			return provider.Observation{}, fmt.Errorf("%s has no USD price: %w", card.Name, provider.ErrNoPrice)
		}
		return provider.Observation{Amount: price, Count: 1}, nil
	})
}
