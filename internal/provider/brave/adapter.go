package brave

import (
	"context"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// Name is the source name web search samples are reported under.
const Name = "WebSearch"

type Config struct {
	Name    string        // display name, default: WebSearch
	Count   int           // results per query, default 10
	Suffix  string        // appended to the query text, e.g. "price"
	Timeout time.Duration // bound on the whole lookup, 0 = none
}

// Adapter exposes Brave search snippets as a provider.Provider.
type Adapter struct {
	cfg    Config
	client *Client
	log    *logger.Entry
}

func NewAdapter(cfg Config, client *Client) *Adapter {
	if cfg.Name == "" {
		cfg.Name = Name
	}
	if cfg.Count <= 0 {
		cfg.Count = 10
	}
	return &Adapter{cfg: cfg, client: client, log: logger.GetLogger().WithComponent("brave")}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	return provider.Guard(ctx, a.cfg.Name, a.log, q, func(ctx context.Context) (provider.Observation, error) {
		if a.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
			defer cancel()
		}
		text := q.Text()
		if a.cfg.Suffix != "" {
			text += " " + a.cfg.Suffix
		}
		median, n, err := a.client.MedianPrice(ctx, text, a.cfg.Count)
		if err != nil {
			return provider.Observation{}, err
		}
		return provider.Observation{Amount: median, Count: n}, nil
	})
}
