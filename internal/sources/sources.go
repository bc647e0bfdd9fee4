// Package sources builds the configured price sources, each wrapped in its
// rate limiter and cache, and assembles them into an aggregator config.
package sources

import (
	"strings"

	"github.com/shopspring/decimal"

	"labelagent/internal/aggregate"
	"labelagent/internal/config"
	"labelagent/internal/httpx"
	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/provider"
	"labelagent/internal/provider/brave"
	"labelagent/internal/provider/cache"
	"labelagent/internal/provider/discogs"
	"labelagent/internal/provider/duckduckgo"
	"labelagent/internal/provider/ebay"
	"labelagent/internal/provider/ratelimit"
	"labelagent/internal/provider/scryfall"
)

// wrap applies the limiter first and the cache outside it, so cache hits
// never consume rate budget.
func wrap(p provider.Provider, l config.Limits) provider.Provider {
	p = ratelimit.Wrap(p, l.MaxRequestsPerMinute, l.Burst, l.MinInterval())
	if l.CacheTTLSeconds > 0 {
		p = &cache.Provider{P: p, TTL: l.CacheTTL(), MaxItems: l.CacheMaxItems}
	}
	return p
}

// Build returns the aggregator wiring for cfg. Sources missing credentials are
// skipped with a warning. httpClient is shared by every source.
func Build(cfg config.Config, httpClient *httpx.Client, log *logger.Entry) aggregate.Config {
	doer := httpClient.Doer()
	out := aggregate.Config{
		Authoritative: map[item.Category]provider.Provider{},
		Weights:       make(map[string]decimal.Decimal, len(cfg.Aggregator.Weights)),
	}
	for name, w := range cfg.Aggregator.Weights {
		out.Weights[name] = decimal.NewFromFloat(w)
	}

	// one instance per source so categories share its limiter and cache
	built := map[string]provider.Provider{}
	authoritative := func(name string) provider.Provider {
		if p, ok := built[name]; ok {
			return p
		}
		var p provider.Provider
		switch name {
		case config.SourceDiscogs:
			if !cfg.Discogs.Enabled {
				log.Warn("discogs disabled; authoritative lookups skipped")
			} else if cfg.Discogs.Token == "" {
				log.Warn("discogs enabled but DISCOGS_TOKEN not set; skipping")
			} else {
				client := discogs.NewClient(cfg.Discogs.Token, discogs.WithHTTPClient(doer))
				p = wrap(discogs.NewAdapter(discogs.Config{PerPage: cfg.Discogs.PerPage, Timeout: cfg.Discogs.Timeout()}, client), cfg.Discogs.Limits)
			}
		case config.SourceScryfall:
			client := scryfall.NewClient(scryfall.WithHTTPClient(doer))
			p = wrap(scryfall.NewAdapter(scryfall.Config{Timeout: cfg.Scryfall.Timeout()}, client), cfg.Scryfall.Limits)
		}
		built[name] = p
		return p
	}
	for category, name := range cfg.AuthoritativeSources() {
		if p := authoritative(name); p != nil {
			out.Authoritative[category] = p
		}
	}

	if cfg.EBay.Enabled {
		creds := ebay.Credentials{AppID: cfg.EBay.AppID, CertID: cfg.EBay.CertID, RefreshToken: cfg.EBay.RefreshToken}
		if creds.AppID == "" || creds.CertID == "" || creds.RefreshToken == "" {
			log.Warn("ebay enabled but EBAY_APP_ID, EBAY_CERT_ID or EBAY_REFRESH_TOKEN not set; skipping")
		} else {
			client := ebay.NewClient(creds, ebay.WithHTTPClient(doer), ebay.WithSandbox(cfg.EBay.Sandbox()))
			out.Fallbacks = append(out.Fallbacks, wrap(ebay.NewAdapter(ebay.Config{Limit: cfg.EBay.Limit, Timeout: cfg.EBay.Timeout()}, client), cfg.EBay.Limits))
		}
	}

	switch strings.ToLower(cfg.Aggregator.Web) {
	case config.SourceBrave:
		if cfg.Brave.APIKey == "" {
			log.Warn("web search set to brave but BRAVE_API_KEY not set; skipping")
			break
		}
		client := brave.NewClient(cfg.Brave.APIKey, brave.WithHTTPClient(doer))
		adapter := brave.NewAdapter(brave.Config{Count: cfg.Brave.Count, Suffix: cfg.Brave.Suffix, Timeout: cfg.Brave.Timeout()}, client)
		out.Fallbacks = append(out.Fallbacks, wrap(adapter, cfg.Brave.Limits))
	case config.SourceDuckDuckGo:
		client := duckduckgo.NewClient(duckduckgo.WithHTTPClient(doer))
		adapter := duckduckgo.NewAdapter(duckduckgo.Config{Timeout: cfg.DuckDuckGo.Timeout()}, client)
		out.Fallbacks = append(out.Fallbacks, wrap(adapter, cfg.DuckDuckGo.Limits))
	}

	names := make([]string, 0, len(out.Fallbacks))
	for _, p := range out.Fallbacks {
		names = append(names, p.Name())
	}
	log.WithFields(logger.Fields{"authoritative": len(out.Authoritative), "fallbacks": names}).Info("price sources ready")
	return out
}
