package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls queue behind each other; a caller whose context ends while
// waiting gets absence.
type MinInterval struct {
	P        provider.Provider
	Interval time.Duration

	once    sync.Once
	limiter *rate.Limiter
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	if m.Interval > 0 {
		m.once.Do(func() { m.limiter = rate.NewLimiter(rate.Every(m.Interval), 1) })
		if err := m.limiter.Wait(ctx); err != nil {
			logger.GetLogger().WithComponent(m.P.Name()).WithError(err).Warn("rate limit wait aborted")
			return provider.Sample{}, false
		}
	}
	return m.P.Lookup(ctx, q)
}
