package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// NewTokenBucket returns a limiter refilling tokensPerSecond up to burst.
func NewTokenBucket(tokensPerSecond float64, burst int) *rate.Limiter {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(tokensPerSecond), burst)
}

// PerMinute is a token bucket sized in requests per minute.
func PerMinute(rpm, burst int) *rate.Limiter {
	return NewTokenBucket(float64(rpm)/60.0, burst)
}

// TokenBucketProvider wraps a Provider and gates calls using a token bucket.
type TokenBucketProvider struct {
	P  provider.Provider
	TB *rate.Limiter
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

func (t *TokenBucketProvider) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	if t.TB != nil {
		if err := t.TB.Wait(ctx); err != nil {
			logger.GetLogger().WithComponent(t.P.Name()).WithError(err).Warn("rate limit wait aborted")
			return provider.Sample{}, false
		}
	}
	return t.P.Lookup(ctx, q)
}

// Wrap applies the configured limit: a token bucket when rpm > 0, otherwise a
// minimum interval when minInterval > 0, otherwise p unchanged.
func Wrap(p provider.Provider, rpm, burst int, minInterval time.Duration) provider.Provider {
	if rpm > 0 {
		return &TokenBucketProvider{P: p, TB: PerMinute(rpm, burst)}
	}
	if minInterval > 0 {
		return &MinInterval{P: p, Interval: minInterval}
	}
	return p
}
