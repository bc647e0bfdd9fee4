package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"labelagent/internal/logger"
	"labelagent/internal/metrics"
	"labelagent/internal/money"
)

var (
	// ErrNoPrice means the source answered but had nothing usable.
	ErrNoPrice = errors.New("no price found")

	// ErrNotConfigured means the source is missing credentials.
	ErrNotConfigured = errors.New("source not configured")
)

// Observation is a raw result from a source client, before normalization.
type Observation struct {
	Amount any
	Count  int
}

// Guard runs fetch and converts every failure into absence. Errors are logged
// on log; ErrNoPrice is logged at info level since it is an expected outcome.
func Guard(ctx context.Context, name string, log *logger.Entry, q Query, fetch func(ctx context.Context) (Observation, error)) (s Sample, ok bool) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"title": q.Title, "panic": fmt.Sprint(r)}).Error("lookup panicked")
			s, ok = Sample{}, false
		}
		metrics.RecordSourceLookup(name, ok, time.Since(started))
	}()

	obs, err := fetch(ctx)
	switch {
	case errors.Is(err, ErrNoPrice):
		log.WithFields(logger.Fields{"title": q.Title}).Info("no price found")
		return Sample{}, false
	case errors.Is(err, ErrNotConfigured):
		log.WithError(err).Error("lookup skipped")
		return Sample{}, false
	case err != nil:
		log.WithError(err).WithFields(logger.Fields{"title": q.Title}).Warn("lookup failed")
		return Sample{}, false
	}

	amount, valid := money.Normalize(obs.Amount)
	if !valid {
		log.WithFields(logger.Fields{"title": q.Title, "raw": fmt.Sprint(obs.Amount)}).Warn("discarding unusable price")
		return Sample{}, false
	}
	log.WithFields(logger.Fields{"title": q.Title, "amount": amount.StringFixed(2), "count": obs.Count}).Info("price found")
	return Sample{Source: name, Amount: amount, Count: obs.Count, ReceivedAt: time.Now().UTC()}, true
}
