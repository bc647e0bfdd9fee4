package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

var nop = logger.NewNop().WithComponent("test")

func TestGuard_NormalizesAmount(t *testing.T) {
	t.Parallel()

	q := provider.Query{Title: "Funko Pop Darth Vader", Category: item.General}
	s, ok := provider.Guard(t.Context(), "eBay", nop, q, func(context.Context) (provider.Observation, error) {
		return provider.Observation{Amount: "$1,234.50", Count: 3}, nil
	})

	require.True(t, ok)
	require.Equal(t, "eBay", s.Source)
	require.True(t, decimal.RequireFromString("1234.50").Equal(s.Amount))
	require.Equal(t, 3, s.Count)
	require.False(t, s.ReceivedAt.IsZero())
}

func TestGuard_ConvertsFailuresToAbsence(t *testing.T) {
	t.Parallel()

	cases := map[string]func(context.Context) (provider.Observation, error){
		"transport":      func(context.Context) (provider.Observation, error) { return provider.Observation{}, errors.New("dial tcp: refused") },
		"no price":       func(context.Context) (provider.Observation, error) { return provider.Observation{}, fmt.Errorf("search: %w", provider.ErrNoPrice) },
		"not configured": func(context.Context) (provider.Observation, error) { return provider.Observation{}, provider.ErrNotConfigured },
		"zero amount":    func(context.Context) (provider.Observation, error) { return provider.Observation{Amount: 0.0}, nil },
		"garbage":        func(context.Context) (provider.Observation, error) { return provider.Observation{Amount: "n/a"}, nil },
		"panic":          func(context.Context) (provider.Observation, error) { panic("unexpected schema") },
	}
	for name, fetch := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s, ok := provider.Guard(t.Context(), "Discogs", nop, provider.Query{Title: "x"}, fetch)
			require.False(t, ok)
			require.Equal(t, provider.Sample{}, s)
		})
	}
}

func TestQuery_TextAndKey(t *testing.T) {
	t.Parallel()

	q := provider.Query{Title: " Midnights ", Artist: "Taylor Swift", Category: item.Record}
	require.Equal(t, "Midnights Taylor Swift", q.Text())
	require.Equal(t, "record|midnights taylor swift", q.Key())
	require.Equal(t, "Midnights", provider.Query{Title: "Midnights"}.Text())
}

func TestFunc(t *testing.T) {
	t.Parallel()

	f := provider.Func{ID: "stub", Fn: func(context.Context, provider.Query) (provider.Sample, bool) {
		return provider.Sample{Source: "stub", Amount: decimal.NewFromInt(1)}, true
	}}
	require.Equal(t, "stub", f.Name())
	_, ok := f.Lookup(t.Context(), provider.Query{})
	require.True(t, ok)
}
