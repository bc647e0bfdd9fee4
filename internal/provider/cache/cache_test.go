package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"labelagent/internal/item"
	"labelagent/internal/provider"
)

type scripted struct {
	calls   int
	answers []bool
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Lookup(_ context.Context, q provider.Query) (provider.Sample, bool) {
	ok := s.answers[s.calls%len(s.answers)]
	s.calls++
	if !ok {
		return provider.Sample{}, false
	}
	return provider.Sample{Source: "scripted", Amount: decimal.NewFromInt(int64(s.calls))}, true
}

func TestCache_HitWithinTTL(t *testing.T) {
	inner := &scripted{answers: []bool{true}}
	c := &Provider{P: inner, TTL: time.Minute}
	q := provider.Query{Title: "Midnights", Category: item.Record}

	first, ok := c.Lookup(t.Context(), q)
	require.True(t, ok)
	second, ok := c.Lookup(t.Context(), q)
	require.True(t, ok)

	require.Equal(t, 1, inner.calls)
	require.True(t, first.Amount.Equal(second.Amount))
	require.Equal(t, "scripted", c.Name())
}

func TestCache_DistinctQueriesAreSeparate(t *testing.T) {
	inner := &scripted{answers: []bool{true}}
	c := &Provider{P: inner, TTL: time.Minute}

	_, _ = c.Lookup(t.Context(), provider.Query{Title: "a"})
	_, _ = c.Lookup(t.Context(), provider.Query{Title: "a", Category: item.Card})
	_, _ = c.Lookup(t.Context(), provider.Query{Title: "A"})

	require.Equal(t, 2, inner.calls)
	require.Equal(t, 2, c.Len())
}

func TestCache_ServesStaleOnMiss(t *testing.T) {
	inner := &scripted{answers: []bool{true, false}}
	c := &Provider{P: inner, TTL: time.Millisecond}
	q := provider.Query{Title: "x"}

	first, ok := c.Lookup(t.Context(), q)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	stale, ok := c.Lookup(t.Context(), q)
	require.True(t, ok)
	require.Equal(t, 2, inner.calls)
	require.True(t, first.Amount.Equal(stale.Amount))
}

func TestCache_MissIsNotCached(t *testing.T) {
	inner := &scripted{answers: []bool{false}}
	c := &Provider{P: inner, TTL: time.Minute}

	_, ok := c.Lookup(t.Context(), provider.Query{Title: "x"})
	require.False(t, ok)
	_, ok = c.Lookup(t.Context(), provider.Query{Title: "x"})
	require.False(t, ok)
	require.Equal(t, 2, inner.calls)
}

func TestCache_MaxItems(t *testing.T) {
	inner := &scripted{answers: []bool{true}}
	c := &Provider{P: inner, TTL: time.Minute, MaxItems: 2}

	for _, title := range []string{"a", "b", "c", "d"} {
		_, ok := c.Lookup(t.Context(), provider.Query{Title: title})
		require.True(t, ok)
	}
	require.LessOrEqual(t, c.Len(), 2)
}

func TestCache_ZeroTTLPassesThrough(t *testing.T) {
	inner := &scripted{answers: []bool{true}}
	c := &Provider{P: inner}

	_, _ = c.Lookup(t.Context(), provider.Query{Title: "x"})
	_, _ = c.Lookup(t.Context(), provider.Query{Title: "x"})
	require.Equal(t, 2, inner.calls)
}
