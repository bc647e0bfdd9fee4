package aggregate

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/provider"
)

// stub answers with a fixed amount, or absence when amount is empty.
type stub struct {
	name   string
	amount string
	delay  time.Duration
	calls  atomic.Int32
}

func (s *stub) Name() string { return s.name }

func (s *stub) Lookup(ctx context.Context, q provider.Query) (provider.Sample, bool) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.amount == "" {
		return provider.Sample{}, false
	}
	return provider.Sample{Source: s.name, Amount: decimal.RequireFromString(s.amount)}, true
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) Lookup(context.Context, provider.Query) (provider.Sample, bool) { panic("boom") }

func newAggregator(auth *stub, fallbacks ...provider.Provider) *Aggregator {
	cfg := Config{Fallbacks: fallbacks}
	if auth != nil {
		cfg.Authoritative = map[item.Category]provider.Provider{item.Media: auth, item.Record: auth}
	}
	return New(cfg, WithLogger(logger.NewNop().WithComponent("test")))
}

func requireAmount(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "final price absent")
	require.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "want %s, got %s", want, got.Decimal)
}

func TestGetBestPrice_AuthoritativeShortCircuits(t *testing.T) {
	t.Parallel()

	// Arrange: authoritative source and two fallbacks that must stay idle
	discogs := &stub{name: "Discogs", amount: "12.00"}
	ebay := &stub{name: "eBay", amount: "5.00"}
	web := &stub{name: "WebSearch", amount: "6.00"}
	a := newAggregator(discogs, ebay, web)

	// Act
	res := a.GetBestPrice(t.Context(), "Abbey Road", "The Beatles", item.Media)

	// Assert
	requireAmount(t, "12.00", res.FinalPrice)
	require.Equal(t, []string{"Discogs"}, res.Sources.Names())
	require.Equal(t, "Discogs authoritative source used.", res.Note)
	require.Equal(t, RuleAuthoritative, res.Rule)
	require.Equal(t, int32(1), discogs.calls.Load())
	require.Equal(t, int32(0), ebay.calls.Load())
	require.Equal(t, int32(0), web.calls.Load())
}

func TestGetBestPrice_AuthoritativeOnlyForMappedCategories(t *testing.T) {
	t.Parallel()

	discogs := &stub{name: "Discogs", amount: "12.00"}
	ebay := &stub{name: "eBay", amount: "10.00"}
	a := newAggregator(discogs, ebay)

	res := a.GetBestPrice(t.Context(), "Spawn", "1", item.Comic)

	requireAmount(t, "10.00", res.FinalPrice)
	require.Equal(t, int32(0), discogs.calls.Load())
}

func TestGetBestPrice_AuthoritativeMissFallsBack(t *testing.T) {
	t.Parallel()

	discogs := &stub{name: "Discogs"}
	ebay := &stub{name: "eBay", amount: "10.00"}
	web := &stub{name: "WebSearch", amount: "20.00"}
	a := newAggregator(discogs, ebay, web)

	res := a.GetBestPrice(t.Context(), "Rare Pressing", "", item.Record)

	requireAmount(t, "12.50", res.FinalPrice)
	require.Equal(t, int32(1), discogs.calls.Load())
	_, hasDiscogs := res.Sources.Get("Discogs")
	require.False(t, hasDiscogs)
}

func TestGetBestPrice_WeightedFallback(t *testing.T) {
	t.Parallel()

	// Arrange: the slow source is called first and must stay first
	ebay := &stub{name: "eBay", amount: "10.00", delay: 30 * time.Millisecond}
	web := &stub{name: "WebSearch", amount: "20.00"}
	a := newAggregator(nil, ebay, web)

	// Act
	res := a.GetBestPrice(t.Context(), "Funko Pop Darth Vader", "", item.General)

	// Assert: 10*0.75 + 20*0.25
	requireAmount(t, "12.50", res.FinalPrice)
	require.Equal(t, []string{"eBay", "WebSearch"}, res.Sources.Names())
	require.Equal(t, RuleWeighted, res.Rule)
}

func TestGetBestPrice_RenormalizesOverPresentSources(t *testing.T) {
	t.Parallel()

	ebay := &stub{name: "eBay"}
	web := &stub{name: "WebSearch", amount: "7.333"}
	a := newAggregator(nil, ebay, web)

	res := a.GetBestPrice(t.Context(), "x", "", item.Misc)

	requireAmount(t, "7.33", res.FinalPrice)
	require.Equal(t, 1, res.Sources.Len())
}

func TestGetBestPrice_AliasedSourceName(t *testing.T) {
	t.Parallel()

	ebay := &stub{name: "eBay", amount: "10.00"}
	ddg := &stub{name: "DuckDuckGo", amount: "30.00"}
	a := newAggregator(nil, ebay, ddg)

	res := a.GetBestPrice(t.Context(), "x", "", item.General)

	requireAmount(t, "15.00", res.FinalPrice)
}

func TestGetBestPrice_UnweightedSourcesAreReportedOnly(t *testing.T) {
	t.Parallel()

	other := &stub{name: "Mercari", amount: "99.00"}
	ebay := &stub{name: "eBay", amount: "10.00"}

	res := newAggregator(nil, other, ebay).GetBestPrice(t.Context(), "x", "", item.General)
	requireAmount(t, "10.00", res.FinalPrice)
	require.Equal(t, []string{"Mercari", "eBay"}, res.Sources.Names())

	res = newAggregator(nil, other).GetBestPrice(t.Context(), "x", "", item.General)
	require.False(t, res.FinalPrice.Valid)
	require.Equal(t, RuleNone, res.Rule)
	require.Contains(t, res.Note, "Mercari")
}

func TestGetBestPrice_AllAbsent(t *testing.T) {
	t.Parallel()

	a := newAggregator(&stub{name: "Discogs"}, &stub{name: "eBay"}, panicky{}, &stub{name: "WebSearch"})

	res := a.GetBestPrice(t.Context(), "nothing", "", item.Media)

	require.False(t, res.FinalPrice.Valid)
	require.Equal(t, 0, res.Sources.Len())
	require.Equal(t, NoPriceNote, res.Note)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.JSONEq(t, `{"sources":{},"final_price":null,"note":"No prices found","rule":"none"}`, string(b))
}

func TestGetBestPrice_SubCentSamplesAreAbsent(t *testing.T) {
	t.Parallel()

	// Arrange
	discogs := &stub{name: "Discogs", amount: "0.004"}
	ebay := &stub{name: "eBay", amount: "0.003"}
	web := &stub{name: "WebSearch", amount: "0.001"}
	a := newAggregator(discogs, ebay, web)

	// Act
	res := a.GetBestPrice(t.Context(), "Worn Sleeve", "", item.Media)

	// Assert: nothing rounds to a positive cent, so no source is usable
	require.False(t, res.FinalPrice.Valid)
	require.Equal(t, RuleNone, res.Rule)
	require.Equal(t, NoPriceNote, res.Note)
	require.Equal(t, 0, res.Sources.Len())
	require.Equal(t, int32(1), ebay.calls.Load())
}

func TestGetBestPrice_SubCentAuthoritativeFallsBack(t *testing.T) {
	t.Parallel()

	discogs := &stub{name: "Discogs", amount: "0.004"}
	ebay := &stub{name: "eBay", amount: "5.00"}
	a := newAggregator(discogs, ebay)

	res := a.GetBestPrice(t.Context(), "Worn Sleeve", "", item.Record)

	requireAmount(t, "5.00", res.FinalPrice)
	require.Equal(t, RuleWeighted, res.Rule)
	require.Equal(t, []string{"eBay"}, res.Sources.Names())
}

func TestResult_JSONKeepsSourceOrder(t *testing.T) {
	t.Parallel()

	res := Result{
		Sources:    Sources{{Name: "WebSearch", Amount: decimal.NewFromInt(20)}, {Name: "eBay", Amount: decimal.RequireFromString("10.5")}},
		FinalPrice: decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
		Rule:       RuleWeighted,
	}

	b, err := json.Marshal(res)
	require.NoError(t, err)
	require.Equal(t, `{"sources":{"WebSearch":20.00,"eBay":10.50},"final_price":12.50,"rule":"weighted"}`, string(b))

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, []string{"WebSearch", "eBay"}, back.Sources.Names())
	requireAmount(t, "12.5", back.FinalPrice)
}

func TestNormalizeSource(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"ebay":       "eBay",
		" EBAY ":     "eBay",
		"brave":      "WebSearch",
		"web":        "WebSearch",
		"DuckDuckGo": "WebSearch",
		"Discogs":    "Discogs",
		"Heritage":   "Heritage",
		"":           "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeSource(in), in)
	}
}
