package aggregate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"labelagent/internal/item"
	"labelagent/internal/logger"
	"labelagent/internal/metrics"
	"labelagent/internal/money"
	"labelagent/internal/provider"
)

// Rule names the branch that produced a Result.
type Rule string

const (
	RuleAuthoritative Rule = "authoritative"
	RuleWeighted      Rule = "weighted"
	RuleNone          Rule = "none"
)

// NoPriceNote is the note of a Result without a final price.
const NoPriceNote = "No prices found"

// Result is one pricing decision with its provenance.
type Result struct {
	Sources    Sources
	FinalPrice decimal.NullDecimal
	Note       string
	Rule       Rule
}

// Config wires sources into an Aggregator.
//   - Authoritative: category -> source whose sample short-circuits all others
//   - Fallbacks: sources called concurrently when no authoritative sample exists
//   - Weights: source name -> weight; keys go through NormalizeSource
type Config struct {
	Authoritative map[item.Category]provider.Provider
	Fallbacks     []provider.Provider
	Weights       map[string]decimal.Decimal
}

// DefaultWeights favour marketplace listings over web snippets.
func DefaultWeights() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"eBay":      decimal.RequireFromString("0.75"),
		"WebSearch": decimal.RequireFromString("0.25"),
	}
}

// aliasMap normalizes source name spellings to weight table keys.
var aliasMap = map[string]string{
	"ebay":       "eBay",
	"web":        "WebSearch",
	"websearch":  "WebSearch",
	"web search": "WebSearch",
	"brave":      "WebSearch",
	"duckduckgo": "WebSearch",
	"ddg":        "WebSearch",
	"discogs":    "Discogs",
	"scryfall":   "Scryfall",
}

// NormalizeSource maps a reported source name to its weight table key.
// Unknown names are returned trimmed but otherwise untouched.
func NormalizeSource(src string) string {
	s := strings.TrimSpace(src)
	if norm, ok := aliasMap[strings.ToLower(s)]; ok {
		return norm
	}
	return s
}

// Aggregator merges source samples into a single price.
type Aggregator struct {
	cfg     Config
	weights map[string]decimal.Decimal
	log     *logger.Entry
}

type Option func(*Aggregator)

func WithLogger(l *logger.Entry) Option {
	return func(a *Aggregator) { a.log = l }
}

func New(cfg Config, opts ...Option) *Aggregator {
	if cfg.Weights == nil {
		cfg.Weights = DefaultWeights()
	}
	a := &Aggregator{
		cfg:     cfg,
		weights: make(map[string]decimal.Decimal, len(cfg.Weights)),
		log:     logger.GetLogger().WithComponent("aggregate"),
	}
	for name, w := range cfg.Weights {
		a.weights[NormalizeSource(name)] = w
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GetBestPrice prices one item. It never fails; a Result without FinalPrice
// means no source produced a usable sample.
func (a *Aggregator) GetBestPrice(ctx context.Context, title, artist string, category item.Category) Result {
	return a.Price(ctx, provider.Query{Title: title, Artist: artist, Category: category})
}

// Price is GetBestPrice for a prepared query.
func (a *Aggregator) Price(ctx context.Context, q provider.Query) (res Result) {
	started := time.Now()
	log := a.log.WithFields(logger.Fields{"title": q.Title, "artist": q.Artist, "category": q.Category.String()})
	defer func() {
		metrics.RecordAggregation(string(res.Rule), time.Since(started))
		logger.LogDuration(log, "aggregate", started, logger.Fields{"rule": res.Rule, "sources": res.Sources.Len()})
	}()
	log.Info("starting price lookup")

	if auth, ok := a.cfg.Authoritative[q.Category]; ok && auth != nil {
		if s, ok := a.lookup(ctx, log, auth, q); ok {
			return Result{
				Sources:    Sources{{Name: s.Source, Amount: s.Amount}},
				FinalPrice: decimal.NewNullDecimal(s.Amount),
				Note:       fmt.Sprintf("%s authoritative source used.", s.Source),
				Rule:       RuleAuthoritative,
			}
		}
		log.WithFields(logger.Fields{"source": auth.Name()}).Info("authoritative source had nothing, falling back")
	}

	samples := make([]provider.Sample, len(a.cfg.Fallbacks))
	found := make([]bool, len(a.cfg.Fallbacks))
	var g errgroup.Group
	for i, p := range a.cfg.Fallbacks {
		g.Go(func() error {
			samples[i], found[i] = a.lookup(ctx, log, p, q)
			return nil
		})
	}
	// lookup reports failures as absence, so Wait only joins.
	_ = g.Wait()

	var sources Sources
	for i, s := range samples {
		if found[i] {
			sources = append(sources, Source{Name: s.Source, Amount: s.Amount})
		}
	}
	if len(sources) == 0 {
		log.Warn("no valid prices found")
		return Result{Sources: Sources{}, Note: NoPriceNote, Rule: RuleNone}
	}
	return a.weigh(log, sources)
}

// weigh averages sources by weights renormalized over the sources present.
func (a *Aggregator) weigh(log *logger.Entry, sources Sources) Result {
	var sum, total decimal.Decimal
	var used []string
	for _, s := range sources {
		w, ok := a.weights[NormalizeSource(s.Name)]
		if !ok || !w.IsPositive() {
			log.WithFields(logger.Fields{"source": s.Name}).Debug("source has no weight")
			continue
		}
		sum = sum.Add(s.Amount.Mul(w))
		total = total.Add(w)
		used = append(used, s.Name)
	}
	if !total.IsPositive() {
		return Result{
			Sources: sources,
			Note:    fmt.Sprintf("No weighted source among %s", strings.Join(sources.Names(), ", ")),
			Rule:    RuleNone,
		}
	}
	final := money.Round2(sum.Div(total))
	if !final.IsPositive() {
		return Result{
			Sources: sources,
			Note:    fmt.Sprintf("Weighted average of %s rounds to zero", strings.Join(used, ", ")),
			Rule:    RuleNone,
		}
	}
	log.WithFields(logger.Fields{"final_price": final.StringFixed(2), "weighted": len(used)}).Info("weighted average")
	return Result{
		Sources:    sources,
		FinalPrice: decimal.NewNullDecimal(final),
		Note:       fmt.Sprintf("Weighted average of %s.", strings.Join(used, ", ")),
		Rule:       RuleWeighted,
	}
}

// lookup calls p and treats a panic as absence. Amounts are rounded to cents;
// one that rounds to zero is absent.
func (a *Aggregator) lookup(ctx context.Context, log *logger.Entry, p provider.Provider, q provider.Query) (s provider.Sample, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{"source": p.Name(), "panic": fmt.Sprint(r)}).Error("source panicked")
			s, ok = provider.Sample{}, false
		}
	}()
	s, ok = p.Lookup(ctx, q)
	if !ok {
		return provider.Sample{}, false
	}
	s.Amount = money.Round2(s.Amount)
	if !s.Amount.IsPositive() {
		log.WithFields(logger.Fields{"source": p.Name()}).Info("discarding price below one cent")
		return provider.Sample{}, false
	}
	if s.Source == "" {
		s.Source = p.Name()
	}
	return s, ok
}
