package provider

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"labelagent/internal/item"
)

// Query is what every source is asked to price.
type Query struct {
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Category item.Category `json:"category"`
}

// Text joins title and artist the way search endpoints expect.
func (q Query) Text() string {
	return strings.TrimSpace(strings.TrimSpace(q.Title) + " " + strings.TrimSpace(q.Artist))
}

// Key identifies a query for caching.
func (q Query) Key() string {
	return q.Category.String() + "|" + strings.ToLower(q.Text())
}

// Sample is one source's opinion of a price, already reduced to a single amount.
type Sample struct {
	Source     string          `json:"source"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Provider is a price source. Lookup reports absence with ok=false and never
// returns transport or parse errors to the caller; implementations log them.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, q Query) (s Sample, ok bool)
}

// Func adapts a function to Provider.
type Func struct {
	ID string
	Fn func(ctx context.Context, q Query) (Sample, bool)
}

func (f Func) Name() string { return f.ID }

func (f Func) Lookup(ctx context.Context, q Query) (Sample, bool) { return f.Fn(ctx, q) }
