// Package pricing turns raw prices into the shop's quoting convention:
// a per-category floor followed by rounding, rendered as "$N.NN".
package pricing

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"labelagent/internal/item"
	"labelagent/internal/money"
)

var (
	numberPattern = regexp.MustCompile(`\d+(\.\d+)?`)

	five = decimal.NewFromInt(5)
	two  = decimal.NewFromInt(2)
)

// Policy is the floor and rounding applied to one category.
type Policy struct {
	Floor decimal.Decimal
	Round func(decimal.Decimal) decimal.Decimal
}

// PolicyFor returns the pricing policy of c.
func PolicyFor(c item.Category) Policy {
	switch c {
	case item.Comic, item.Record:
		return Policy{Floor: decimal.NewFromInt(4), Round: Standard}
	case item.Card:
		return Policy{Floor: decimal.NewFromInt(1), Round: Standard}
	case item.General, item.Media, item.Misc:
		return Policy{Floor: decimal.NewFromInt(3), Round: Standard}
	}
	return Policy{Floor: decimal.NewFromInt(3), Round: Standard}
}

// Minimum is the formatted floor of c.
func Minimum(c item.Category) string {
	return money.Format(PolicyFor(c).Floor)
}

// Standard rounds amounts above 5 up to a whole unit and everything else to
// the nearest half unit, halves rounding up.
func Standard(d decimal.Decimal) decimal.Decimal {
	if d.GreaterThan(five) {
		return d.Ceil()
	}
	return d.Mul(two).Round(0).Div(two)
}

// Quote applies the policy of c to raw. A value that already starts with "$"
// is returned as is, so quoting is idempotent.
func Quote(c item.Category, raw string) string {
	if strings.HasPrefix(strings.TrimSpace(raw), "$") {
		return raw
	}
	p := PolicyFor(c)
	m := numberPattern.FindString(raw)
	if m == "" {
		return money.Format(p.Floor)
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return money.Format(p.Floor)
	}
	if d.LessThan(p.Floor) {
		d = p.Floor
	}
	return money.Format(p.Round(d))
}

// ApplyPricingRules rewrites the price column of fields in place and returns fields.
func ApplyPricingRules(c item.Category, fields item.Fields) item.Fields {
	if fields == nil {
		fields = item.Fields{}
	}
	fields[item.PriceKey] = Quote(c, fields[item.PriceKey])
	return fields
}

// EnforcePrice guards a model-suggested price: blank, unparseable or
// non-positive input becomes the category minimum. No rounding is applied.
func EnforcePrice(value string, c item.Category) string {
	d, ok := money.Normalize(strings.TrimSpace(value))
	if !ok {
		return Minimum(c)
	}
	return money.Format(d)
}
