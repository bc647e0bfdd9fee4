package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Source is one contributing sample in a Result.
type Source struct {
	Name   string
	Amount decimal.Decimal
}

// Sources keeps samples in call order and encodes as a JSON object whose
// keys follow that order.
type Sources []Source

func (s Sources) Len() int { return len(s) }

// Get returns the amount reported under name.
func (s Sources) Get(name string) (decimal.Decimal, bool) {
	for _, src := range s {
		if src.Name == name {
			return src.Amount, true
		}
	}
	return decimal.Zero, false
}

func (s Sources) Names() []string {
	out := make([]string, len(s))
	for i, src := range s {
		out[i] = src.Name
	}
	return out
}

func (s Sources) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, src := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(src.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(src.Amount.StringFixed(2))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Sources) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sources: expected object, got %v", tok)
	}
	out := Sources{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("sources: %s: %w", name, err)
		}
		amount, err := decimal.NewFromString(n.String())
		if err != nil {
			return fmt.Errorf("sources: %s: %w", name, err)
		}
		out = append(out, Source{Name: name, Amount: amount})
	}
	*s = out
	return nil
}

type wireResult struct {
	Sources    Sources      `json:"sources"`
	FinalPrice *json.Number `json:"final_price"`
	Note       string       `json:"note,omitempty"`
	Rule       Rule         `json:"rule,omitempty"`
}

// MarshalJSON renders final_price as a number with two decimals, or null.
func (r Result) MarshalJSON() ([]byte, error) {
	w := wireResult{Sources: r.Sources, Note: r.Note, Rule: r.Rule}
	if w.Sources == nil {
		w.Sources = Sources{}
	}
	if r.FinalPrice.Valid {
		n := json.Number(r.FinalPrice.Decimal.StringFixed(2))
		w.FinalPrice = &n
	}
	return json.Marshal(w)
}

func (r *Result) UnmarshalJSON(b []byte) error {
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Result{Sources: w.Sources, Note: w.Note, Rule: w.Rule}
	if w.FinalPrice != nil {
		d, err := decimal.NewFromString(w.FinalPrice.String())
		if err != nil {
			return fmt.Errorf("final_price: %w", err)
		}
		r.FinalPrice = decimal.NewNullDecimal(d)
	}
	return nil
}
