// Package item describes collectible categories and the field schema each
// category is catalogued with.
package item

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned by ParseCategory for unrecognised input.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the kind of collectible being priced.
type Category int

const (
	General Category = iota
	Media
	Card
	Comic
	Record
	Misc
)

var categoryNames = [...]string{
	General: "general",
	Media:   "media",
	Card:    "card",
	Comic:   "comic",
	Record:  "record",
	Misc:    "misc",
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{General, Media, Card, Comic, Record, Misc}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory is case-insensitive and ignores surrounding whitespace.
func ParseCategory(s string) (Category, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name == v {
			return Category(i), nil
		}
	}
	return General, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, int(c))
	}
	return []byte(categoryNames[c]), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
