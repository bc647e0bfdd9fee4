package vision

import (
	"fmt"
	"strings"

	"labelagent/internal/item"
)

// promptColumns are the schema columns the model is asked to fill.
func promptColumns(c item.Category) []string {
	var out []string
	for _, col := range item.Columns(c) {
		if col == item.InventoryKey || col == item.BarcodeKey {
			continue
		}
		out = append(out, col)
	}
	return out
}

var highlights = map[item.Category]string{
	item.Comic:  "first appearances, classic covers, popular artists, tie-ins to shows or movies",
	item.Card:   "fan-favorite characters, strong attacks, rare holo styles, iconic artwork",
	item.Media:  "notable pressings, colored vinyl, original releases, cult following",
	item.Record: "notable pressings, colored vinyl, original releases, cult following",
}

// Prompt is the cataloging instruction sent with the photo.
func Prompt(c item.Category) string {
	cols := promptColumns(c)
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = fmt.Sprintf("%q", col)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a collectibles cataloging assistant. Extract details for a %s from the photo.\n", c)
	fmt.Fprintf(&b, "Return ONLY a JSON object with exactly these keys: %s.\n", strings.Join(quoted, ", "))
	b.WriteString("Rules:\n")
	b.WriteString("- No markdown, no extra text, output raw JSON only.\n")
	b.WriteString("- Identify the item from its title, set number, publisher, label, rarity or visible symbols.\n")
	b.WriteString("- Bullets are short sales-oriented points of at most 45 characters.\n")
	if h, ok := highlights[c]; ok {
		fmt.Fprintf(&b, "- Highlight things like %s.\n", h)
	}
	b.WriteString("- Price is a fair higher-midrange market price formatted like \"$4.00\". Never return 0 unless the item is clearly custom or fan-made.\n")
	if c == item.Media || c == item.Record {
		fmt.Fprintf(&b, "- Put the performing artist in %q.\n", item.ArtistKey)
	}
	return b.String()
}
