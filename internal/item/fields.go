package item

// Column names shared across schemas.
const (
	PriceKey       = "Price"
	PriceSourceKey = "Price Source"
	InventoryKey   = "Inventory #"
	BarcodeKey     = "Barcode"
	ArtistKey      = "Artist"
)

var (
	comicColumns = []string{"Title & Issue", "Bullet 1", "Bullet 2", "Bullet 3", "Publisher", PriceKey, InventoryKey, BarcodeKey}
	cardColumns  = []string{"Title", "Bullet 1", "Bullet 2", PriceSourceKey, PriceKey, InventoryKey, BarcodeKey}
	mediaColumns = []string{"Title", ArtistKey, "Bullet 1", "Bullet 2", "Format", PriceSourceKey, PriceKey, InventoryKey, BarcodeKey}
	otherColumns = []string{"Title", "Bullet 1", "Bullet 2", PriceSourceKey, PriceKey, InventoryKey, BarcodeKey}
)

// Columns returns the spreadsheet column order for c. The returned slice
// must not be modified.
func Columns(c Category) []string {
	switch c {
	case Comic:
		return comicColumns
	case Card:
		return cardColumns
	case Media, Record:
		return mediaColumns
	case General, Misc:
		return otherColumns
	}
	return otherColumns
}

// TitleKey is the column holding the item's name.
func TitleKey(c Category) string {
	switch c {
	case Comic:
		return "Title & Issue"
	case General, Media, Card, Record, Misc:
		return "Title"
	}
	return "Title"
}

// Fields maps column names to values.
type Fields map[string]string

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Normalize returns a copy restricted to the schema of c, with every column present.
func (f Fields) Normalize(c Category) Fields {
	cols := Columns(c)
	out := make(Fields, len(cols))
	for _, col := range cols {
		out[col] = f[col]
	}
	return out
}

// Row renders the values in column order.
func (f Fields) Row(c Category) []string {
	cols := Columns(c)
	row := make([]string, len(cols))
	for i, col := range cols {
		row[i] = f[col]
	}
	return row
}

// Empty reports whether every value is blank.
func (f Fields) Empty() bool {
	for _, v := range f {
		if v != "" {
			return false
		}
	}
	return true
}

// Merge overlays edits on top of f for keys in c's schema and returns the result.
func (f Fields) Merge(c Category, edits Fields) Fields {
	out := f.Normalize(c)
	for _, col := range Columns(c) {
		if v, ok := edits[col]; ok {
			out[col] = v
		}
	}
	return out
}
