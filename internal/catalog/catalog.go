package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"notakasir/backend/internal/domain"
)

var ErrUnknownCode = errors.New("unknown catalog code")

// Catalog is an immutable code -> entry mapping constructed once at process
// start and injected into the order-composition service. There is no
// mutation path after construction.
type Catalog struct {
	byCode map[string]domain.CatalogEntry
	sorted []domain.CatalogEntry
}

func New(entries []domain.CatalogEntry) *Catalog {
	byCode := make(map[string]domain.CatalogEntry, len(entries))
	sorted := make([]domain.CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		code := strings.ToUpper(strings.TrimSpace(entry.Code))
		if code == "" {
			continue
		}
		entry.Code = code
		byCode[code] = entry
		sorted = append(sorted, entry)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return &Catalog{byCode: byCode, sorted: sorted}
}

// Lookup resolves an item code. A miss is an error, never a silent default.
func (c *Catalog) Lookup(code string) (domain.CatalogEntry, error) {
	entry, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.CatalogEntry{}, fmt.Errorf("%w: %s", ErrUnknownCode, code)
	}
	return entry, nil
}

// Entries returns the catalog ordered by code.
func (c *Catalog) Entries() []domain.CatalogEntry {
	out := make([]domain.CatalogEntry, len(c.sorted))
	copy(out, c.sorted)
	return out
}

func price(val string) decimal.Decimal {
	return decimal.RequireFromString(val)
}

// Default returns the built-in menu catalog.
func Default() *Catalog {
	return New([]domain.CatalogEntry{
		{Code: "S01", Name: "Samosa", UnitPrice: price("20.00"), Category: domain.CategorySnacks},
		{Code: "S02", Name: "Paneer Tikka", UnitPrice: price("150.00"), Category: domain.CategorySnacks},
		{Code: "S03", Name: "Chicken Tikka", UnitPrice: price("180.00"), Category: domain.CategorySnacks},
		{Code: "S04", Name: "Vegetable Pakora", UnitPrice: price("60.00"), Category: domain.CategorySnacks},
		{Code: "M01", Name: "Butter Chicken", UnitPrice: price("220.00"), Category: domain.CategoryGrocery},
		{Code: "M02", Name: "Pasta", UnitPrice: price("120.00"), Category: domain.CategoryGrocery},
		{Code: "M03", Name: "Basmati Rice (1kg)", UnitPrice: price("160.00"), Category: domain.CategoryGrocery},
		{Code: "M04", Name: "Paneer Masala", UnitPrice: price("180.00"), Category: domain.CategoryGrocery},
		{Code: "H01", Name: "Noodles", UnitPrice: price("80.00"), Category: domain.CategoryHygiene},
		{Code: "H02", Name: "Pav Bhaji", UnitPrice: price("130.00"), Category: domain.CategoryHygiene},
		{Code: "H03", Name: "Dahi Vada", UnitPrice: price("70.00"), Category: domain.CategoryHygiene},
	})
}
