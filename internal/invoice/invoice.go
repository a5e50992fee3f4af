// Package invoice renders a finalized bill into a human-readable text
// document. It only reads the bill view; totals are never recomputed or
// altered here.
package invoice

import (
	"fmt"
	"sort"
	"strings"

	"notakasir/backend/internal/domain"
)

type Document struct {
	FileName string `json:"file_name"`
	Text     string `json:"text"`
}

const rule = "----------------------------------------"

func FileName(billNo string) string {
	return fmt.Sprintf("invoice_%s.txt", billNo)
}

// Render lays the bill out as a fixed-width receipt: header, item table,
// per-category taxes in category order, then the totals block.
func Render(view domain.BillView) Document {
	var b strings.Builder

	fmt.Fprintln(&b, "---- RESTAURANT INVOICE ----")
	fmt.Fprintf(&b, "Bill No: %s\n", view.BillNo)
	fmt.Fprintf(&b, "Date: %s\n", view.Date)
	fmt.Fprintf(&b, "Customer: %s\n", view.Customer.Name)
	fmt.Fprintf(&b, "Phone: %s\n", view.Customer.Phone)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-25s%4s%9s%9s\n", "Item", "Qty", "Price", "Amt")
	fmt.Fprintln(&b, rule)

	for _, line := range view.Lines {
		name := line.Item.Name
		if len(name) > 25 {
			name = name[:25]
		}
		fmt.Fprintf(&b, "%-25s%4d%9s%9s\n",
			name, line.Item.Qty,
			line.Item.UnitPrice.StringFixed(2),
			line.Item.Amount().StringFixed(2))
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Subtotal: %s\n", view.Subtotal.StringFixed(2))

	categories := make([]string, 0, len(view.TaxesByCategory))
	for category := range view.TaxesByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Fprintf(&b, "Tax (%s): %s\n", category, view.TaxesByCategory[category].StringFixed(2))
	}

	fmt.Fprintf(&b, "Total Tax: %s\n", view.TotalTax.StringFixed(2))
	fmt.Fprintf(&b, "Grand Total: %s\n", view.GrandTotal.StringFixed(2))
	fmt.Fprintln(&b, rule)

	return Document{
		FileName: FileName(view.BillNo),
		Text:     b.String(),
	}
}
