package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the issued-at format persisted with every bill: ISO-8601
// at second precision, no zone suffix.
const DateLayout = "2006-01-02T15:04:05"

var (
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrIndexOutOfRange = errors.New("line item index out of range")
)

const (
	CategorySnacks  = "snacks"
	CategoryGrocery = "grocery"
	CategoryHygiene = "hygiene"
)

// taxRates maps a tax category to its rate. Unknown categories are taxed
// at zero rather than rejected.
var taxRates = map[string]decimal.Decimal{
	CategorySnacks:  decimal.RequireFromString("0.05"),
	CategoryGrocery: decimal.RequireFromString("0.01"),
	CategoryHygiene: decimal.RequireFromString("0.10"),
}

// TaxRate returns the rate for a category, zero when the category is unknown.
func TaxRate(category string) decimal.Decimal {
	if rate, ok := taxRates[category]; ok {
		return rate
	}
	return decimal.Zero
}

// NewLineItem builds a line item from a catalog entry and a chosen quantity.
// Quantities below one are rejected; a zero quantity means "not added" and
// must never reach a bill through this constructor.
func NewLineItem(entry CatalogEntry, qty int) (LineItem, error) {
	if qty < 1 {
		return LineItem{}, ErrInvalidQuantity
	}
	return LineItem{
		Code:      entry.Code,
		Name:      entry.Name,
		UnitPrice: entry.UnitPrice,
		Qty:       qty,
	}, nil
}

// Amount is the derived line value: round(unitPrice * qty, 2). It is never
// stored on the item itself so it cannot drift from its inputs.
func (i LineItem) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Qty))).Round(2)
}

// Bill is an in-progress or finalized customer order. The line sequence is
// the single source of truth; any displayed projection is regenerated from
// it, never reconciled back into it.
type Bill struct {
	BillNo   string
	Customer Customer
	IssuedAt time.Time

	lines []BillLine
}

// NewBill starts an empty bill. A zero issuedAt stamps the current UTC
// time truncated to seconds, matching the persisted date precision.
func NewBill(billNo string, customer Customer, issuedAt time.Time) *Bill {
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC().Truncate(time.Second)
	}
	return &Bill{
		BillNo:   billNo,
		Customer: customer,
		IssuedAt: issuedAt.Truncate(time.Second),
	}
}

// AddLineItem appends the item under the given category. Items with a
// non-positive quantity are silently ignored: there is nothing to add.
func (b *Bill) AddLineItem(category string, item LineItem) {
	if item.Qty <= 0 {
		return
	}
	b.lines = append(b.lines, BillLine{Category: category, Item: item})
}

// RemoveLineItem removes the line at the given position.
func (b *Bill) RemoveLineItem(index int) error {
	if index < 0 || index >= len(b.lines) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

func (b *Bill) ClearLineItems() {
	b.lines = nil
}

// Lines returns a copy of the ordered line sequence.
func (b *Bill) Lines() []BillLine {
	out := make([]BillLine, len(b.lines))
	copy(out, b.lines)
	return out
}

// TotalsByCategory groups line amounts by category. Amounts accumulate
// unrounded per category and each total is rounded once at the end, so
// grouping order never changes the result.
func (b *Bill) TotalsByCategory() map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(b.lines))
	for _, line := range b.lines {
		totals[line.Category] = totals[line.Category].Add(line.Item.Amount())
	}
	for category, total := range totals {
		totals[category] = total.Round(2)
	}
	return totals
}

// TaxesByCategory applies each category's rate to its rounded total.
func (b *Bill) TaxesByCategory() map[string]decimal.Decimal {
	totals := b.TotalsByCategory()
	taxes := make(map[string]decimal.Decimal, len(totals))
	for category, total := range totals {
		taxes[category] = total.Mul(TaxRate(category)).Round(2)
	}
	return taxes
}

func (b *Bill) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range b.lines {
		sum = sum.Add(line.Item.Amount())
	}
	return sum.Round(2)
}

// TotalTax sums the already-rounded per-category taxes. This can differ by
// a cent from rounding the unrounded sum; the per-category-then-sum policy
// is the documented behavior.
func (b *Bill) TotalTax() decimal.Decimal {
	sum := decimal.Zero
	for _, tax := range b.TaxesByCategory() {
		sum = sum.Add(tax)
	}
	return sum.Round(2)
}

func (b *Bill) GrandTotal() decimal.Decimal {
	return b.Subtotal().Add(b.TotalTax()).Round(2)
}

// serializedLineItem is the wire shape of one entry in the persisted items
// blob. Amount is carried for readability of the stored row; decoding
// rebuilds items from unit price and qty so the derived value cannot drift.
type serializedLineItem struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	Amount    decimal.Decimal `json:"amount"`
	Category  string          `json:"category"`
}

// ToRecord flattens the bill into its persisted form.
func (b *Bill) ToRecord() (PersistedBillRecord, error) {
	items := make([]serializedLineItem, 0, len(b.lines))
	for _, line := range b.lines {
		items = append(items, serializedLineItem{
			Code:      line.Item.Code,
			Name:      line.Item.Name,
			UnitPrice: line.Item.UnitPrice,
			Qty:       line.Item.Qty,
			Amount:    line.Item.Amount(),
			Category:  line.Category,
		})
	}
	blob, err := json.Marshal(items)
	if err != nil {
		return PersistedBillRecord{}, fmt.Errorf("encode line items: %w", err)
	}

	return PersistedBillRecord{
		BillNo:       b.BillNo,
		CustomerName: b.Customer.Name,
		Phone:        b.Customer.Phone,
		Date:         b.IssuedAt.Format(DateLayout),
		Items:        string(blob),
		Subtotal:     b.Subtotal(),
		Tax:          b.TotalTax(),
		Total:        b.GrandTotal(),
	}, nil
}

// BillFromRecord rebuilds an in-memory bill from a persisted record. It is
// the exact inverse of ToRecord for every record ToRecord produces.
func BillFromRecord(rec PersistedBillRecord) (*Bill, error) {
	issuedAt, err := time.Parse(DateLayout, rec.Date)
	if err != nil {
		return nil, fmt.Errorf("parse bill date %q: %w", rec.Date, err)
	}

	var items []serializedLineItem
	if strings.TrimSpace(rec.Items) != "" {
		if err := json.Unmarshal([]byte(rec.Items), &items); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
	}

	bill := NewBill(rec.BillNo, Customer{Name: rec.CustomerName, Phone: rec.Phone}, issuedAt)
	for _, item := range items {
		category := item.Category
		if category == "" {
			category = "other"
		}
		bill.AddLineItem(category, LineItem{
			Code:      item.Code,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
		})
	}
	return bill, nil
}

// View produces the read-only projection consumed by renderers and clients.
func (b *Bill) View() BillView {
	return BillView{
		BillNo:           b.BillNo,
		Customer:         b.Customer,
		Date:             b.IssuedAt.Format(DateLayout),
		Lines:            b.Lines(),
		TotalsByCategory: b.TotalsByCategory(),
		TaxesByCategory:  b.TaxesByCategory(),
		Subtotal:         b.Subtotal(),
		TotalTax:         b.TotalTax(),
		GrandTotal:       b.GrandTotal(),
	}
}
