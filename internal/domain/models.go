package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogEntry is one sellable item in the static catalog. Entries are
// immutable process-wide data; there is no create/update path at runtime.
type CatalogEntry struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Category  string          `json:"category"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// LineItem is a catalog entry combined with a chosen quantity. It is
// immutable after construction; removal from a bill replaces, never mutates.
type LineItem struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
}

// BillLine pairs a line item with the tax category it was sold under.
type BillLine struct {
	Category string   `json:"category"`
	Item     LineItem `json:"item"`
}

// PersistedBillRecord is the flat row shape every bill store persists.
// Items holds the ordered line items as a JSON blob that only the bill
// codec produces and consumes; stores treat it as opaque text.
type PersistedBillRecord struct {
	BillNo       string          `json:"bill_no" db:"bill_no"`
	CustomerName string          `json:"customer_name" db:"customer_name"`
	Phone        string          `json:"phone" db:"phone"`
	Date         string          `json:"date" db:"date"`
	Items        string          `json:"items" db:"items"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	Tax          decimal.Decimal `json:"tax" db:"tax"`
	Total        decimal.Decimal `json:"total" db:"total"`
}

// BillSummary is the history-listing projection of a stored bill.
type BillSummary struct {
	BillNo       string          `json:"bill_no" db:"bill_no"`
	CustomerName string          `json:"customer_name" db:"customer_name"`
	Date         string          `json:"date" db:"date"`
	Total        decimal.Decimal `json:"total" db:"total"`
}

type DraftLine struct {
	Code string `json:"code"`
	Qty  int    `json:"qty"`
}

type QuoteRequest struct {
	Items []DraftLine `json:"items"`
}

type QuoteResponse struct {
	Lines            []BillLine                 `json:"lines"`
	TotalsByCategory map[string]decimal.Decimal `json:"totals_by_category"`
	TaxesByCategory  map[string]decimal.Decimal `json:"taxes_by_category"`
	Subtotal         decimal.Decimal            `json:"subtotal"`
	TotalTax         decimal.Decimal            `json:"total_tax"`
	GrandTotal       decimal.Decimal            `json:"grand_total"`
}

type SaveBillRequest struct {
	BillNo        string      `json:"bill_no"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Items         []DraftLine `json:"items"`
}

type SaveBillResponse struct {
	BillNo     string          `json:"bill_no"`
	Date       string          `json:"date"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TotalTax   decimal.Decimal `json:"total_tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// BillView is the read-only projection of a bill handed to renderers and
// API clients. Consumers never write back through it.
type BillView struct {
	BillNo           string                     `json:"bill_no"`
	Customer         Customer                   `json:"customer"`
	Date             string                     `json:"date"`
	Lines            []BillLine                 `json:"lines"`
	TotalsByCategory map[string]decimal.Decimal `json:"totals_by_category"`
	TaxesByCategory  map[string]decimal.Decimal `json:"taxes_by_category"`
	Subtotal         decimal.Decimal            `json:"subtotal"`
	TotalTax         decimal.Decimal            `json:"total_tax"`
	GrandTotal       decimal.Decimal            `json:"grand_total"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
