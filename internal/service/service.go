package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"notakasir/backend/internal/billno"
	"notakasir/backend/internal/cache"
	"notakasir/backend/internal/catalog"
	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/invoice"
	"notakasir/backend/internal/store"
)

// ErrValidation marks recoverable input problems detected before any
// durable state is touched; the caller re-prompts and retries.
var ErrValidation = errors.New("validation failed")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service composes orders against the injected catalog and drives the bill
// lifecycle: draft, quote, save, lookup, history, invoice.
type Service struct {
	repo     store.Repository
	catalog  *catalog.Catalog
	cache    cache.BillCache
	cacheTTL time.Duration
	log      zerolog.Logger
}

func New(repo store.Repository, cat *catalog.Catalog, billCache cache.BillCache, cacheTTL time.Duration, logger zerolog.Logger) *Service {
	if cat == nil {
		cat = catalog.Default()
	}
	if billCache == nil {
		billCache = cache.NoopBillCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	return &Service{
		repo:     repo,
		catalog:  cat,
		cache:    billCache,
		cacheTTL: cacheTTL,
		log:      logger,
	}
}

func (s *Service) Catalog() []domain.CatalogEntry {
	return s.catalog.Entries()
}

// NewBillNumber hands out a pseudo-random 6-digit identifier. The number is
// not reserved; uniqueness is checked at save time and the caller
// regenerates on a duplicate.
func (s *Service) NewBillNumber() string {
	return billno.New()
}

// composeBill resolves draft lines against the catalog into a bill. Codes
// must exist and every quantity must be a positive integer; a zero quantity
// in a draft is an input error here, not the silent add-time no-op.
func (s *Service) composeBill(billNo string, customer domain.Customer, issuedAt time.Time, lines []domain.DraftLine) (*domain.Bill, error) {
	bill := domain.NewBill(billNo, customer, issuedAt)
	for _, line := range lines {
		entry, err := s.catalog.Lookup(line.Code)
		if err != nil {
			return nil, err
		}
		item, err := domain.NewLineItem(entry, line.Qty)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", entry.Code, err)
		}
		bill.AddLineItem(entry.Category, item)
	}
	return bill, nil
}

// Quote computes totals for a draft without persisting anything.
func (s *Service) Quote(req domain.QuoteRequest) (domain.QuoteResponse, error) {
	bill, err := s.composeBill("", domain.Customer{}, time.Time{}, req.Items)
	if err != nil {
		return domain.QuoteResponse{}, err
	}

	return domain.QuoteResponse{
		Lines:            bill.Lines(),
		TotalsByCategory: bill.TotalsByCategory(),
		TaxesByCategory:  bill.TaxesByCategory(),
		Subtotal:         bill.Subtotal(),
		TotalTax:         bill.TotalTax(),
		GrandTotal:       bill.GrandTotal(),
	}, nil
}

// SaveBill validates the request, stamps the issue time, and inserts the
// finalized record. Validation runs before any durable mutation; the insert
// itself is atomic, so a bill is stored as one record or not at all.
func (s *Service) SaveBill(ctx context.Context, req domain.SaveBillRequest) (domain.SaveBillResponse, error) {
	billNo := strings.TrimSpace(req.BillNo)
	name := strings.TrimSpace(req.CustomerName)
	phone := strings.TrimSpace(req.CustomerPhone)

	if billNo == "" {
		return domain.SaveBillResponse{}, fmt.Errorf("%w: bill number is required", ErrValidation)
	}
	if name == "" {
		return domain.SaveBillResponse{}, fmt.Errorf("%w: customer name cannot be empty", ErrValidation)
	}
	if phone == "" {
		return domain.SaveBillResponse{}, fmt.Errorf("%w: customer phone cannot be empty", ErrValidation)
	}
	if len(req.Items) == 0 {
		return domain.SaveBillResponse{}, fmt.Errorf("%w: no items in the bill", ErrValidation)
	}

	customer := domain.Customer{Name: name, Phone: phone}
	bill, err := s.composeBill(billNo, customer, time.Now().UTC().Truncate(time.Second), req.Items)
	if err != nil {
		return domain.SaveBillResponse{}, err
	}
	if len(bill.Lines()) == 0 {
		return domain.SaveBillResponse{}, fmt.Errorf("%w: no items in the bill", ErrValidation)
	}

	rec, err := bill.ToRecord()
	if err != nil {
		return domain.SaveBillResponse{}, err
	}

	if err := s.repo.SaveBill(ctx, rec); err != nil {
		return domain.SaveBillResponse{}, err
	}

	if err := s.cache.Set(ctx, rec.BillNo, &rec, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("bill_no", rec.BillNo).Msg("bill cache set failed")
	}

	s.log.Info().
		Str("bill_no", rec.BillNo).
		Str("total", rec.Total.StringFixed(2)).
		Int("items", len(bill.Lines())).
		Msg("bill saved")

	return domain.SaveBillResponse{
		BillNo:     rec.BillNo,
		Date:       rec.Date,
		Subtotal:   rec.Subtotal,
		TotalTax:   rec.Tax,
		GrandTotal: rec.Total,
	}, nil
}

// GetBill looks a stored record up by exact bill number and decodes it back
// into a viewable bill. Lookups read through the cache; records are
// immutable so cached hits are always current.
func (s *Service) GetBill(ctx context.Context, billNo string) (domain.BillView, error) {
	billNo = strings.TrimSpace(billNo)
	if billNo == "" {
		return domain.BillView{}, fmt.Errorf("%w: bill number is required", ErrValidation)
	}

	rec, hit, err := s.cache.Get(ctx, billNo)
	if err != nil {
		s.log.Warn().Err(err).Str("bill_no", billNo).Msg("bill cache get failed")
		hit = false
	}
	if !hit {
		rec, err = s.repo.GetBill(ctx, billNo)
		if err != nil {
			return domain.BillView{}, err
		}
		if err := s.cache.Set(ctx, billNo, rec, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("bill_no", billNo).Msg("bill cache set failed")
		}
	}

	bill, err := domain.BillFromRecord(*rec)
	if err != nil {
		return domain.BillView{}, err
	}
	return bill.View(), nil
}

func (s *Service) ListRecentBills(ctx context.Context, limit int) ([]domain.BillSummary, error) {
	if limit < 1 {
		limit = store.DefaultHistoryLimit
	}
	return s.repo.ListRecentBills(ctx, limit)
}

// RenderInvoice produces the human-readable invoice document for a stored
// bill. The renderer consumes a read-only view and cannot alter totals.
func (s *Service) RenderInvoice(ctx context.Context, billNo string) (invoice.Document, error) {
	view, err := s.GetBill(ctx, billNo)
	if err != nil {
		return invoice.Document{}, err
	}
	return invoice.Render(view), nil
}
