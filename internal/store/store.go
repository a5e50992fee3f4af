package store

import (
	"context"
	"errors"

	"notakasir/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("bill not found")
	ErrDuplicateBillNumber = errors.New("duplicate bill number")
	ErrInvalidBill         = errors.New("invalid bill record")
)

// DefaultHistoryLimit bounds ListRecentBills when the caller passes no limit.
const DefaultHistoryLimit = 50

// Repository is durable keyed storage for finalized bills plus the user
// accounts the auth layer bootstraps from.
//
// SaveBill is create-only: bill numbers model immutable invoice identifiers,
// so a key collision is ErrDuplicateBillNumber, never an upsert. Any other
// storage failure is returned as-is. ListRecentBills orders by insertion,
// newest first, regardless of each record's issued date.
type Repository interface {
	SaveBill(ctx context.Context, rec domain.PersistedBillRecord) error
	GetBill(ctx context.Context, billNo string) (*domain.PersistedBillRecord, error)
	ListRecentBills(ctx context.Context, limit int) ([]domain.BillSummary, error)

	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
