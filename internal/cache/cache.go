package cache

import (
	"context"
	"time"

	"notakasir/backend/internal/domain"
)

// BillCache is a read-through cache for stored bill records. Saved bills
// are immutable, so a cached entry can never go stale; the TTL only bounds
// memory in the cache backend.
type BillCache interface {
	Get(ctx context.Context, billNo string) (*domain.PersistedBillRecord, bool, error)
	Set(ctx context.Context, billNo string, rec *domain.PersistedBillRecord, ttl time.Duration) error
}

type NoopBillCache struct{}

func (NoopBillCache) Get(_ context.Context, _ string) (*domain.PersistedBillRecord, bool, error) {
	return nil, false, nil
}

func (NoopBillCache) Set(_ context.Context, _ string, _ *domain.PersistedBillRecord, _ time.Duration) error {
	return nil
}
