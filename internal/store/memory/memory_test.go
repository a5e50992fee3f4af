package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/store"
)

func record(billNo, name, date, total string) domain.PersistedBillRecord {
	return domain.PersistedBillRecord{
		BillNo:       billNo,
		CustomerName: name,
		Phone:        "555-0100",
		Date:         date,
		Items:        `[]`,
		Subtotal:     decimal.RequireFromString(total),
		Tax:          decimal.Zero,
		Total:        decimal.RequireFromString(total),
	}
}

func TestSaveAndGetBill(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := record("100001", "Alice", "2024-03-15T10:30:00", "42.00")
	require.NoError(t, s.SaveBill(ctx, rec))

	got, err := s.GetBill(ctx, "100001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.CustomerName)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("42.00")))
}

func TestSaveBillRejectsDuplicateAndKeepsFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveBill(ctx, record("100001", "Alice", "2024-03-15T10:30:00", "42.00")))

	err := s.SaveBill(ctx, record("100001", "Mallory", "2024-03-16T09:00:00", "99.00"))
	require.ErrorIs(t, err, store.ErrDuplicateBillNumber)

	got, err := s.GetBill(ctx, "100001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.CustomerName, "duplicate save must not overwrite the stored record")
}

func TestSaveBillRejectsBlankNumber(t *testing.T) {
	s := New()

	err := s.SaveBill(context.Background(), record("  ", "Alice", "2024-03-15T10:30:00", "1.00"))
	require.ErrorIs(t, err, store.ErrInvalidBill)
}

func TestGetBillNotFound(t *testing.T) {
	s := New()

	_, err := s.GetBill(context.Background(), "999999")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetBillReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveBill(ctx, record("100001", "Alice", "2024-03-15T10:30:00", "42.00")))

	first, err := s.GetBill(ctx, "100001")
	require.NoError(t, err)
	first.CustomerName = "MUTATED"

	second, err := s.GetBill(ctx, "100001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", second.CustomerName)
}

// Listing follows insertion order, newest first, regardless of the dates
// stamped on the records.
func TestListRecentBillsInsertionOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveBill(ctx, record("100001", "Alice", "2024-03-15T10:30:00", "10.00")))
	// Backdated record saved second still lists first.
	require.NoError(t, s.SaveBill(ctx, record("100002", "Bob", "2020-01-01T00:00:00", "20.00")))
	require.NoError(t, s.SaveBill(ctx, record("100003", "Cara", "2024-03-16T08:00:00", "30.00")))

	summaries, err := s.ListRecentBills(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, "100003", summaries[0].BillNo)
	assert.Equal(t, "100002", summaries[1].BillNo)
	assert.Equal(t, "100001", summaries[2].BillNo)
}

func TestListRecentBillsLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		billNo := fmt.Sprintf("%06d", 100000+i)
		require.NoError(t, s.SaveBill(ctx, record(billNo, "Bulk", "2024-03-15T10:30:00", "1.00")))
	}

	summaries, err := s.ListRecentBills(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, summaries, 5)
	assert.Equal(t, "100059", summaries[0].BillNo)

	// A non-positive limit falls back to the default history window.
	summaries, err = s.ListRecentBills(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, store.DefaultHistoryLimit)
}

func TestSeededUsers(t *testing.T) {
	s := NewSeeded()

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	byName := map[string]domain.UserAccount{}
	for _, u := range users {
		byName[u.Username] = u
	}
	assert.Equal(t, "admin", byName["admin"].Role)
	assert.Equal(t, "cashier", byName["cashier"].Role)
	assert.True(t, byName["admin"].Active)
}

func TestUpdateUserPassword(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	require.NoError(t, s.UpdateUserPassword(ctx, "admin", "$2a$10$newhash"))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	for _, u := range users {
		if u.Username == "admin" {
			assert.Equal(t, "$2a$10$newhash", u.Password)
		}
	}

	require.ErrorIs(t, s.UpdateUserPassword(ctx, "ghost", "x"), store.ErrNotFound)
}
