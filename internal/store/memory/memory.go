package memory

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/store"
)

// Store is the in-memory repository used for dev mode and tests. bills
// preserves insertion order so recent-history listing matches the durable
// stores' id-descending order.
type Store struct {
	mu              sync.RWMutex
	bills           []domain.PersistedBillRecord
	billsByNo       map[string]int
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		billsByNo:       make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded builds a store with the default dev/demo user accounts.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables; hardcoded dev defaults are used otherwise with a
// warning printed to stdout.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"cashier", cashierPwd, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) SaveBill(_ context.Context, rec domain.PersistedBillRecord) error {
	if strings.TrimSpace(rec.BillNo) == "" {
		return store.ErrInvalidBill
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.billsByNo[rec.BillNo]; exists {
		return store.ErrDuplicateBillNumber
	}
	s.bills = append(s.bills, rec)
	s.billsByNo[rec.BillNo] = len(s.bills) - 1
	return nil
}

func (s *Store) GetBill(_ context.Context, billNo string) (*domain.PersistedBillRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.billsByNo[billNo]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := s.bills[idx]
	return &rec, nil
}

func (s *Store) ListRecentBills(_ context.Context, limit int) ([]domain.BillSummary, error) {
	if limit < 1 {
		limit = store.DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.BillSummary, 0, limit)
	for i := len(s.bills) - 1; i >= 0 && len(summaries) < limit; i-- {
		rec := s.bills[i]
		summaries = append(summaries, domain.BillSummary{
			BillNo:       rec.BillNo,
			CustomerName: rec.CustomerName,
			Date:         rec.Date,
			Total:        rec.Total,
		})
	}
	return summaries, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}
