package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	sqlite3 "modernc.org/sqlite"

	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/store"
)

// Store is the durable local repository backed by a SQLite file. It is the
// default persistence for single-terminal deployments; the bills table is
// one row per finalized bill with the line items as an opaque JSON blob.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	bill_no TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	phone TEXT NOT NULL,
	date TEXT NOT NULL,
	items TEXT NOT NULL,
	subtotal TEXT NOT NULL,
	tax TEXT NOT NULL,
	total TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL
);
`

func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// The sqlite driver serializes writes anyway; one connection avoids
	// table-locked errors under interleaved reads and writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return s.seedUsersIfEmpty(ctx)
}

// seedUsersIfEmpty installs the default admin/cashier accounts on first
// start, with passwords taken from SEED_ADMIN_PASSWORD and
// SEED_CASHIER_PASSWORD when set.
func (s *Store) seedUsersIfEmpty(ctx context.Context) error {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, u := range []struct {
		username string
		envKey   string
		fallback string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", "admin123", "admin"},
		{"cashier", "SEED_CASHIER_PASSWORD", "cashier123", "cashier"},
	} {
		password := os.Getenv(u.envKey)
		if password == "" {
			password = u.fallback
			log.Printf("[sqlite-store] WARNING: seeding %s with default dev password. Set %s to override.", u.username, u.envKey)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (username, password, role, active, created_at)
			VALUES (?, ?, ?, 1, ?)
		`, u.username, string(hash), u.role, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveBill(ctx context.Context, rec domain.PersistedBillRecord) error {
	if strings.TrimSpace(rec.BillNo) == "" {
		return store.ErrInvalidBill
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (bill_no, customer_name, phone, date, items, subtotal, tax, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.BillNo, rec.CustomerName, rec.Phone, rec.Date, rec.Items,
		rec.Subtotal.StringFixed(2), rec.Tax.StringFixed(2), rec.Total.StringFixed(2))
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateBillNumber
		}
		return err
	}
	return nil
}

func (s *Store) GetBill(ctx context.Context, billNo string) (*domain.PersistedBillRecord, error) {
	var rec domain.PersistedBillRecord
	err := s.db.GetContext(ctx, &rec, `
		SELECT bill_no, customer_name, phone, date, items, subtotal, tax, total
		FROM bills
		WHERE bill_no = ?
	`, billNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListRecentBills(ctx context.Context, limit int) ([]domain.BillSummary, error) {
	if limit < 1 {
		limit = store.DefaultHistoryLimit
	}

	summaries := make([]domain.BillSummary, 0, limit)
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT bill_no, customer_name, date, total
		FROM bills
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 4)
	for rows.Next() {
		var user domain.UserAccount
		var active int
		var createdAt string
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &active, &createdAt); err != nil {
			return nil, err
		}
		user.Active = active != 0
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil {
			user.CreatedAt = ts
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = ? WHERE username = ?
	`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique or primary-key
// constraint failure (result codes 2067 and 1555).
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code() == 2067 || serr.Code() == 1555
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
