package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/crypto/bcrypt"

	"notakasir/backend/internal/domain"
	"notakasir/backend/internal/store"
)

// Store is the repository for server deployments where several terminals
// share one billing database. The unique index on bill_no is what makes
// SaveBill an atomic insert-with-uniqueness-check.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	id BIGSERIAL PRIMARY KEY,
	bill_no TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	phone TEXT NOT NULL,
	date TEXT NOT NULL,
	items TEXT NOT NULL,
	subtotal NUMERIC(12,2) NOT NULL,
	tax NUMERIC(12,2) NOT NULL,
	total NUMERIC(12,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	password TEXT NOT NULL,
	role TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

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

func (s *Store) seedUsersIfEmpty(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

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
			log.Printf("[postgres-store] WARNING: seeding %s with default dev password. Set %s to override.", u.username, u.envKey)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO users (username, password, role, active, created_at)
			VALUES ($1, $2, $3, true, now())
		`, u.username, string(hash), u.role)
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, rec.BillNo, rec.CustomerName, rec.Phone, rec.Date, rec.Items,
		rec.Subtotal, rec.Tax, rec.Total)
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
	err := s.db.QueryRowContext(ctx, `
		SELECT bill_no, customer_name, phone, date, items, subtotal, tax, total
		FROM bills
		WHERE bill_no = $1
	`, billNo).Scan(&rec.BillNo, &rec.CustomerName, &rec.Phone, &rec.Date, &rec.Items,
		&rec.Subtotal, &rec.Tax, &rec.Total)
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT bill_no, customer_name, date, total
		FROM bills
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]domain.BillSummary, 0, limit)
	for rows.Next() {
		var summary domain.BillSummary
		if err := rows.Scan(&summary.BillNo, &summary.CustomerName, &summary.Date, &summary.Total); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
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
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
