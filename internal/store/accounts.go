package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scriptguard/pkg/models"
)

const accountColumns = `id, email, password_hash, tier, is_admin, created_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Tier, &a.IsAdmin, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// GetAccount returns an account by id, or nil if absent.
func (s *Storage) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetAccountByEmail returns an account by email, or nil if absent.
func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// CreateAccount inserts a new admin-panel account.
func (s *Storage) CreateAccount(ctx context.Context, email, passwordHash, tier string, isAdmin bool) (*models.Account, error) {
	if tier == "" {
		tier = models.TierFree
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, password_hash, tier, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		email, passwordHash, tier, isAdmin,
	)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acct, nil
}

// SetAccountTier updates the entitlement tier of an account.
func (s *Storage) SetAccountTier(ctx context.Context, id int64, tier string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET tier = $2 WHERE id = $1`, id, tier)
	if err != nil {
		return fmt.Errorf("set account tier: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
