package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scriptguard/pkg/models"
)

// GetScriptByProductID returns the script owned by a product, or nil if
// the product has no script yet.
func (s *Storage) GetScriptByProductID(ctx context.Context, productID int64) (*models.Script, error) {
	var sc models.Script
	err := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, content, is_obfuscated, updated_at
		FROM scripts WHERE product_id = $1`,
		productID,
	).Scan(&sc.ID, &sc.ProductID, &sc.Content, &sc.IsObfuscated, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}
	return &sc, nil
}

const upsertScriptQuery = `
	INSERT INTO scripts (product_id, content, is_obfuscated)
	VALUES ($1, $2, $3)
	ON CONFLICT (product_id) DO UPDATE SET
		content = EXCLUDED.content,
		is_obfuscated = EXCLUDED.is_obfuscated,
		updated_at = now()
	RETURNING id, product_id, content, is_obfuscated, updated_at`

// UpsertScript creates or replaces the single script of a product.
func (s *Storage) UpsertScript(ctx context.Context, productID int64, content string, isObfuscated bool) (*models.Script, error) {
	var sc models.Script
	err := s.db.QueryRowContext(ctx, upsertScriptQuery, productID, content, isObfuscated).
		Scan(&sc.ID, &sc.ProductID, &sc.Content, &sc.IsObfuscated, &sc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert script: %w", err)
	}
	return &sc, nil
}

// SaveObfuscatedScript consumes one unit of the account's monthly quota
// and upserts the script, as one transaction. The conditional increment
// is a single statement so concurrent saves for the same (account,
// period) cannot over-admit: with limit L, at most L calls ever return
// ok=true within one period. A failed upsert rolls the increment back,
// so the ledger only ever counts transforms that were applied. Returns
// ok=false with no state change when the account is at its limit.
func (s *Storage) SaveObfuscatedScript(ctx context.Context, accountID int64, period string, limit int, productID int64, content string) (*models.Script, bool, error) {
	if limit <= 0 {
		return nil, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin quota tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO quota_records (account_id, period, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (account_id, period) DO UPDATE
			SET count = quota_records.count + 1
			WHERE quota_records.count < $3`,
		accountID, period, limit,
	)
	if err != nil {
		return nil, false, fmt.Errorf("increment quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("increment quota: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	var sc models.Script
	err = tx.QueryRowContext(ctx, upsertScriptQuery, productID, content, true).
		Scan(&sc.ID, &sc.ProductID, &sc.Content, &sc.IsObfuscated, &sc.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("upsert script: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit quota tx: %w", err)
	}
	return &sc, true, nil
}
