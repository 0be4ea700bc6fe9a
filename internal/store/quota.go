package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// QuotaCount returns how many premium transforms an account has used in
// a period. Absent rows count as zero.
func (s *Storage) QuotaCount(ctx context.Context, accountID int64, period string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM quota_records WHERE account_id = $1 AND period = $2`,
		accountID, period,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get quota count: %w", err)
	}
	return count, nil
}

// The quota increment itself lives in SaveObfuscatedScript (scripts.go)
// so the counter and the transform it pays for commit together.
