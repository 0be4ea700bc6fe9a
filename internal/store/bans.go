package store

import (
	"context"
	"fmt"

	"github.com/scriptguard/pkg/models"
)

// IsBanned reports whether a hardware identifier is on the ban list.
// Pure lookup, no side effects.
func (s *Storage) IsBanned(ctx context.Context, hwid string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM hwid_bans WHERE hwid = $1)`, hwid,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check hwid ban: %w", err)
	}
	return exists, nil
}

// Ban adds a hardware identifier to the ban list. Banning an
// already-banned hwid is a no-op success that returns the existing row;
// the conflict arm writes the hwid back to itself so RETURNING yields
// the row in the same statement.
func (s *Storage) Ban(ctx context.Context, hwid, reason string) (*models.HwidBan, error) {
	var ban models.HwidBan
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO hwid_bans (hwid, reason)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (hwid) DO UPDATE SET hwid = EXCLUDED.hwid
		RETURNING id, hwid, reason, banned_at`,
		hwid, reason,
	).Scan(&ban.ID, &ban.Hwid, &ban.Reason, &ban.BannedAt)
	if err != nil {
		return nil, fmt.Errorf("create hwid ban: %w", err)
	}
	return &ban, nil
}

// Unban removes a hardware identifier from the ban list. Removing an
// absent hwid is a no-op success.
func (s *Storage) Unban(ctx context.Context, hwid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hwid_bans WHERE hwid = $1`, hwid); err != nil {
		return fmt.Errorf("delete hwid ban: %w", err)
	}
	return nil
}

// DeleteBan removes a ban row by id (admin panel path).
func (s *Storage) DeleteBan(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hwid_bans WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete hwid ban: %w", err)
	}
	return nil
}

// ListBans returns all bans, most recent first.
func (s *Storage) ListBans(ctx context.Context) ([]models.HwidBan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hwid, reason, banned_at FROM hwid_bans ORDER BY banned_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list hwid bans: %w", err)
	}
	defer rows.Close()

	var bans []models.HwidBan
	for rows.Next() {
		var b models.HwidBan
		if err := rows.Scan(&b.ID, &b.Hwid, &b.Reason, &b.BannedAt); err != nil {
			return nil, fmt.Errorf("scan hwid ban: %w", err)
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}
