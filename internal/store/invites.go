package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scriptguard/pkg/models"
)

// CreateInvite mints a one-time upgrade code for a tier.
func (s *Storage) CreateInvite(ctx context.Context, tier string) (*models.Invite, error) {
	code := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]

	var inv models.Invite
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invites (code, tier)
		VALUES ($1, $2)
		RETURNING id, code, tier, is_used, used_by, created_at`,
		code, tier,
	).Scan(&inv.ID, &inv.Code, &inv.Tier, &inv.IsUsed, &inv.UsedBy, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	return &inv, nil
}

// RedeemInvite consumes a code and grants its tier to the account, as
// one transaction. The conditional update marks the invite used only if
// it was not already, so a code can succeed exactly once; missing and
// already-used codes fail with the same ErrInviteInvalid.
func (s *Storage) RedeemInvite(ctx context.Context, code string, accountID int64) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin redeem tx: %w", err)
	}
	defer tx.Rollback()

	var tier string
	err = tx.QueryRowContext(ctx, `
		UPDATE invites
		SET is_used = TRUE, used_by = $2
		WHERE code = $1 AND is_used = FALSE
		RETURNING tier`,
		code, accountID,
	).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInviteInvalid
	}
	if err != nil {
		return "", fmt.Errorf("redeem invite: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET tier = $2 WHERE id = $1`, accountID, tier,
	); err != nil {
		return "", fmt.Errorf("grant tier: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit redeem tx: %w", err)
	}

	log.Info().Int64("account_id", accountID).Str("tier", tier).Msg("invite redeemed")
	return tier, nil
}
