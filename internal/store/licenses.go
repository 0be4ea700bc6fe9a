package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scriptguard/pkg/models"
)

const licenseColumns = `id, key, product_id, status, bound_hwid, last_used_at, client_ip, created_at`

func scanLicense(row *sql.Row) (*models.License, error) {
	var l models.License
	err := row.Scan(&l.ID, &l.Key, &l.ProductID, &l.Status, &l.BoundHwid, &l.LastUsedAt, &l.ClientIP, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan license: %w", err)
	}
	return &l, nil
}

// GetLicenseByKey returns the license for an exact key match, or nil if
// no such key exists. No normalization is applied.
func (s *Storage) GetLicenseByKey(ctx context.Context, key string) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE key = $1`, key)
	return scanLicense(row)
}

// GetLicense returns a license by id, or nil if absent.
func (s *Storage) GetLicense(ctx context.Context, id int64) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE id = $1`, id)
	return scanLicense(row)
}

// ListLicenses returns all licenses, newest first.
func (s *Storage) ListLicenses(ctx context.Context) ([]models.License, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []models.License
	for rows.Next() {
		var l models.License
		if err := rows.Scan(&l.ID, &l.Key, &l.ProductID, &l.Status, &l.BoundHwid, &l.LastUsedAt, &l.ClientIP, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}

// CreateLicense inserts a new license. When key is blank a random one is
// generated.
func (s *Storage) CreateLicense(ctx context.Context, key string, productID int64, status string) (*models.License, error) {
	if strings.TrimSpace(key) == "" {
		key = "SG-" + strings.ToUpper(uuid.NewString())
	}
	if status == "" {
		status = models.LicenseStatusActive
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO licenses (key, product_id, status)
		VALUES ($1, $2, $3)
		RETURNING `+licenseColumns,
		key, productID, status,
	)
	lic, err := scanLicense(row)
	if err != nil {
		return nil, fmt.Errorf("create license: %w", err)
	}
	return lic, nil
}

// DeleteLicense removes a license by id.
func (s *Storage) DeleteLicense(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM licenses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return nil
}

// UpdateLicenseStatus sets the license lifecycle status.
func (s *Storage) UpdateLicenseStatus(ctx context.Context, id int64, status string) (*models.License, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE licenses SET status = $2 WHERE id = $1
		RETURNING `+licenseColumns,
		id, status,
	)
	lic, err := scanLicense(row)
	if err != nil {
		return nil, fmt.Errorf("update license status: %w", err)
	}
	if lic == nil {
		return nil, ErrNotFound
	}
	return lic, nil
}

// BindHwid attempts the first-use device binding. The update is
// conditional on bound_hwid still being NULL, so two devices racing to
// bind the same key are linearized by the database: exactly one wins.
// Returns true when this call performed the bind.
func (s *Storage) BindHwid(ctx context.Context, id int64, hwid, ip string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE licenses
		SET bound_hwid = $2, last_used_at = $3, client_ip = $4
		WHERE id = $1 AND bound_hwid IS NULL`,
		id, hwid, now, ip,
	)
	if err != nil {
		return false, fmt.Errorf("bind hwid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bind hwid: %w", err)
	}
	if n > 0 {
		log.Debug().Int64("license_id", id).Str("hwid", hwid).Msg("license bound to hwid")
	}
	return n > 0, nil
}

// TouchLicense refreshes last_used_at and client_ip on a successful use
// of an already-bound license. It never changes the binding.
func (s *Storage) TouchLicense(ctx context.Context, id int64, ip string, now time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE licenses SET last_used_at = $2, client_ip = $3 WHERE id = $1`,
		id, now, ip,
	); err != nil {
		return fmt.Errorf("touch license: %w", err)
	}
	return nil
}

// ResetBinding clears the bound hwid so a new device can claim the
// license. Administrative path only.
func (s *Storage) ResetBinding(ctx context.Context, id int64) (*models.License, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE licenses SET bound_hwid = NULL WHERE id = $1
		RETURNING `+licenseColumns,
		id,
	)
	lic, err := scanLicense(row)
	if err != nil {
		return nil, fmt.Errorf("reset license binding: %w", err)
	}
	if lic == nil {
		return nil, ErrNotFound
	}
	log.Info().Int64("license_id", id).Msg("license hwid binding reset")
	return lic, nil
}
