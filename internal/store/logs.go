package store

import (
	"context"
	"fmt"

	"github.com/scriptguard/pkg/models"
)

// AppendLog writes one audit row for a terminal authentication outcome.
// Rows are never updated or deleted by the request path; retention is
// handled by the background pruning job.
func (s *Storage) AppendLog(ctx context.Context, entry *models.ExecutionLog) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO execution_logs (status, license_id, hwid, ip_address, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, executed_at`,
		entry.Status, entry.LicenseID, entry.Hwid, entry.IPAddress, entry.Details,
	).Scan(&entry.ID, &entry.ExecutedAt)
	if err != nil {
		return fmt.Errorf("append execution log: %w", err)
	}
	return nil
}

// ListLogs returns the most recent audit rows, newest first.
func (s *Storage) ListLogs(ctx context.Context, limit int) ([]models.ExecutionLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, license_id, hwid, ip_address, details, executed_at
		FROM execution_logs
		ORDER BY executed_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var logs []models.ExecutionLog
	for rows.Next() {
		var l models.ExecutionLog
		if err := rows.Scan(&l.ID, &l.Status, &l.LicenseID, &l.Hwid, &l.IPAddress, &l.Details, &l.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan execution log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
