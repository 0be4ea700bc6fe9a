package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are idempotent so EnsureSchema can run on every
// startup. Unique constraints back the store-level invariants: one
// license per key, one ban per hwid, one invite per code, one script per
// product, one quota row per (account, period).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		tier TEXT NOT NULL DEFAULT 'free',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		version TEXT NOT NULL DEFAULT '',
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS licenses (
		id BIGSERIAL PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'active',
		bound_hwid TEXT,
		last_used_at TIMESTAMPTZ,
		client_ip TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS hwid_bans (
		id BIGSERIAL PRIMARY KEY,
		hwid TEXT NOT NULL UNIQUE,
		reason TEXT,
		banned_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS scripts (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL UNIQUE REFERENCES products(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		is_obfuscated BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS execution_logs (
		id BIGSERIAL PRIMARY KEY,
		status TEXT NOT NULL,
		license_id BIGINT REFERENCES licenses(id) ON DELETE SET NULL,
		hwid TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS invites (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL,
		is_used BOOLEAN NOT NULL DEFAULT FALSE,
		used_by BIGINT REFERENCES accounts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS quota_records (
		account_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		period TEXT NOT NULL,
		count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, period)
	)`,
}

// EnsureSchema creates all tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
