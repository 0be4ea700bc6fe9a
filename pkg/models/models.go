package models

import (
	"time"
)

// License status values
const (
	LicenseStatusActive    = "active"
	LicenseStatusSuspended = "suspended"
	LicenseStatusRevoked   = "revoked"
)

// Execution log status values
const (
	LogStatusSuccess    = "success"
	LogStatusFailed     = "failed"
	LogStatusInvalidKey = "invalid_key"
	LogStatusBannedHwid = "banned_hwid"
)

// Account tiers
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Account represents an admin-panel user. Loader clients never have
// accounts; they authenticate with a license key only.
type Account struct {
	ID           int64     `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose password hash in JSON
	Tier         string    `json:"tier" db:"tier"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Product is a distributable script product. Each product owns at most
// one Script row.
type Product struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Version     string    `json:"version" db:"version"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// License binds a distribution key to a product and, after first use, to
// a single hardware identifier. BoundHwid is nil until the first
// successful authentication and is cleared only by an administrative
// reset.
type License struct {
	ID         int64      `json:"id" db:"id"`
	Key        string     `json:"key" db:"key"`
	ProductID  int64      `json:"product_id" db:"product_id"`
	Status     string     `json:"status" db:"status"`
	BoundHwid  *string    `json:"bound_hwid,omitempty" db:"bound_hwid"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	ClientIP   *string    `json:"client_ip,omitempty" db:"client_ip"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsActive reports whether the license may authenticate at all.
func (l *License) IsActive() bool { return l.Status == LicenseStatusActive }

// HwidBan blocks a hardware identifier from authenticating regardless of
// license validity.
type HwidBan struct {
	ID       int64     `json:"id" db:"id"`
	Hwid     string    `json:"hwid" db:"hwid"`
	Reason   *string   `json:"reason,omitempty" db:"reason"`
	BannedAt time.Time `json:"banned_at" db:"banned_at"`
}

// Script is the deliverable content of a product. At most one per
// product; saves are upserts keyed by ProductID.
type Script struct {
	ID           int64     `json:"id" db:"id"`
	ProductID    int64     `json:"product_id" db:"product_id"`
	Content      string    `json:"content" db:"content"`
	IsObfuscated bool      `json:"is_obfuscated" db:"is_obfuscated"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ExecutionLog is one append-only audit row per authentication attempt.
type ExecutionLog struct {
	ID         int64     `json:"id" db:"id"`
	Status     string    `json:"status" db:"status"`
	LicenseID  *int64    `json:"license_id,omitempty" db:"license_id"`
	Hwid       string    `json:"hwid" db:"hwid"`
	IPAddress  string    `json:"ip_address" db:"ip_address"`
	Details    string    `json:"details" db:"details"`
	ExecutedAt time.Time `json:"executed_at" db:"executed_at"`
}

// Invite is a one-time code that upgrades the redeeming account's tier.
type Invite struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Tier      string    `json:"tier" db:"tier"`
	IsUsed    bool      `json:"is_used" db:"is_used"`
	UsedBy    *int64    `json:"used_by,omitempty" db:"used_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// QuotaRecord counts premium transform usage per account and calendar
// month. At most one row per (AccountID, Period).
type QuotaRecord struct {
	AccountID int64  `json:"account_id" db:"account_id"`
	Period    string `json:"period" db:"period"` // "2006-01" month token
	Count     int    `json:"count" db:"count"`
}
