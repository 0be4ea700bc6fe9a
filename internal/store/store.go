package store

import (
	"database/sql"
	"errors"
)

// Sentinel errors surfaced to services and handlers.
var (
	ErrNotFound      = errors.New("store: not found")
	ErrInviteInvalid = errors.New("store: invalid or used invite code")
)

// Storage provides DB operations for every ScriptGuard entity. All state
// lives in the database; no rows are cached across requests.
type Storage struct {
	db *sql.DB
}

func NewStorage(db *sql.DB) *Storage { return &Storage{db: db} }
