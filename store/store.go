package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/pharmacheck/pricewatch/idgen"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Per-table ID generators.
var (
	newUserID       = idgen.Prefixed("usr_", idgen.Default)
	newMedicationID = idgen.Prefixed("med_", idgen.Default)
	newPharmacyID   = idgen.Prefixed("ph_", idgen.Default)
	newPriceID      = idgen.Prefixed("pr_", idgen.Default)
	newRunID        = idgen.Prefixed("run_", idgen.Default)
	newAlertID      = idgen.Prefixed("al_", idgen.Default)
)

// Store wraps the pricewatch database.
type Store struct {
	db *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for callers that need raw access
// (health checks, migrations driven from the binary).
func (s *Store) DB() *sql.DB { return s.db }

func nowMilli() int64 {
	return time.Now().UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
