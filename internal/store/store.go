// Package store implements the persistence and lifecycle core of the
// authorization server: registered clients, pending authorization requests,
// single-use access grants and long-lived access tokens.
//
// All concurrency correctness lives in the backing database, never in
// in-process locks, because multiple server instances may share one store.
// State transitions are single conditional UPDATE statements whose predicate
// is evaluated atomically with the write; grant redemption additionally
// re-reads the row to verify it won the race.
package store

import (
	"time"

	"gorm.io/gorm"

	"oauth2-server/internal/model"
)

// Store gives the four entity collections a home on one database handle.
// It is constructed once at process startup and shared by reference.
type Store struct {
	db *gorm.DB

	// GrantTTL overrides DefaultGrantTTL for authorization codes minted by
	// GrantAuthRequest. Zero means the default.
	GrantTTL time.Duration
}

// New wraps a connected database handle. An unset handle is a fatal
// configuration error, reported at first use rather than per operation.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, ErrStoreUnavailable
	}
	return &Store{db: db}, nil
}

// Migrate creates or updates the schema for the four entity tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&model.Client{},
		&model.AuthRequest{},
		&model.AccessGrant{},
		&model.AccessToken{},
	)
}

// DB exposes the underlying handle for health checks and tooling.
func (s *Store) DB() *gorm.DB {
	return s.db
}
