// Package storage defines the usage ledger: an append-only log of usage
// events from which quota counts are always recomputed. Entries are never
// mutated and no counter column exists, so the in-window count is always
// reconstructable from history.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist.
var ErrNotFound = errors.New("storage: entry not found")

// Entry is one usage ledger row. Rows are append-only; retention/expiry is
// an external collaborator's concern.
type Entry struct {
	// ID is a caller-assigned unique id (uuid).
	ID string `json:"id"`

	// IdentityKey is the hashed anonymous fingerprint or account key.
	IdentityKey string `json:"identity_key"`

	// Type labels the usage event (e.g. "diagram_turn").
	Type string `json:"type"`

	// Success marks whether the turn completed. Only successful entries
	// count against quota.
	Success bool `json:"success"`

	// Metadata is free-form caller-supplied context.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Stats is the per-identity usage breakdown for the quota query endpoint.
type Stats struct {
	Today     int `json:"today"`
	ThisMonth int `json:"thisMonth"`
	Total     int `json:"total"`
}

// Ledger is the interface for persisting and counting usage entries.
type Ledger interface {
	// Append stores an entry unconditionally.
	Append(ctx context.Context, entry *Entry) error

	// CountSuccessful returns the number of successful entries for the
	// identity whose timestamp is at or after since.
	CountSuccessful(ctx context.Context, identityKey string, since time.Time) (int, error)

	// AppendIfUnder atomically counts the identity's successful entries
	// since the window start and inserts the entry only when the count is
	// below limit. Returns whether the insert happened. The check and the
	// insert are a single serialized unit per ledger, so two concurrent
	// turns can never both claim the last slot.
	AppendIfUnder(ctx context.Context, entry *Entry, since time.Time, limit int) (bool, error)

	// StatsFor returns the identity's successful-usage breakdown relative
	// to now (UTC day, UTC calendar month, all time).
	StatsFor(ctx context.Context, identityKey string, now time.Time) (*Stats, error)

	// Close closes the ledger and releases any resources.
	Close() error
}
