// Package inmemory provides an in-memory usage ledger, used by tests and by
// deployments that run without a SQLite path configured.
package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowcanvas/flowcanvas/pkg/storage"
)

// Driver implements storage.Ledger with a mutex-guarded slice.
type Driver struct {
	// mu guards entries; AppendIfUnder holds it across count and insert so
	// the conditional insert is atomic per ledger.
	mu      sync.Mutex
	entries []storage.Entry
}

// NewDriver creates an empty in-memory ledger.
func NewDriver() *Driver {
	return &Driver{}
}

// Append stores an entry unconditionally.
func (d *Driver) Append(_ context.Context, entry *storage.Entry) error {
	if entry == nil {
		return errors.New("cannot store nil entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, *entry)
	return nil
}

// CountSuccessful counts successful entries for the identity since the
// given instant.
func (d *Driver) CountSuccessful(_ context.Context, identityKey string, since time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.countLocked(identityKey, since), nil
}

// AppendIfUnder counts and conditionally inserts under one lock hold.
func (d *Driver) AppendIfUnder(_ context.Context, entry *storage.Entry, since time.Time, limit int) (bool, error) {
	if entry == nil {
		return false, errors.New("cannot store nil entry")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.countLocked(entry.IdentityKey, since) >= limit {
		return false, nil
	}
	d.entries = append(d.entries, *entry)
	return true, nil
}

// StatsFor returns the today/this-month/total successful counts.
func (d *Driver) StatsFor(_ context.Context, identityKey string, now time.Time) (*storage.Stats, error) {
	now = now.UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	d.mu.Lock()
	defer d.mu.Unlock()

	stats := &storage.Stats{}
	for _, entry := range d.entries {
		if entry.IdentityKey != identityKey || !entry.Success {
			continue
		}
		stats.Total++
		if !entry.CreatedAt.UTC().Before(monthStart) {
			stats.ThisMonth++
		}
		if !entry.CreatedAt.UTC().Before(dayStart) {
			stats.Today++
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory ledger.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) countLocked(identityKey string, since time.Time) int {
	count := 0
	for _, entry := range d.entries {
		if entry.IdentityKey != identityKey || !entry.Success {
			continue
		}
		if entry.CreatedAt.UTC().Before(since.UTC()) {
			continue
		}
		count++
	}
	return count
}
