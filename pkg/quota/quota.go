// Package quota is the stateless usage-admission policy evaluator. It maps a
// caller identity class to a quota policy and decides, given the in-window
// usage count, whether a conversational turn may proceed. It holds no state
// of its own; usage counts come from the storage ledger.
package quota

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Class is the caller identity class.
type Class string

const (
	// ClassAnonymous is an unauthenticated caller keyed by a hashed
	// browser fingerprint.
	ClassAnonymous Class = "anonymous"

	// ClassFree is an authenticated caller with no active paid entitlement.
	ClassFree Class = "free"

	// ClassSubscriber is an authenticated caller with an active monthly
	// paid entitlement.
	ClassSubscriber Class = "subscriber"
)

// WindowKind is the time bucket a quota is counted over.
type WindowKind string

const (
	// WindowEver never resets. In practice it is bounded by the retention
	// horizon on ledger rows, making it an effective monthly reset as old
	// rows expire.
	WindowEver WindowKind = "ever"

	// WindowMonth resets at the first instant of each calendar month, UTC.
	WindowMonth WindowKind = "calendar-month"
)

// Policy is the quota applied to one identity class. Policies are selected
// at evaluation time, never stored.
type Policy struct {
	WindowKind WindowKind
	Limit      int
}

// PolicyFor returns the quota policy for an identity class.
func PolicyFor(class Class) Policy {
	switch class {
	case ClassSubscriber:
		return Policy{WindowKind: WindowMonth, Limit: 500}
	case ClassFree:
		return Policy{WindowKind: WindowMonth, Limit: 5}
	default:
		return Policy{WindowKind: WindowEver, Limit: 1}
	}
}

// Identity is a caller identity: a stable ledger key plus its class.
type Identity struct {
	Key   string
	Class Class
}

// AnonymousIdentity derives an anonymous identity from fingerprint parts
// (e.g. client IP and user agent). The parts are hashed so the ledger never
// stores raw caller attributes.
func AnonymousIdentity(parts ...string) Identity {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return Identity{
		Key:   "anon:" + hex.EncodeToString(sum[:]),
		Class: ClassAnonymous,
	}
}

// AccountIdentity builds an identity for an authenticated account.
func AccountIdentity(accountID string, subscriber bool) Identity {
	class := ClassFree
	if subscriber {
		class = ClassSubscriber
	}
	return Identity{Key: "acct:" + accountID, Class: class}
}

// Decision is the admission outcome for one evaluation instant.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Remaining int        `json:"remaining"`
	Limit     int        `json:"limit"`
	ResetsAt  *time.Time `json:"resets_at,omitempty"`
}

// WindowStart returns the first instant of the current window in UTC.
// The zero time is returned for WindowEver, so ledger counts span all rows.
func WindowStart(kind WindowKind, now time.Time) time.Time {
	if kind != WindowMonth {
		return time.Time{}
	}
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// WindowResetsAt returns the instant the current window rolls over, or nil
// for windows that never reset.
func WindowResetsAt(kind WindowKind, now time.Time) *time.Time {
	if kind != WindowMonth {
		return nil
	}
	next := WindowStart(kind, now).AddDate(0, 1, 0)
	return &next
}

// Evaluate applies a policy to the in-window usage count.
// remaining = max(0, limit - used); allowed = remaining > 0.
func Evaluate(policy Policy, used int, now time.Time) Decision {
	remaining := policy.Limit - used
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   remaining > 0,
		Remaining: remaining,
		Limit:     policy.Limit,
		ResetsAt:  WindowResetsAt(policy.WindowKind, now),
	}
}
