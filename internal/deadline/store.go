package deadline

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an alert ID does not exist.
var ErrNotFound = errors.New("alert not found")

// ErrAlreadyResolved is returned when resolving an alert a second time.
var ErrAlreadyResolved = errors.New("alert already resolved")

// ErrDuplicateAlert is returned when a create would leave two unresolved
// alerts on the same (kind, ref_type, ref_id) key.
var ErrDuplicateAlert = errors.New("unresolved alert already exists for key")

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	Kind     *Kind
	Severity *Severity
	Resolved *bool
}

// SeverityCounts is the fixed-shape unresolved-alert aggregate.
type SeverityCounts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Store is the persistence interface for alerts. The Reconciler is the only
// writer of Create and Update; Resolve and ResolveAll are operator actions.
// Implementations must enforce at most one unresolved alert per
// (kind, ref_type, ref_id) so the invariant holds even under concurrent
// passes.
type Store interface {
	// FindUnresolved returns the unresolved alert for the dedup key, if any.
	FindUnresolved(ctx context.Context, kind Kind, refType RefType, refID string) (*Alert, bool, error)

	// Create inserts a new alert.
	Create(ctx context.Context, a *Alert) error

	// Update rewrites severity, message, deadline and the notified flag of
	// an existing alert by ID. Returns ErrNotFound for an unknown ID.
	Update(ctx context.Context, a *Alert) error

	// List returns alerts matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Alert, error)

	// CountUnresolved aggregates unresolved alerts by severity in one pass.
	CountUnresolved(ctx context.Context) (SeverityCounts, error)

	// Resolve marks one alert resolved. ErrNotFound for an unknown ID,
	// ErrAlreadyResolved if it was resolved before.
	Resolve(ctx context.Context, id string) error

	// ResolveAll marks every unresolved alert resolved and returns how many
	// it touched. Zero matches is a valid outcome, not an error.
	ResolveAll(ctx context.Context) (int, error)
}
