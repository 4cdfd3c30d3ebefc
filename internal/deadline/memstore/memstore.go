// Package memstore provides in-memory implementations of deadline.Store and
// deadline.Source. Suitable for dev/testing.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/linnemanlabs/plazos/internal/claim"
	"github.com/linnemanlabs/plazos/internal/deadline"
	"github.com/linnemanlabs/plazos/internal/policy"
)

type dedupKey struct {
	kind    deadline.Kind
	refType deadline.RefType
	refID   string
}

// Store holds alerts, claims and coverages in memory. All reads return
// copies.
type Store struct {
	mu         sync.RWMutex
	alerts     map[string]*deadline.Alert // alert ID -> alert
	unresolved map[dedupKey]string        // dedup key -> alert ID
	claims     map[string]*claim.Claim
	coverages  map[string]*policy.Coverage
}

// New initializes an empty in-memory Store.
func New() *Store {
	return &Store{
		alerts:     make(map[string]*deadline.Alert),
		unresolved: make(map[dedupKey]string),
		claims:     make(map[string]*claim.Claim),
		coverages:  make(map[string]*policy.Coverage),
	}
}

// FindUnresolved returns the unresolved alert for the dedup key. Returns a copy.
func (s *Store) FindUnresolved(_ context.Context, kind deadline.Kind, refType deadline.RefType, refID string) (*deadline.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.unresolved[dedupKey{kind, refType, refID}]
	if !ok {
		return nil, false, nil
	}
	cp := *s.alerts[id]
	return &cp, true, nil
}

// Create stores a copy of the alert, upholding the unresolved-uniqueness
// invariant the way the Postgres partial unique index does.
func (s *Store) Create(_ context.Context, a *deadline.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dedupKey{a.Kind, a.RefType, a.RefID}
	if !a.Resolved {
		if _, exists := s.unresolved[key]; exists {
			return deadline.ErrDuplicateAlert
		}
		s.unresolved[key] = a.ID
	}
	cp := *a
	s.alerts[a.ID] = &cp
	return nil
}

// Update rewrites the mutable fields of an existing alert.
func (s *Store) Update(_ context.Context, a *deadline.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.alerts[a.ID]
	if !ok {
		return deadline.ErrNotFound
	}
	cur.Severity = a.Severity
	cur.Message = a.Message
	cur.Deadline = a.Deadline
	cur.Notified = a.Notified
	cur.UpdatedAt = a.UpdatedAt
	return nil
}

// List returns alerts matching the filter, newest first.
func (s *Store) List(_ context.Context, f deadline.Filter) ([]*deadline.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*deadline.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if f.Kind != nil && a.Kind != *f.Kind {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if f.Resolved != nil && a.Resolved != *f.Resolved {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// CountUnresolved aggregates unresolved alerts by severity in one pass.
func (s *Store) CountUnresolved(_ context.Context) (deadline.SeverityCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c deadline.SeverityCounts
	for _, id := range s.unresolved {
		switch s.alerts[id].Severity {
		case deadline.SeverityCritical:
			c.Critical++
		case deadline.SeverityWarning:
			c.Warning++
		case deadline.SeverityInfo:
			c.Info++
		}
		c.Total++
	}
	return c, nil
}

// Resolve marks one alert resolved and frees its dedup key.
func (s *Store) Resolve(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return deadline.ErrNotFound
	}
	if a.Resolved {
		return deadline.ErrAlreadyResolved
	}
	now := time.Now()
	a.Resolved = true
	a.ResolvedAt = &now
	a.UpdatedAt = now
	delete(s.unresolved, dedupKey{a.Kind, a.RefType, a.RefID})
	return nil
}

// ResolveAll marks every unresolved alert resolved.
func (s *Store) ResolveAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	n := 0
	for key, id := range s.unresolved {
		a := s.alerts[id]
		a.Resolved = true
		ts := now
		a.ResolvedAt = &ts
		a.UpdatedAt = now
		delete(s.unresolved, key)
		n++
	}
	return n, nil
}

// PutClaim seeds or replaces a claim snapshot (dev mode and tests).
func (s *Store) PutClaim(c *claim.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.claims[c.ID] = &cp
}

// PutCoverage seeds or replaces a coverage snapshot (dev mode and tests).
func (s *Store) PutCoverage(cv *policy.Coverage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cv
	s.coverages[cv.ID] = &cp
}

// OpenClaims returns every claim not in a terminal state. Returns copies.
func (s *Store) OpenClaims(_ context.Context) ([]*claim.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*claim.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		if c.State.Terminal() {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OpenCoverages returns every OPEN coverage window. Returns copies.
func (s *Store) OpenCoverages(_ context.Context) ([]*policy.Coverage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*policy.Coverage, 0, len(s.coverages))
	for _, cv := range s.coverages {
		if cv.State != policy.WindowOpen {
			continue
		}
		cp := *cv
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
