// Package policy defines the bounded validity window of an insurance policy
// ("vigencia").
package policy

import (
	"fmt"
	"time"
)

// WindowState is the state of a coverage window.
type WindowState string

const (
	// WindowOpen means the policy is currently in force under this window.
	WindowOpen WindowState = "OPEN"

	// WindowClosed means the window was superseded by a renewal or expired.
	WindowClosed WindowState = "CLOSED"
)

// Coverage is one validity window of a policy. At most one OPEN window
// exists per policy at a time; the store enforces that opening a new window
// closes the previous one. Windows are never deleted.
type Coverage struct {
	ID           string      `json:"id"`
	PolicyNumber string      `json:"policy_number"`
	ValidFrom    time.Time   `json:"valid_from"`
	ValidUntil   time.Time   `json:"valid_until"`
	State        WindowState `json:"state"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Close marks the window as superseded. Closing an already-closed window is
// an error; renewals should open a new window instead.
func (c *Coverage) Close(at time.Time) error {
	if c.State == WindowClosed {
		return fmt.Errorf("coverage %s for policy %s is already closed", c.ID, c.PolicyNumber)
	}
	c.State = WindowClosed
	c.UpdatedAt = at
	return nil
}
