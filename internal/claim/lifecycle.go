package claim

import (
	"fmt"
	"time"
)

// StateError is returned when a lifecycle transition is rejected.
type StateError struct {
	From State
	To   State
	Msg  string
}

func (e *StateError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("claim state: %s -> %s: %s", e.From, e.To, e.Msg)
	}
	return fmt.Sprintf("claim state: transition %s -> %s not allowed", e.From, e.To)
}

// transitions holds the allowed lifecycle edges. RECEIVED -> LIQUIDATION is
// the send-to-insurer shortcut taken when validation happens at intake.
var transitions = map[State][]State{
	StateReceived:    {StateValidating, StateLiquidation, StateInvalid},
	StateValidating:  {StateLiquidation, StateInvalid},
	StateLiquidation: {StatePayment},
	StatePayment:     {StateClosed},
}

// CanTransition reports whether a claim may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeadlineTrackingActive reports whether deadline clocks still run for a
// claim in the given state. Terminal states never produce findings.
func DeadlineTrackingActive(s State) bool {
	return !s.Terminal()
}

// Transition applies a state change to the claim, stamping closure metadata
// on terminal states. A move out of a terminal state or along a missing edge
// is rejected with a *StateError before anything is mutated.
func (c *Claim) Transition(to State, at time.Time) error {
	if !to.Valid() {
		return &StateError{From: c.State, To: to, Msg: "unknown target state"}
	}
	if c.State.Terminal() {
		return &StateError{From: c.State, To: to, Msg: "state is terminal"}
	}
	if to == StateInvalid {
		return &StateError{From: c.State, To: to, Msg: "invalidation requires a reason, use Invalidate"}
	}
	if !CanTransition(c.State, to) {
		return &StateError{From: c.State, To: to}
	}

	c.State = to
	if to == StateClosed {
		ts := at
		c.ClosedAt = &ts
	}
	c.UpdatedAt = at
	return nil
}

// SendToInsurer records the expedient leaving for the insurer and moves the
// claim into liquidation. sentToInsurerAt is set at most once; the 60-day
// report clock stops the moment it is stamped.
func (c *Claim) SendToInsurer(at time.Time) error {
	if c.SentToInsurerAt != nil {
		return &StateError{From: c.State, To: StateLiquidation, Msg: "already sent to insurer"}
	}
	if err := c.Transition(StateLiquidation, at); err != nil {
		return err
	}
	ts := at
	c.SentToInsurerAt = &ts
	return nil
}

// ReceiveSignature records a beneficiary's signed acceptance and moves the
// claim into payment, starting the 72-hour payout clock.
func (c *Claim) ReceiveSignature(at time.Time) error {
	if err := c.Transition(StatePayment, at); err != nil {
		return err
	}
	ts := at
	c.SignatureReceivedAt = &ts
	return nil
}

// Invalidate rejects the claim with a mandatory reason. Only allowed from
// RECEIVED or VALIDATING.
func (c *Claim) Invalidate(reason string, at time.Time) error {
	if reason == "" {
		return &StateError{From: c.State, To: StateInvalid, Msg: "reason is required"}
	}
	if c.State.Terminal() {
		return &StateError{From: c.State, To: StateInvalid, Msg: "state is terminal"}
	}
	if !CanTransition(c.State, StateInvalid) {
		return &StateError{From: c.State, To: StateInvalid}
	}

	c.State = StateInvalid
	c.InvalidReason = reason
	ts := at
	c.ClosedAt = &ts
	c.UpdatedAt = at
	return nil
}
