// Package claim defines the death-claim case model ("siniestro") and its
// lifecycle state machine.
package claim

import "time"

// State tracks where a claim is in its lifecycle.
type State string

const (
	// StateReceived means the case has been formally reported and intaken.
	StateReceived State = "RECEIVED"

	// StateValidating means documentation is being checked before the
	// expedient leaves for the insurer.
	StateValidating State = "VALIDATING"

	// StateLiquidation means the expedient is with the insurer awaiting
	// the settlement amount.
	StateLiquidation State = "LIQUIDATION"

	// StatePayment means a beneficiary's signed acceptance arrived and the
	// payout is pending.
	StatePayment State = "PAYMENT"

	// StateClosed means the case finished successfully. Terminal.
	StateClosed State = "CLOSED"

	// StateInvalid means the case was rejected during intake or validation.
	// Terminal, requires a reason.
	StateInvalid State = "INVALID"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateReceived, StateValidating, StateLiquidation, StatePayment, StateClosed, StateInvalid:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateInvalid
}

// Claim is a death-benefit case. Cases are never physically deleted; they
// move to a terminal state instead.
type Claim struct {
	ID                  string     `json:"id"`
	CaseCode            string     `json:"case_code"`
	State               State      `json:"state"`
	ReportedAt          time.Time  `json:"reported_at"`
	SentToInsurerAt     *time.Time `json:"sent_to_insurer_at,omitempty"`
	SignatureReceivedAt *time.Time `json:"signature_received_at,omitempty"`
	SettlementAmount    *float64   `json:"settlement_amount,omitempty"`
	InvalidReason       string     `json:"invalid_reason,omitempty"`
	ClosedAt            *time.Time `json:"closed_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
