package deadline

import "time"

// Kind identifies which deadline clock an alert tracks. The wire values are
// the statutory deadline names used by case managers, kept in Spanish for
// compatibility with the existing operator tooling.
type Kind string

const (
	// Kind60DayReport is the 60 calendar day report-to-insurer deadline,
	// counted from the date the case was formally reported.
	Kind60DayReport Kind = "PLAZO_60D"

	// Kind15DaySettlement is the 15 business day (approximate) liquidation
	// deadline, counted from the date the expedient left for the insurer.
	Kind15DaySettlement Kind = "PLAZO_15D"

	// Kind72HourPayment is the 72 hour payout deadline, counted from the
	// arrival of the beneficiary's signed acceptance.
	Kind72HourPayment Kind = "PLAZO_72H"

	// KindPolicyExpiry tracks the end of an open coverage window.
	KindPolicyExpiry Kind = "VENCIMIENTO_POLIZA"
)

// Valid reports whether k is a known alert kind.
func (k Kind) Valid() bool {
	switch k {
	case Kind60DayReport, Kind15DaySettlement, Kind72HourPayment, KindPolicyExpiry:
		return true
	}
	return false
}

// Severity orders alerts by urgency: INFO < WARNING < CRITICAL.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rank returns the total order of a severity; unknown severities rank below
// INFO so they never mask a real one.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// RefType says what entity an alert points at.
type RefType string

const (
	// RefClaim marks an alert attached to a death-claim case.
	RefClaim RefType = "SINIESTRO"

	// RefPolicy marks an alert attached to a policy coverage window.
	RefPolicy RefType = "POLIZA"
)

// Finding is a candidate deadline condition computed by the Evaluator. It is
// not persisted; the Reconciler decides whether it becomes (or updates) an
// Alert.
type Finding struct {
	Kind     Kind
	Severity Severity
	Message  string
	Deadline time.Time
	RefType  RefType
	RefID    string
}

// Alert is the persisted, de-duplicated record an operator acts on. For any
// (kind, ref_type, ref_id) tuple at most one unresolved Alert exists; the
// Reconciler is its sole writer. Resolution is a one-way, operator-driven
// transition.
type Alert struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Severity   Severity   `json:"severity"`
	Message    string     `json:"message"`
	RefType    RefType    `json:"ref_type"`
	RefID      string     `json:"ref_id"`
	Deadline   time.Time  `json:"deadline"`
	Resolved   bool       `json:"resolved"`
	Notified   bool       `json:"notified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
