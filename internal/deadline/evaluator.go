package deadline

import (
	"fmt"
	"time"

	"github.com/linnemanlabs/plazos/internal/claim"
	"github.com/linnemanlabs/plazos/internal/policy"
)

// Severity tiers inside each rule's lookahead window. These are statutory
// cutoffs, not deployment knobs, so they stay constants.
const (
	reportCriticalDays     = 5
	settlementWindowDays   = 5
	settlementCriticalDays = 2
	paymentWindowHours     = 48
	paymentCriticalHours   = 24
	policyWindowDays       = 30
	policyWarningDays      = 15
	policyCriticalDays     = 7
)

// Config carries the externally supplied deadline offsets. Values are fixed
// at construction; there is no runtime mutation.
type Config struct {
	// ReportDeadlineDays is the calendar-day deadline to send a reported
	// case to the insurer.
	ReportDeadlineDays int

	// ReportWarningWindowDays is how many days before the report deadline
	// the first alert fires.
	ReportWarningWindowDays int

	// SettlementBusinessDays is the approximate business-day deadline for
	// the insurer to liquidate after receiving the expedient.
	SettlementBusinessDays int

	// PaymentDeadlineHours is the payout deadline after a signed
	// acceptance arrives.
	PaymentDeadlineHours int
}

// DefaultConfig returns the statutory defaults.
func DefaultConfig() Config {
	return Config{
		ReportDeadlineDays:      60,
		ReportWarningWindowDays: 10,
		SettlementBusinessDays:  15,
		PaymentDeadlineHours:    72,
	}
}

// Evaluator turns a claim or coverage snapshot plus the current time into
// zero or more findings. It is pure: no I/O, no state beyond Config.
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates an evaluator with the given deadline configuration.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// EvaluateClaim runs every claim rule independently; a single claim can
// yield multiple findings in one pass. A claim in a terminal state yields
// none, and a rule whose base date is missing is silently inactive.
func (e *Evaluator) EvaluateClaim(c *claim.Claim, now time.Time) []Finding {
	if !claim.DeadlineTrackingActive(c.State) {
		return nil
	}

	var findings []Finding
	if f, ok := e.reportFinding(c, now); ok {
		findings = append(findings, f)
	}
	if f, ok := e.settlementFinding(c, now); ok {
		findings = append(findings, f)
	}
	if f, ok := e.paymentFinding(c, now); ok {
		findings = append(findings, f)
	}
	return findings
}

// reportFinding covers the 60-day report-to-insurer clock. It runs only
// while the expedient has not left for the insurer.
func (e *Evaluator) reportFinding(c *claim.Claim, now time.Time) (Finding, bool) {
	if c.SentToInsurerAt != nil || c.ReportedAt.IsZero() {
		return Finding{}, false
	}

	days := RemainingCalendarDays(c.ReportedAt, e.cfg.ReportDeadlineDays, now)
	if days > e.cfg.ReportWarningWindowDays {
		return Finding{}, false
	}

	f := Finding{
		Kind:     Kind60DayReport,
		RefType:  RefClaim,
		RefID:    c.ID,
		Deadline: c.ReportedAt.Add(time.Duration(e.cfg.ReportDeadlineDays) * day),
	}
	switch {
	case days <= 0:
		f.Severity = SeverityCritical
		f.Message = fmt.Sprintf("Plazo de %d días VENCIDO para el aviso al asegurador del caso %s",
			e.cfg.ReportDeadlineDays, c.CaseCode)
	case days <= reportCriticalDays:
		f.Severity = SeverityCritical
		f.Message = fmt.Sprintf("Quedan %d días para enviar el caso %s al asegurador", days, c.CaseCode)
	default:
		f.Severity = SeverityWarning
		f.Message = fmt.Sprintf("Quedan %d días para enviar el caso %s al asegurador", days, c.CaseCode)
	}
	return f, true
}

// settlementFinding covers the approximate 15-business-day liquidation
// clock, active only while the insurer holds the expedient.
func (e *Evaluator) settlementFinding(c *claim.Claim, now time.Time) (Finding, bool) {
	if c.SentToInsurerAt == nil || c.State != claim.StateLiquidation {
		return Finding{}, false
	}

	days := RemainingBusinessDaysApprox(*c.SentToInsurerAt, e.cfg.SettlementBusinessDays, now)
	if days <= 0 || days > settlementWindowDays {
		return Finding{}, false
	}

	f := Finding{
		Kind:     Kind15DaySettlement,
		RefType:  RefClaim,
		RefID:    c.ID,
		Deadline: c.SentToInsurerAt.Add(time.Duration(approxCalendarDays(e.cfg.SettlementBusinessDays)) * day),
		Message:  fmt.Sprintf("Quedan %d días hábiles (aprox.) para la liquidación del caso %s", days, c.CaseCode),
		Severity: SeverityWarning,
	}
	if days <= settlementCriticalDays {
		f.Severity = SeverityCritical
	}
	return f, true
}

// paymentFinding covers the 72-hour payout clock, active only once a signed
// acceptance has arrived.
func (e *Evaluator) paymentFinding(c *claim.Claim, now time.Time) (Finding, bool) {
	if c.SignatureReceivedAt == nil || c.State != claim.StatePayment {
		return Finding{}, false
	}

	hours := RemainingHours(*c.SignatureReceivedAt, e.cfg.PaymentDeadlineHours, now)
	if hours <= 0 || hours > paymentWindowHours {
		return Finding{}, false
	}

	f := Finding{
		Kind:     Kind72HourPayment,
		RefType:  RefClaim,
		RefID:    c.ID,
		Deadline: c.SignatureReceivedAt.Add(time.Duration(e.cfg.PaymentDeadlineHours) * time.Hour),
		Message:  fmt.Sprintf("Quedan %d horas para el pago del caso %s", hours, c.CaseCode),
		Severity: SeverityWarning,
	}
	if hours <= paymentCriticalHours {
		f.Severity = SeverityCritical
	}
	return f, true
}

// EvaluateCoverage covers policy expiry for one coverage window. Only OPEN
// windows inside the 30-day lookahead produce a finding.
func (e *Evaluator) EvaluateCoverage(cv *policy.Coverage, now time.Time) []Finding {
	if cv.State != policy.WindowOpen || cv.ValidUntil.IsZero() {
		return nil
	}

	days := RemainingCalendarDays(cv.ValidUntil, 0, now)
	if days <= 0 || days > policyWindowDays {
		return nil
	}

	f := Finding{
		Kind:     KindPolicyExpiry,
		RefType:  RefPolicy,
		RefID:    cv.ID,
		Deadline: cv.ValidUntil,
		Message:  fmt.Sprintf("La póliza %s vence en %d días", cv.PolicyNumber, days),
	}
	switch {
	case days <= policyCriticalDays:
		f.Severity = SeverityCritical
	case days <= policyWarningDays:
		f.Severity = SeverityWarning
	default:
		f.Severity = SeverityInfo
	}
	return []Finding{f}
}
