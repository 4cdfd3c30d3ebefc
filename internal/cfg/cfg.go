package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	SlackWebhookURL       string
	APIToken              string

	ReportDeadlineDays      int
	ReportWarningWindowDays int
	SettlementBusinessDays  int
	PaymentDeadlineHours    int
	CheckIntervalMinutes    int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for alert notifications (empty = no delivery)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on /api/v1 requests")
	fs.IntVar(&c.ReportDeadlineDays, "report-deadline-days", 60, "calendar days to report a case to the insurer")
	fs.IntVar(&c.ReportWarningWindowDays, "report-warning-window-days", 10, "days before the report deadline at which alerting starts")
	fs.IntVar(&c.SettlementBusinessDays, "settlement-business-days", 15, "business days (approximate) for the insurer to settle")
	fs.IntVar(&c.PaymentDeadlineHours, "payment-deadline-hours", 72, "hours to pay after the signed acceptance arrives")
	fs.IntVar(&c.CheckIntervalMinutes, "check-interval-minutes", 1440, "minutes between scheduled deadline checks (1..10080)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// API token is required: the alert API mutates operator state
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	// Deadline clocks must be positive
	if c.ReportDeadlineDays <= 0 {
		errs = append(errs, fmt.Errorf("invalid REPORT_DEADLINE_DAYS %d (must be positive)", c.ReportDeadlineDays))
	}
	if c.ReportWarningWindowDays <= 0 || c.ReportWarningWindowDays >= c.ReportDeadlineDays {
		errs = append(errs, fmt.Errorf("invalid REPORT_WARNING_WINDOW_DAYS %d (must be 1..%d)", c.ReportWarningWindowDays, c.ReportDeadlineDays-1))
	}
	if c.SettlementBusinessDays <= 0 {
		errs = append(errs, fmt.Errorf("invalid SETTLEMENT_BUSINESS_DAYS %d (must be positive)", c.SettlementBusinessDays))
	}
	if c.PaymentDeadlineHours <= 0 {
		errs = append(errs, fmt.Errorf("invalid PAYMENT_DEADLINE_HOURS %d (must be positive)", c.PaymentDeadlineHours))
	}

	// One week of minutes is the ceiling for the scheduler interval
	if c.CheckIntervalMinutes <= 0 || c.CheckIntervalMinutes > 10080 {
		errs = append(errs, fmt.Errorf("invalid CHECK_INTERVAL_MINUTES %d (must be 1..10080)", c.CheckIntervalMinutes))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
