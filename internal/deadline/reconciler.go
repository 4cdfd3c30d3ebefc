package deadline

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

// Outcome says what the reconciler did with one finding.
type Outcome int

const (
	// OutcomeUnchanged means an unresolved alert already existed at the
	// same severity; nothing was written.
	OutcomeUnchanged Outcome = iota

	// OutcomeCreated means a new alert was created and notification was
	// attempted.
	OutcomeCreated

	// OutcomeEscalated means the existing alert's severity, message and
	// deadline were rewritten in place. No re-notification.
	OutcomeEscalated
)

// Reconciler turns findings into at-most-one unresolved alert per
// (kind, ref_type, ref_id). It is the sole writer of alerts and is
// idempotent: applying the same finding twice writes nothing the second
// time.
type Reconciler struct {
	store    Store
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
}

// NewReconciler creates a reconciler. notifier may be nil, which disables
// delivery (alerts are still created with notified=false); metrics may be
// nil.
func NewReconciler(store Store, notifier Notifier, logger log.Logger, metrics *Metrics) *Reconciler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Reconciler{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Apply reconciles one finding against the store. Notification fires only on
// first creation, so repeated scheduler ticks cannot spam the channel, and
// its failure never rolls back the alert write.
func (r *Reconciler) Apply(ctx context.Context, f Finding, now time.Time) (Outcome, error) {
	existing, ok, err := r.store.FindUnresolved(ctx, f.Kind, f.RefType, f.RefID)
	if err != nil {
		return OutcomeUnchanged, err
	}

	if !ok {
		a := &Alert{
			ID:        ulid.Make().String(),
			Kind:      f.Kind,
			Severity:  f.Severity,
			Message:   f.Message,
			RefType:   f.RefType,
			RefID:     f.RefID,
			Deadline:  f.Deadline,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.store.Create(ctx, a); err != nil {
			return OutcomeUnchanged, err
		}

		// Alert state is more valuable than guaranteed delivery: the create
		// stands whether or not the notification lands.
		if r.notify(ctx, a) {
			a.Notified = true
			if err := r.store.Update(ctx, a); err != nil {
				r.logger.Error(ctx, err, "failed to record notify result",
					"alert_id", a.ID, "kind", a.Kind, "ref_id", a.RefID)
			}
		}
		return OutcomeCreated, nil
	}

	if existing.Severity == f.Severity {
		return OutcomeUnchanged, nil
	}

	existing.Severity = f.Severity
	existing.Message = f.Message
	existing.Deadline = f.Deadline
	existing.UpdatedAt = now
	if err := r.store.Update(ctx, existing); err != nil {
		return OutcomeUnchanged, err
	}
	return OutcomeEscalated, nil
}

func (r *Reconciler) notify(ctx context.Context, a *Alert) bool {
	if r.notifier == nil {
		return false
	}
	ok := r.notifier.Notify(ctx, a)
	if r.metrics != nil {
		result := "ok"
		if !ok {
			result = "failed"
		}
		r.metrics.NotifyTotal.WithLabelValues(result).Inc()
	}
	if !ok {
		r.logger.Warn(ctx, "alert notification failed",
			"alert_id", a.ID, "kind", a.Kind, "severity", a.Severity, "ref_id", a.RefID)
	}
	return ok
}
