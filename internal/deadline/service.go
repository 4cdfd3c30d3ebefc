package deadline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// ErrCheckInProgress is returned when a pass is triggered while another one
// is still running. Overlapping passes are rejected rather than queued:
// concurrent lookup-then-write against the same dedup key could race.
var ErrCheckInProgress = errors.New("deadline check already in progress")

// RunResult summarizes one reconciliation pass.
type RunResult struct {
	Evaluated int       `json:"evaluated"`
	Findings  int       `json:"findings"`
	Created   int       `json:"created"`
	Escalated int       `json:"escalated"`
	Failed    int       `json:"failed"`
	RanAt     time.Time `json:"ran_at"`
	Duration  float64   `json:"duration_seconds"`
}

// Service is the business boundary for the deadline engine: it owns the
// single-flight reconciliation pass and the alert query/resolution
// operations the API exposes.
type Service struct {
	source  Source
	store   Store
	eval    *Evaluator
	rec     *Reconciler
	logger  log.Logger
	metrics *Metrics

	runMu sync.Mutex // guards the pass; TryLock gives single-flight
}

// NewService creates the deadline service. metrics may be nil.
func NewService(source Source, store Store, eval *Evaluator, rec *Reconciler, logger log.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		source:  source,
		store:   store,
		eval:    eval,
		rec:     rec,
		logger:  logger,
		metrics: metrics,
	}
}

// RunCheck executes one full reconciliation pass at the given instant. The
// periodic scheduler and the manual API trigger both land here. A store
// failure on one entity is counted and logged but does not abort the pass.
// Returns ErrCheckInProgress if another pass holds the single-flight lock.
func (s *Service) RunCheck(ctx context.Context, now time.Time, trigger string) (*RunResult, error) {
	if !s.runMu.TryLock() {
		return nil, ErrCheckInProgress
	}
	defer s.runMu.Unlock()

	start := time.Now()
	res := &RunResult{RanAt: now}

	L := s.logger.With("trigger", trigger)
	L.Info(ctx, "deadline check started", "now", now)

	claims, err := s.source.OpenClaims(ctx)
	if err != nil {
		s.observeRun(trigger, "error", res, start)
		return nil, err
	}
	for _, c := range claims {
		res.Evaluated++
		if err := s.reconcileAll(ctx, s.eval.EvaluateClaim(c, now), now, res); err != nil {
			res.Failed++
			L.Error(ctx, err, "claim reconciliation failed", "claim_id", c.ID, "case_code", c.CaseCode)
		}
	}

	coverages, err := s.source.OpenCoverages(ctx)
	if err != nil {
		s.observeRun(trigger, "error", res, start)
		return nil, err
	}
	for _, cv := range coverages {
		res.Evaluated++
		if err := s.reconcileAll(ctx, s.eval.EvaluateCoverage(cv, now), now, res); err != nil {
			res.Failed++
			L.Error(ctx, err, "coverage reconciliation failed", "coverage_id", cv.ID, "policy", cv.PolicyNumber)
		}
	}

	res.Duration = time.Since(start).Seconds()
	s.observeRun(trigger, "ok", res, start)
	s.refreshUnresolvedGauge(ctx)

	L.Info(ctx, "deadline check complete",
		"evaluated", res.Evaluated,
		"findings", res.Findings,
		"created", res.Created,
		"escalated", res.Escalated,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res, nil
}

// reconcileAll applies every finding for one entity. The first store error
// wins; remaining findings for that entity are skipped so a broken store
// does not get hammered once per rule.
func (s *Service) reconcileAll(ctx context.Context, findings []Finding, now time.Time, res *RunResult) error {
	for _, f := range findings {
		res.Findings++
		if s.metrics != nil {
			s.metrics.FindingsTotal.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()
		}

		outcome, err := s.rec.Apply(ctx, f, now)
		if err != nil {
			return err
		}
		switch outcome {
		case OutcomeCreated:
			res.Created++
			if s.metrics != nil {
				s.metrics.AlertsCreatedTotal.WithLabelValues(string(f.Kind)).Inc()
			}
		case OutcomeEscalated:
			res.Escalated++
			if s.metrics != nil {
				s.metrics.AlertsEscalatedTotal.WithLabelValues(string(f.Kind)).Inc()
			}
		}
	}
	return nil
}

func (s *Service) observeRun(trigger, outcome string, res *RunResult, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ChecksTotal.WithLabelValues(trigger, outcome).Inc()
	s.metrics.CheckDuration.Observe(time.Since(start).Seconds())
	s.metrics.EntitiesEvaluated.Observe(float64(res.Evaluated))
}

func (s *Service) refreshUnresolvedGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	counts, err := s.store.CountUnresolved(ctx)
	if err != nil {
		s.logger.Warn(ctx, "failed to refresh unresolved gauge", "error", err)
		return
	}
	s.metrics.UnresolvedAlerts.WithLabelValues(string(SeverityCritical)).Set(float64(counts.Critical))
	s.metrics.UnresolvedAlerts.WithLabelValues(string(SeverityWarning)).Set(float64(counts.Warning))
	s.metrics.UnresolvedAlerts.WithLabelValues(string(SeverityInfo)).Set(float64(counts.Info))
}

// List returns alerts matching the filter.
func (s *Service) List(ctx context.Context, f Filter) ([]*Alert, error) {
	return s.store.List(ctx, f)
}

// Summary aggregates unresolved alerts by severity.
func (s *Service) Summary(ctx context.Context) (SeverityCounts, error) {
	return s.store.CountUnresolved(ctx)
}

// Resolve marks one alert resolved. The engine never reopens it.
func (s *Service) Resolve(ctx context.Context, id string) error {
	return s.store.Resolve(ctx, id)
}

// ResolveAll marks every unresolved alert resolved.
func (s *Service) ResolveAll(ctx context.Context) (int, error) {
	return s.store.ResolveAll(ctx)
}
