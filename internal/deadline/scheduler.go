package deadline

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Scheduler drives the periodic reconciliation pass. It is a plain ticker
// rather than a cron expression so behavior is testable with an injected
// clock; the schedule itself is not persisted. Manual triggers go through
// the same Service.RunCheck, so an overlapping tick is simply skipped by the
// single-flight guard.
type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   log.Logger
	nowFn    func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler that runs a pass every interval. nowFn
// may be nil, defaulting to time.Now.
func NewScheduler(svc *Service, interval time.Duration, logger log.Logger, nowFn func() time.Time) *Scheduler {
	if logger == nil {
		logger = log.Nop()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger,
		nowFn:    nowFn,
	}
}

// Start launches the ticker loop. The first pass runs one interval after
// Start, not immediately, so a crash-looping process does not re-notify on
// every restart.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.svc.RunCheck(ctx, s.nowFn(), "scheduled"); err != nil {
		if errors.Is(err, ErrCheckInProgress) {
			s.logger.Warn(ctx, "scheduled check skipped, previous pass still running")
			return
		}
		s.logger.Error(ctx, err, "scheduled deadline check failed")
	}
}
