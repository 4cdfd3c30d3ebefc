package deadline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/plazos/internal/claim"
	"github.com/linnemanlabs/plazos/internal/policy"
)

// mockSource implements Source for testing.
type mockSource struct {
	claims    []*claim.Claim
	coverages []*policy.Coverage
	claimsErr error
	covErr    error
}

func (m *mockSource) OpenClaims(_ context.Context) ([]*claim.Claim, error) {
	return m.claims, m.claimsErr
}

func (m *mockSource) OpenCoverages(_ context.Context) ([]*policy.Coverage, error) {
	return m.coverages, m.covErr
}

func svcNow() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func newTestService(source Source, store Store, notifier Notifier) *Service {
	rec := NewReconciler(store, notifier, nil, nil)
	return NewService(source, store, NewEvaluator(DefaultConfig()), rec, nil, nil)
}

func openClaim(id, code string, reportedDaysAgo int) *claim.Claim {
	return &claim.Claim{
		ID:         id,
		CaseCode:   code,
		State:      claim.StateReceived,
		ReportedAt: svcNow().AddDate(0, 0, -reportedDaysAgo),
	}
}

func TestRunCheck_CreatesAlertsForDueDeadlines(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	source := &mockSource{
		claims: []*claim.Claim{
			openClaim("c-1", "SIN-1", 55), // 5 days left -> CRITICAL
			openClaim("c-2", "SIN-2", 51), // 9 days left -> WARNING
			openClaim("c-3", "SIN-3", 10), // quiet
		},
		coverages: []*policy.Coverage{
			{ID: "cov-1", PolicyNumber: "POL-1", State: policy.WindowOpen, ValidUntil: svcNow().AddDate(0, 0, 12)},
		},
	}
	notifier := &mockNotifier{ok: true}
	svc := newTestService(source, store, notifier)

	res, err := svc.RunCheck(context.Background(), svcNow(), "manual")
	if err != nil {
		t.Fatalf("RunCheck: %v", err)
	}
	if res.Evaluated != 4 {
		t.Errorf("Evaluated = %d, want 4", res.Evaluated)
	}
	if res.Created != 3 {
		t.Errorf("Created = %d, want 3", res.Created)
	}
	if res.Escalated != 0 {
		t.Errorf("Escalated = %d, want 0", res.Escalated)
	}
	if res.Failed != 0 {
		t.Errorf("Failed = %d, want 0", res.Failed)
	}
	if notifier.callCount() != 3 {
		t.Errorf("notify calls = %d, want 3", notifier.callCount())
	}
}

func TestRunCheck_SecondPassIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	source := &mockSource{
		claims: []*claim.Claim{openClaim("c-1", "SIN-1", 55)},
		coverages: []*policy.Coverage{
			{ID: "cov-1", PolicyNumber: "POL-1", State: policy.WindowOpen, ValidUntil: svcNow().AddDate(0, 0, 5)},
		},
	}
	notifier := &mockNotifier{ok: true}
	svc := newTestService(source, store, notifier)

	first, err := svc.RunCheck(context.Background(), svcNow(), "scheduled")
	if err != nil {
		t.Fatalf("first RunCheck: %v", err)
	}
	if first.Created != 2 {
		t.Fatalf("first pass Created = %d, want 2", first.Created)
	}

	second, err := svc.RunCheck(context.Background(), svcNow(), "scheduled")
	if err != nil {
		t.Fatalf("second RunCheck: %v", err)
	}
	if second.Created != 0 {
		t.Errorf("second pass Created = %d, want 0", second.Created)
	}
	if second.Escalated != 0 {
		t.Errorf("second pass Escalated = %d, want 0", second.Escalated)
	}
	if notifier.callCount() != 2 {
		t.Errorf("notify calls = %d, want 2 (none on second pass)", notifier.callCount())
	}
}

func TestRunCheck_EscalatesAsDeadlineApproaches(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	c := openClaim("c-1", "SIN-1", 52) // 8 days left -> WARNING
	source := &mockSource{claims: []*claim.Claim{c}}
	notifier := &mockNotifier{ok: true}
	svc := newTestService(source, store, notifier)

	if _, err := svc.RunCheck(context.Background(), svcNow(), "scheduled"); err != nil {
		t.Fatalf("first RunCheck: %v", err)
	}

	// Five days later the same claim has 3 days left -> CRITICAL.
	later := svcNow().AddDate(0, 0, 5)
	res, err := svc.RunCheck(context.Background(), later, "scheduled")
	if err != nil {
		t.Fatalf("second RunCheck: %v", err)
	}
	if res.Created != 0 {
		t.Errorf("Created = %d, want 0 (escalation, not duplication)", res.Created)
	}
	if res.Escalated != 1 {
		t.Errorf("Escalated = %d, want 1", res.Escalated)
	}

	alerts, _ := store.List(context.Background(), Filter{})
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != SeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", alerts[0].Severity)
	}
	if notifier.callCount() != 1 {
		t.Errorf("notify calls = %d, want 1", notifier.callCount())
	}
}

func TestRunCheck_UniquenessAcrossManyPasses(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	source := &mockSource{claims: []*claim.Claim{openClaim("c-1", "SIN-1", 55)}}
	svc := newTestService(source, store, nil)

	for i := range 5 {
		now := svcNow().Add(time.Duration(i) * time.Hour)
		if _, err := svc.RunCheck(context.Background(), now, "scheduled"); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	unresolved := false
	alerts, _ := store.List(context.Background(), Filter{Resolved: &unresolved})
	if len(alerts) != 1 {
		t.Errorf("unresolved alerts = %d, want 1", len(alerts))
	}
}

func TestRunCheck_StoreFailureDoesNotAbortPass(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	source := &mockSource{
		claims: []*claim.Claim{
			openClaim("c-1", "SIN-1", 55),
			openClaim("c-2", "SIN-2", 56),
		},
	}
	// First entity's lookup fails; the pass must still process the second.
	calls := 0
	failingOnce := &flakyStore{mockStore: store, failures: 1, calls: &calls}
	svc := NewService(source, failingOnce, NewEvaluator(DefaultConfig()), NewReconciler(failingOnce, nil, nil, nil), nil, nil)

	res, err := svc.RunCheck(context.Background(), svcNow(), "manual")
	if err != nil {
		t.Fatalf("RunCheck: %v", err)
	}
	if res.Failed != 1 {
		t.Errorf("Failed = %d, want 1", res.Failed)
	}
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1 (second entity still processed)", res.Created)
	}
}

// flakyStore fails the first N FindUnresolved calls, then delegates.
type flakyStore struct {
	*mockStore
	failures int
	calls    *int
}

func (f *flakyStore) FindUnresolved(ctx context.Context, kind Kind, refType RefType, refID string) (*Alert, bool, error) {
	*f.calls++
	if *f.calls <= f.failures {
		return nil, false, errors.New("transient store failure")
	}
	return f.mockStore.FindUnresolved(ctx, kind, refType, refID)
}

func TestRunCheck_SourceFailureAbortsPass(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	source := &mockSource{claimsErr: errors.New("claims table gone")}
	svc := newTestService(source, store, nil)

	if _, err := svc.RunCheck(context.Background(), svcNow(), "manual"); err == nil {
		t.Fatal("expected error when the snapshot load fails")
	}
}

func TestRunCheck_SingleFlight(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	release := make(chan struct{})
	source := &blockingSource{started: make(chan struct{}), release: release}
	svc := newTestService(source, store, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.RunCheck(context.Background(), svcNow(), "scheduled")
	}()

	<-source.started

	if _, err := svc.RunCheck(context.Background(), svcNow(), "manual"); !errors.Is(err, ErrCheckInProgress) {
		t.Errorf("overlapping RunCheck err = %v, want ErrCheckInProgress", err)
	}

	close(release)
	wg.Wait()

	// After the first pass finishes, a new pass is accepted again.
	if _, err := svc.RunCheck(context.Background(), svcNow(), "manual"); err != nil {
		t.Errorf("RunCheck after release: %v", err)
	}
}

// blockingSource parks OpenClaims until released, to hold the pass open.
type blockingSource struct {
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (b *blockingSource) OpenClaims(_ context.Context) ([]*claim.Claim, error) {
	b.startOnce.Do(func() { close(b.started) })
	<-b.release
	return nil, nil
}

func (b *blockingSource) OpenCoverages(_ context.Context) ([]*policy.Coverage, error) {
	return nil, nil
}

func TestServicePassthroughs(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(&mockSource{}, store, nil)
	r := NewReconciler(store, nil, nil, nil)

	if _, err := r.Apply(context.Background(), testFinding(SeverityWarning), recNow); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	alerts, err := svc.List(context.Background(), Filter{})
	if err != nil || len(alerts) != 1 {
		t.Fatalf("List = (%d, %v), want 1 alert", len(alerts), err)
	}

	counts, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if counts.Warning != 1 || counts.Total != 1 {
		t.Errorf("counts = %+v, want one warning", counts)
	}

	if err := svc.Resolve(context.Background(), alerts[0].ID); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := svc.Resolve(context.Background(), alerts[0].ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve err = %v, want ErrAlreadyResolved", err)
	}
	if err := svc.Resolve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve missing err = %v, want ErrNotFound", err)
	}

	n, err := svc.ResolveAll(context.Background())
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if n != 0 {
		t.Errorf("ResolveAll = %d, want 0 (zero matches is a valid outcome)", n)
	}
}
