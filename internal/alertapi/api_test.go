package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/plazos/internal/deadline"
)

// mockService implements DeadlineService for testing.
type mockService struct {
	alerts     []*deadline.Alert
	counts     deadline.SeverityCounts
	runResult  *deadline.RunResult
	runErr     error
	listErr    error
	resolveErr error
	resolved   []string
	resolvedN  int

	lastFilter deadline.Filter
	lastNow    time.Time
}

func (m *mockService) RunCheck(_ context.Context, now time.Time, _ string) (*deadline.RunResult, error) {
	m.lastNow = now
	if m.runErr != nil {
		return nil, m.runErr
	}
	if m.runResult != nil {
		return m.runResult, nil
	}
	return &deadline.RunResult{RanAt: now}, nil
}

func (m *mockService) List(_ context.Context, f deadline.Filter) ([]*deadline.Alert, error) {
	m.lastFilter = f
	return m.alerts, m.listErr
}

func (m *mockService) Summary(_ context.Context) (deadline.SeverityCounts, error) {
	return m.counts, nil
}

func (m *mockService) Resolve(_ context.Context, id string) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	m.resolved = append(m.resolved, id)
	return nil
}

func (m *mockService) ResolveAll(_ context.Context) (int, error) {
	return m.resolvedN, nil
}

func newTestRouter(t *testing.T, svc *mockService) chi.Router {
	t.Helper()
	api := New(nil, svc)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

// New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, &mockService{})
	if api == nil {
		t.Fatal("New(nil, svc) returned nil API")
	}
	if api.logger == nil {
		t.Fatal("New(nil, svc) left logger nil; expected Nop logger")
	}
}

func TestNew_WithLogger(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), &mockService{})
	if api == nil || api.logger == nil {
		t.Fatal("New(logger, svc) returned an incomplete API")
	}
}

func TestNew_NilService_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New(nil, nil) did not panic; expected panic for nil service")
		}
	}()
	New(nil, nil)
}

// Routing

func TestRegisterRoutes_Methods(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"GET alerts", http.MethodGet, "/api/v1/alerts", http.StatusOK},
		{"POST alerts not allowed", http.MethodPost, "/api/v1/alerts", http.StatusMethodNotAllowed},
		{"GET summary", http.MethodGet, "/api/v1/alerts/summary", http.StatusOK},
		{"POST resolve", http.MethodPost, "/api/v1/alerts/abc/resolve", http.StatusOK},
		{"GET resolve not allowed", http.MethodGet, "/api/v1/alerts/abc/resolve", http.StatusMethodNotAllowed},
		{"POST resolve-all", http.MethodPost, "/api/v1/alerts/resolve-all", http.StatusOK},
		{"POST checks", http.MethodPost, "/api/v1/checks", http.StatusOK},
		{"GET checks not allowed", http.MethodGet, "/api/v1/checks", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{"root", http.MethodGet, "/", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.wantStatus)
			}
		})
	}
}

// Alert listing

func TestHandleListAlerts(t *testing.T) {
	t.Parallel()

	svc := &mockService{
		alerts: []*deadline.Alert{
			{ID: "a-1", Kind: deadline.Kind60DayReport, Severity: deadline.SeverityCritical, RefType: deadline.RefClaim, RefID: "c-1"},
		},
	}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?kind=PLAZO_60D&severity=CRITICAL&resolved=false", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}

	if svc.lastFilter.Kind == nil || *svc.lastFilter.Kind != deadline.Kind60DayReport {
		t.Errorf("kind filter not passed through: %+v", svc.lastFilter)
	}
	if svc.lastFilter.Severity == nil || *svc.lastFilter.Severity != deadline.SeverityCritical {
		t.Errorf("severity filter not passed through: %+v", svc.lastFilter)
	}
	if svc.lastFilter.Resolved == nil || *svc.lastFilter.Resolved {
		t.Errorf("resolved filter not passed through: %+v", svc.lastFilter)
	}

	var resp struct {
		Alerts []*deadline.Alert `json:"alerts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].ID != "a-1" {
		t.Errorf("alerts = %+v", resp.Alerts)
	}
}

func TestHandleListAlerts_EmptyIsArray(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"alerts":[]`) {
		t.Errorf("empty list should serialize as [], got %s", rec.Body.String())
	}
}

func TestHandleListAlerts_BadQuery(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	tests := []struct {
		name  string
		query string
	}{
		{"unknown kind", "?kind=PLAZO_99X"},
		{"unknown severity", "?severity=URGENT"},
		{"non-boolean resolved", "?resolved=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts"+tt.query, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("GET /api/v1/alerts%s = %d, want 400", tt.query, rec.Code)
			}
		})
	}
}

func TestHandleListAlerts_StoreError(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{listErr: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// Summary

func TestHandleSummary(t *testing.T) {
	t.Parallel()

	svc := &mockService{counts: deadline.SeverityCounts{Critical: 2, Warning: 1, Info: 3, Total: 6}}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/summary", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got deadline.SeverityCounts
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got != svc.counts {
		t.Errorf("counts = %+v, want %+v", got, svc.counts)
	}
}

// Resolution

func TestHandleResolveAlert(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	r := newTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/a-123/resolve", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.resolved) != 1 || svc.resolved[0] != "a-123" {
		t.Errorf("resolved IDs = %v, want [a-123]", svc.resolved)
	}
}

func TestHandleResolveAlert_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown ID", deadline.ErrNotFound, http.StatusNotFound},
		{"already resolved", deadline.ErrAlreadyResolved, http.StatusConflict},
		{"store failure", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t, &mockService{resolveErr: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/a-1/resolve", http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleResolveAll(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{resolvedN: 7})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/resolve-all", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if n, _ := resp["resolved"].(float64); int(n) != 7 {
		t.Errorf("resolved = %v, want 7", resp["resolved"])
	}
}

// Manual check trigger

func TestHandleRunCheck_DefaultNow(t *testing.T) {
	t.Parallel()

	svc := &mockService{runResult: &deadline.RunResult{Evaluated: 4, Created: 2}}
	r := newTestRouter(t, svc)

	before := time.Now()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if svc.lastNow.Before(before) {
		t.Errorf("check ran at %v, before the request at %v", svc.lastNow, before)
	}

	var res deadline.RunResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Evaluated != 4 || res.Created != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleRunCheck_PinnedNow(t *testing.T) {
	t.Parallel()

	svc := &mockService{}
	r := newTestRouter(t, svc)

	pinned := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	body := `{"now":"2026-03-10T12:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if !svc.lastNow.Equal(pinned) {
		t.Errorf("check ran at %v, want pinned %v", svc.lastNow, pinned)
	}
}

func TestHandleRunCheck_InvalidBody(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", strings.NewReader("{bad"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleRunCheck_Overlap(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{runErr: deadline.ErrCheckInProgress})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestHandleRunCheck_Failure(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &mockService{runErr: errors.New("snapshot load failed")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", http.NoBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

// Fuzz

func FuzzRunCheckBody(f *testing.F) {
	api := New(nil, &mockService{})
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	seeds := [][]byte{
		nil,
		[]byte(""),
		[]byte("{}"),
		[]byte(`{"now":"2026-03-10T12:00:00Z"}`),
		[]byte(`{"now":"not a time"}`),
		[]byte(`{"now":null}`),
		[]byte("{invalid json"),
		[]byte("\x00\x01\x02\xff\xfe"),
		[]byte(strings.Repeat("a", 10000)),
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, body []byte) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checks", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		// Must not panic
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK && rec.Code != http.StatusBadRequest {
			t.Errorf("POST /api/v1/checks with body len=%d = %d, want 200 or 400", len(body), rec.Code)
		}
	})
}
