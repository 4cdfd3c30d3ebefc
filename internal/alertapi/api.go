// Package alertapi exposes the deadline engine over HTTP: alert queries,
// operator resolution, and the manual check trigger.
package alertapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/plazos/internal/deadline"
)

// DeadlineService defines the business operations alertapi needs.
type DeadlineService interface {
	RunCheck(ctx context.Context, now time.Time, trigger string) (*deadline.RunResult, error)
	List(ctx context.Context, f deadline.Filter) ([]*deadline.Alert, error)
	Summary(ctx context.Context) (deadline.SeverityCounts, error)
	Resolve(ctx context.Context, id string) error
	ResolveAll(ctx context.Context) (int, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    DeadlineService
}

// New creates a new API handler.
func New(logger log.Logger, svc DeadlineService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("deadline service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/alerts", a.handleListAlerts)
		r.Get("/alerts/summary", a.handleSummary)
		r.Post("/alerts/{id}/resolve", a.handleResolveAlert)
		r.Post("/alerts/resolve-all", a.handleResolveAll)
		r.Post("/checks", a.handleRunCheck)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
