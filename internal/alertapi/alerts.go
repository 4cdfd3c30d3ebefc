package alertapi

import (
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/plazos/internal/deadline"
)

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	alerts, err := a.svc.List(r.Context(), f)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list alerts")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []*deadline.Alert{}
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("plazos.alerts.count", len(alerts)))

	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.Summary(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to summarize alerts")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("plazos.alert.id", id))

	err := a.svc.Resolve(r.Context(), id)
	switch {
	case errors.Is(err, deadline.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, deadline.ErrAlreadyResolved):
		http.Error(w, `{"error":"already resolved"}`, http.StatusConflict)
		return
	case err != nil:
		a.logger.Error(r.Context(), err, "failed to resolve alert", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.logger.Info(r.Context(), "alert resolved", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"resolved": id})
}

func (a *API) handleResolveAll(w http.ResponseWriter, r *http.Request) {
	n, err := a.svc.ResolveAll(r.Context())
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to resolve all alerts")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	a.logger.Info(r.Context(), "all alerts resolved", "count", n)
	writeJSON(w, http.StatusOK, map[string]any{"resolved": n})
}

// parseFilter builds a deadline.Filter from query parameters. Unknown values
// are rejected rather than silently matching nothing.
func parseFilter(r *http.Request) (deadline.Filter, error) {
	var f deadline.Filter
	q := r.URL.Query()

	if v := q.Get("kind"); v != "" {
		k := deadline.Kind(v)
		if !k.Valid() {
			return f, errors.New("unknown kind")
		}
		f.Kind = &k
	}
	if v := q.Get("severity"); v != "" {
		s := deadline.Severity(v)
		if !s.Valid() {
			return f, errors.New("unknown severity")
		}
		f.Severity = &s
	}
	if v := q.Get("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("resolved must be a boolean")
		}
		f.Resolved = &b
	}
	return f, nil
}
