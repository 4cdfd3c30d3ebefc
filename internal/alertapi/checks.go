package alertapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/plazos/internal/deadline"
)

// checkRequest optionally pins the evaluation instant, mainly for operator
// dry-runs and backfills. An empty body means "now".
type checkRequest struct {
	Now *time.Time `json:"now,omitempty"`
}

func (a *API) handleRunCheck(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	if r.Body != nil && r.ContentLength != 0 {
		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
			return
		}
		if req.Now != nil {
			now = *req.Now
		}
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("plazos.check.now", now.UTC().Format(time.RFC3339)))

	res, err := a.svc.RunCheck(r.Context(), now, "manual")
	if errors.Is(err, deadline.ErrCheckInProgress) {
		http.Error(w, `{"error":"check already in progress"}`, http.StatusConflict)
		return
	}
	if err != nil {
		a.logger.Error(r.Context(), err, "manual deadline check failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	span.SetAttributes(
		attribute.Int("plazos.check.created", res.Created),
		attribute.Int("plazos.check.escalated", res.Escalated),
	)

	writeJSON(w, http.StatusOK, res)
}
