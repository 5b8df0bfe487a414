package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/shelfgate/shelfgate/internal/core/engine"
	apperrors "github.com/shelfgate/shelfgate/internal/errors"
)

// Metrics exposes the rolling request statistics windows.
type Metrics struct {
	Orchestrator *engine.Orchestrator
}

// Show handles GET /metrics and returns the derived snapshot.
func (h *Metrics) Show(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Orchestrator.MetricsSnapshot(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(snapshot)
}

// Reset handles POST /metrics/reset and clears both windows.
func (h *Metrics) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.Orchestrator.ResetMetrics(r.Context()); err != nil {
		respondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "metrics reset failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "reset"})
}
