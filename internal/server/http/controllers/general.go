package controllers

import (
	"net/http"

	"github.com/rzbill/pulse/internal/engine"
)

// GeneralController handles the operational endpoints: health and the
// engine's metrics snapshot.
type GeneralController struct {
	eng *engine.Engine
}

// NewGeneralController creates a new general controller.
func NewGeneralController(eng *engine.Engine) *GeneralController {
	return &GeneralController{eng: eng}
}

// RegisterRoutes registers general routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/statsz", c.handleStatsz)
}

func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatsz returns the current metrics snapshot as JSON.
func (c *GeneralController) handleStatsz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, c.eng.Metrics())
}
