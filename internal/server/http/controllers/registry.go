package controllers

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/metrics"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	streams *StreamsController
	ws      *WSController
	metrics *metrics.Collector
}

// NewControllerRegistry initializes all controllers against one engine.
// sendBuf bounds each transport's outbound queue.
func NewControllerRegistry(eng *engine.Engine, coll *metrics.Collector, sendBuf int, logger zerolog.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(eng),
		streams: NewStreamsController(eng, sendBuf, logger),
		ws:      NewWSController(eng, sendBuf, logger),
		metrics: coll,
	}
}

// RegisterAllRoutes registers every endpoint with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.streams.RegisterRoutes(mux)
	r.ws.RegisterRoutes(mux)
	if r.metrics != nil {
		mux.Handle("/metrics", r.metrics.Handler())
	}
}
