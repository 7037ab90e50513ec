// Package httpserver exposes the engine over HTTP: a WebSocket endpoint
// speaking the subscribe/push protocol, an SSE tail, REST stream
// management and query, and the operational surface (healthz, statsz,
// Prometheus metrics).
package httpserver
