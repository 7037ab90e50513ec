// Package metrics maintains the engine's rolling counters and gauges and
// mirrors them to Prometheus collectors for the /metrics endpoint.
package metrics
