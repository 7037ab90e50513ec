// Package producer holds the in-process data point producers: a synthetic
// waveform generator for demos and smoke tests, and a pgx-backed SQL poller
// that turns query results into stream appends.
package producer
