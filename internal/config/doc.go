// Package config provides loading and environment overlay for Pulse
// configuration. It exposes a Default() baseline and a viper-backed Load
// that layers an optional config file and PULSE_* environment variables
// on top of it.
//
// Example:
//
//	cfg, err := config.Load("/etc/pulse.yaml") // or config.Load("")
//	if err != nil { ... }
//	// PULSE_HTTP_ADDR, PULSE_STREAM_CAPACITY, PULSE_POLL_DSN, ... all
//	// override both defaults and file values.
package config
