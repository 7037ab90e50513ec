// Package log provides Pulse's structured logging setup over zerolog.
//
// # Overview
//
// The package is a thin construction layer: it turns a declarative Config
// (level + format) into a ready zerolog.Logger and keeps per-component
// tagging consistent across the codebase. Call sites hold a plain
// zerolog.Logger; nothing here wraps or re-exports the zerolog API.
//
// Quick start
//
//	logger, err := log.New(log.Config{Level: "info", Format: "text"})
//	if err != nil { ... }
//	logger = log.Component(logger, "engine")
//	logger.Info().Str("addr", ":8080").Msg("server started")
//
// # Interop
//
// RedirectStdLog routes the standard library's global logger through the
// given zerolog.Logger so third-party packages share one output stream.
// Tests use log.Nop().
package log
