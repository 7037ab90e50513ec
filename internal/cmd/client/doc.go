// Package client provides the `pulse` command-line client.
//
// The CLI talks to the Pulse HTTP endpoints to perform common stream
// operations from a terminal. It is primarily intended for developers
// and operators.
//
// Installation
//
//	go install github.com/rzbill/pulse/cmd/pulse@latest
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from the PULSE_HTTP environment variable and defaults to
// http://127.0.0.1:8080.
//
// Usage
//
//	pulse stream create --stream temp --capacity 500
//
//	pulse stream append --stream temp --value 21.5 \
//	    --metadata sensor=roof --metadata unit=c
//
//	pulse stream query --stream temp --from 2026-08-24T12:00:00Z --limit 10
//
//	pulse stream stats --stream temp
//	pulse stream list
//
//	# Tail over SSE; priming push first, then live points
//	pulse stream tail --stream temp --expr 'value > 20.0' --limit 5
//
//	# Full WebSocket subscription (subscribe / data_point / data_update)
//	pulse stream watch --stream temp --interval-ms 1000
//
// Notes
//
//   - tail uses the HTTP SSE endpoint and needs no protocol handling;
//     watch speaks the WebSocket message protocol and also prints
//     connection_established and subscription_confirmed frames.
//   - append accepts any JSON value via --value; unparseable input is
//     sent as a string.
package client
