// Package serverrun exposes the shared Run entrypoint used by the CLI to
// start the Pulse engine with its HTTP server and producers, handling
// lifecycle and shutdown.
//
// Example:
//
//	opts := serverrun.Options{HTTPAddr: ":8080", Config: config.Default()}
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, opts)
package serverrun
