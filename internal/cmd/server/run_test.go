package serverrun

import (
	"context"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/pulse/internal/config"
)

func TestOptionsAddrFallback(t *testing.T) {
	tests := []struct {
		name     string
		httpAddr string
		expected string
	}{
		{
			name:     "empty addr uses config",
			httpAddr: "",
			expected: ":8080",
		},
		{
			name:     "provided addr is preserved",
			httpAddr: "127.0.0.1:9000",
			expected: "127.0.0.1:9000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{HTTPAddr: tt.httpAddr, Config: cfgpkg.Default()}
			if opts.HTTPAddr == "" {
				opts.HTTPAddr = opts.Config.HTTPAddr
			}
			if opts.HTTPAddr != tt.expected {
				t.Errorf("HTTPAddr = %s, expected %s", opts.HTTPAddr, tt.expected)
			}
		})
	}
}

func TestRunRejectsBadLogLevel(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.LogLevel = "loud"
	err := Run(context.Background(), Options{HTTPAddr: "127.0.0.1:0", Config: cfg})
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestRunRejectsBadSyntheticSpec(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Synthetic = "temp" // missing interval
	err := Run(context.Background(), Options{HTTPAddr: "127.0.0.1:0", Config: cfg})
	if err == nil {
		t.Fatal("expected error for malformed synthetic spec")
	}
}

// TestRunIntegration verifies Run starts and shuts down cleanly. Minimal by
// design: it brings up real listeners on ephemeral ports.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := cfgpkg.Default()
	cfg.Synthetic = "temp:10ms"

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, Options{HTTPAddr: "127.0.0.1:0", Config: cfg})
	if err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}
