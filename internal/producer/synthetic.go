package producer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Appender is the producer-facing slice of the engine.
type Appender interface {
	AppendPoint(streamID string, value any, ts time.Time, md map[string]string) bool
}

// GenSpec names one synthetic stream and its emit cadence.
type GenSpec struct {
	Stream   string
	Interval time.Duration
}

// ParseSpecs parses a comma-separated "stream:interval" list, e.g.
// "temp:1s,load:250ms". An empty string yields no specs.
func ParseSpecs(s string) ([]GenSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []GenSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, ival, ok := strings.Cut(part, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("producer: invalid synthetic spec %q (want stream:interval)", part)
		}
		d, err := time.ParseDuration(ival)
		if err != nil {
			return nil, fmt.Errorf("producer: invalid interval in %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("producer: interval in %q must be positive", part)
		}
		out = append(out, GenSpec{Stream: name, Interval: d})
	}
	return out, nil
}

// Synthetic emits a noisy sine wave per spec until its context is
// cancelled. Values land in [-1, 1] plus a little jitter, which is enough
// to exercise subscriptions, filters, and the dashboard-ish read paths.
type Synthetic struct {
	specs []GenSpec
	app   Appender
	log   zerolog.Logger
}

// NewSynthetic builds a generator; specs may be empty, making Run a no-op.
func NewSynthetic(specs []GenSpec, app Appender, logger zerolog.Logger) *Synthetic {
	return &Synthetic{specs: specs, app: app, log: logger}
}

// Run blocks until ctx is cancelled, emitting on every spec's cadence.
func (s *Synthetic) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, spec := range s.specs {
		wg.Add(1)
		go func(spec GenSpec) {
			defer wg.Done()
			s.emitLoop(ctx, spec)
		}(spec)
	}
	wg.Wait()
}

func (s *Synthetic) emitLoop(ctx context.Context, spec GenSpec) {
	s.log.Info().Str("stream", spec.Stream).Dur("interval", spec.Interval).Msg("synthetic generator started")
	start := time.Now()
	t := time.NewTicker(spec.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			phase := now.Sub(start).Seconds() / 10 * 2 * math.Pi
			v := math.Sin(phase) + (rand.Float64()-0.5)*0.1
			if !s.app.AppendPoint(spec.Stream, v, now, map[string]string{"source": "synthetic"}) {
				// Engine shut down; nothing left to feed.
				return
			}
		}
	}
}
