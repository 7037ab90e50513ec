package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/pulse/internal/config"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/metrics"
	"github.com/rzbill/pulse/internal/producer"
	httpserver "github.com/rzbill/pulse/internal/server/http"
	"github.com/rzbill/pulse/internal/stream"
	logpkg "github.com/rzbill/pulse/pkg/log"
)

// Options selects the listen address and runtime configuration. A zero
// HTTPAddr falls back to Config.HTTPAddr.
type Options struct {
	HTTPAddr string
	Config   cfgpkg.Config
}

// Run assembles the engine, producers, and HTTP server, then blocks until
// ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass context.Background still get SIGINT/SIGTERM handling.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if opts.HTTPAddr == "" {
		opts.HTTPAddr = cfg.HTTPAddr
	}

	logger, err := logpkg.New(logpkg.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	// Route stdlib log users (net/http, pgx) through the same output.
	logpkg.RedirectStdLog(logger)

	logger.Info().
		Str("http", opts.HTTPAddr).
		Str("level", cfg.LogLevel).
		Str("format", cfg.LogFormat).
		Int("stream_capacity", cfg.StreamCapacity).
		Int("default_interval_ms", cfg.DefaultIntervalMs).
		Dur("heartbeat_period", cfg.HeartbeatPeriod).
		Msg("starting pulse server")

	registry := stream.NewRegistry(cfg.StreamCapacity)

	// The collector samples gauges from the engine and the engine counts
	// through the collector, so the gauge func resolves the engine lazily.
	var eng *engine.Engine
	coll := metrics.New(metrics.Options{
		Period: cfg.MetricsPeriod,
		Logger: logpkg.Component(logger, "metrics"),
		Gauges: func() (int, int, int) {
			if eng == nil {
				return 0, 0, 0
			}
			return eng.Counts()
		},
	})
	eng = engine.New(engine.Options{
		Streams:         registry,
		Metrics:         coll,
		Logger:          logpkg.Component(logger, "engine"),
		DefaultInterval: time.Duration(cfg.DefaultIntervalMs) * time.Millisecond,
		PrimingCount:    cfg.PrimingCount,
		CatchupCount:    cfg.CatchupCount,
		HeartbeatPeriod: cfg.HeartbeatPeriod,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	})

	hsrv := httpserver.New(httpserver.Options{
		Engine:     eng,
		Metrics:    coll,
		SendBuffer: cfg.SendBuffer,
		Logger:     logpkg.Component(logger, "http"),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Run(sctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		coll.Run(sctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, opts.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}()

	if cfg.Synthetic != "" {
		specs, err := producer.ParseSpecs(cfg.Synthetic)
		if err != nil {
			hsrv.Close()
			eng.Shutdown()
			return err
		}
		gen := producer.NewSynthetic(specs, eng, logpkg.Component(logger, "synthetic"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen.Run(sctx)
		}()
	}

	if cfg.Poll.DSN != "" && cfg.Poll.Query != "" {
		poller, err := producer.NewPoller(sctx, producer.PollerOptions{
			DSN:      cfg.Poll.DSN,
			Query:    cfg.Poll.Query,
			Stream:   cfg.Poll.Stream,
			Interval: cfg.Poll.Interval,
			Logger:   logpkg.Component(logger, "poller"),
		}, eng)
		if err != nil {
			hsrv.Close()
			eng.Shutdown()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(sctx)
		}()
	}

	<-sctx.Done()
	// Stop accepting traffic before tearing down connections so transports
	// observe clean closes rather than engine errors.
	hsrv.Close()
	wg.Wait()
	eng.Shutdown()
	return nil
}
