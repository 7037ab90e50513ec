package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rzbill/pulse/internal/engine"
	"github.com/rzbill/pulse/internal/metrics"
	"github.com/rzbill/pulse/internal/server/http/controllers"
)

// Options wires the server's collaborators.
type Options struct {
	Engine  *engine.Engine
	Metrics *metrics.Collector
	// SendBuffer bounds each WebSocket/SSE connection's outbound queue.
	SendBuffer int
	Logger     zerolog.Logger
}

// Server is the HTTP front of the engine.
type Server struct {
	srv *http.Server
	lis net.Listener
	log zerolog.Logger
}

// New builds a Server with all controllers registered.
func New(opts Options) *Server {
	mux := http.NewServeMux()
	reg := controllers.NewControllerRegistry(opts.Engine, opts.Metrics, opts.SendBuffer, opts.Logger)
	reg.RegisterAllRoutes(mux)
	return &Server{
		srv: &http.Server{Handler: cors(mux)},
		log: opts.Logger,
	}
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully with a short drain window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.log.Info().Str("addr", l.Addr().String()).Msg("http listening")
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Addr returns the bound listen address, empty before ListenAndServe.
func (s *Server) Addr() string {
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Close force-closes the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
