// Package server exposes the gymtime HTTP and websocket API.
//
// HTTP endpoints cover transcript parsing, summaries, workout CRUD, and
// progression stats; the websocket endpoint ingests live voice audio and
// streams amplitude/transcript feedback back to the client. All /v1 routes
// require bearer authentication.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gymtime/gymtime/internal/auth"
	"github.com/gymtime/gymtime/internal/capture"
	"github.com/gymtime/gymtime/internal/config"
	"github.com/gymtime/gymtime/internal/observe"
	"github.com/gymtime/gymtime/internal/parser"
	"github.com/gymtime/gymtime/internal/store"
	"github.com/gymtime/gymtime/pkg/provider/embeddings"
	"github.com/gymtime/gymtime/pkg/provider/stt"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

// Deps bundles the collaborators a Server needs. All fields are required
// except Embedder, which disables summary indexing when nil.
type Deps struct {
	Auth      *auth.TokenAuthenticator
	Parser    *parser.Parser
	STT       stt.Provider
	Workouts  store.WorkoutStore
	Summaries store.SummaryIndex
	Embedder  embeddings.Provider
	Metrics   *observe.Metrics
	Logger    *slog.Logger

	// Ready lists named readiness probes for /readyz.
	Ready map[string]func(ctx context.Context) error
}

// Server is the gymtime API server.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	log      *slog.Logger
	captures *capture.Manager
	handler  http.Handler
}

// New builds a Server around deps.
func New(cfg config.ServerConfig, deps Deps) (*Server, error) {
	if deps.Auth == nil || deps.Parser == nil || deps.Workouts == nil {
		return nil, errors.New("server: auth, parser, and workouts are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}

	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  deps.Logger,
	}
	s.captures = capture.NewManager(func() *capture.Session {
		return capture.NewSession(deps.STT, deps.Parser, capture.WithLogger(deps.Logger))
	})
	s.handler = s.routes()
	return s, nil
}

// Handler returns the fully-wired root handler, exported for tests.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Unauthenticated surface.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authenticated API.
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/parse", s.handleParse)
	api.HandleFunc("POST /v1/summarize", s.handleSummarize)
	api.HandleFunc("GET /v1/workouts", s.handleListWorkouts)
	api.HandleFunc("GET /v1/workouts/similar", s.handleSimilar)
	api.HandleFunc("PATCH /v1/workouts/{id}", s.handleUpdateWorkout)
	api.HandleFunc("DELETE /v1/workouts/{id}", s.handleDeleteWorkout)
	api.HandleFunc("GET /v1/stats", s.handleStats)
	api.HandleFunc("GET /v1/voice", s.handleVoice)
	mux.Handle("/v1/", s.bearerAuth(api))

	return observe.Middleware(s.deps.Metrics, mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("server listening", slog.String("addr", addr), slog.Bool("tls", s.cfg.TLS != nil))
		var err error
		if s.cfg.TLS != nil {
			err = srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
