// Package server exposes the error generator, history and disclosure policy over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/polisai/errorflow/internal/governance"
	"github.com/polisai/errorflow/pkg/config"
	"github.com/polisai/errorflow/pkg/disclosure"
	"github.com/polisai/errorflow/pkg/generator"
	"github.com/polisai/errorflow/pkg/history"
	"github.com/polisai/errorflow/pkg/logging"
	"github.com/polisai/errorflow/pkg/telemetry"
)

// Options wires the server's collaborators. Generator, History and Policy are
// required.
type Options struct {
	Generator *generator.Generator
	History   *history.History
	Policy    *disclosure.Policy
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	Environment      string
	SimulatedLatency time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// RateLimit throttles POST /api/errors. A zero rate disables it.
	RateLimit config.RateLimitConfig
	TLS       *config.TLSConfig
}

// Server is the errorflow HTTP service.
type Server struct {
	generator   *generator.Generator
	history     *history.History
	policy      *disclosure.Policy
	metrics     *telemetry.Metrics
	logger      *logging.StructuredLogger
	tracer      trace.Tracer
	environment string
	latency     time.Duration
	limiter     *governance.RateLimiter
	tls         *config.TLSConfig

	handler http.Handler
	server  *http.Server

	mu      sync.Mutex
	running bool
}

// New builds a server and its route table.
func New(opts Options) (*Server, error) {
	if opts.Generator == nil {
		return nil, errors.New("server requires a generator")
	}
	if opts.History == nil {
		return nil, errors.New("server requires a history")
	}
	if opts.Policy == nil {
		return nil, errors.New("server requires a disclosure policy")
	}
	if opts.RateLimit.RequestsPerSecond < 0 || opts.RateLimit.Burst < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %+v", opts.RateLimit)
	}
	if opts.SimulatedLatency < 0 {
		return nil, fmt.Errorf("simulated latency must not be negative, got %s", opts.SimulatedLatency)
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	environment, err := config.NormalizeEnvironment(opts.Environment)
	if err != nil {
		return nil, err
	}

	limiter := governance.NewRateLimiter(map[string]governance.RateLimiterConfig{
		routeGenerate: {
			RequestsPerSecond: opts.RateLimit.RequestsPerSecond,
			BurstSize:         opts.RateLimit.Burst,
		},
	})

	s := &Server{
		generator:   opts.Generator,
		history:     opts.History,
		policy:      opts.Policy,
		metrics:     metrics,
		logger:      logging.NewStructuredLogger(opts.Logger),
		tracer:      tp.Tracer(telemetry.TracerName),
		environment: environment,
		latency:     opts.SimulatedLatency,
		limiter:     limiter,
		tls:         opts.TLS,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	handler = s.metrics.Middleware(handler)
	handler = s.loggingMiddleware(handler)
	s.handler = otelhttp.NewHandler(handler, "errorflow.http", otelhttp.WithTracerProvider(tp))

	s.server = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	if s.tls != nil && s.tls.Enabled {
		s.server.TLSConfig = s.tls.ServerTLS()
	}

	s.metrics.SetHistoryEntries(s.history.Len())
	return s, nil
}

// Handler returns the fully instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on addr and serves until Stop is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.server.Addr = addr
	s.mu.Unlock()

	var err error
	if s.tls != nil && s.tls.Enabled {
		s.logger.Logger().Info("Starting errorflow server", "addr", addr, "tls", true, "environment", s.environment)
		err = s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
	} else {
		s.logger.Logger().Info("Starting errorflow server", "addr", addr, "environment", s.environment)
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	return s.server.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/errors", s.handleCreateError)
	mux.HandleFunc("GET /api/errors", s.handleListErrors)
	mux.HandleFunc("DELETE /api/errors", s.handleClearErrors)
	mux.HandleFunc("GET /api/errors/latest", s.handleLatestError)
	mux.HandleFunc("GET /api/errors/{id}", s.handleGetError)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &telemetry.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.LogHTTPRequest(r.Context(), r.Method, r.URL.Path, recorder.Status, time.Since(start))
	})
}
