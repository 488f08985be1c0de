// Package server provides the HTTP server for vetflow.
//
// The server hosts user sessions and runs workflows in them. A client logs
// in, starts a workflow, and then answers the dialogs the workflow raises
// until it finishes; every run is recorded in the run history.
//
// # Endpoints
//
//   - GET /health - Health check, returns "ok" or 503 when the store is unreachable
//   - GET /metrics - Prometheus metrics
//   - GET /config - Returns current configuration as YAML (?format=json for JSON), credentials masked
//   - POST /reload - Reloads configuration from disk
//   - GET /api/status - Sessions, running workflows and next housekeeping run
//   - GET /api/workflows - Names of the workflows that can be started
//   - POST /api/sessions - Logs a user in
//   - DELETE /api/sessions/:session - Logs out
//   - GET /api/sessions/:session/context - The session's global context
//   - POST /api/sessions/:session/workflows/:name - Starts a workflow
//   - GET /api/sessions/:session/status - Current run, dialogs and errors
//   - GET /api/sessions/:session/dialogs - Pending dialogs
//   - POST /api/sessions/:session/dialogs/:dialog - Answers a dialog
//   - GET /api/history - Finished runs, most recent first; filter with ?workflow=, ?user= and ?limit=
//   - GET /api/history/:id - One run with task statuses and logs
//   - POST /api/history/reload - Re-reads the run history from disk
//
// # Architecture
//
// Config-derived state (the config itself and the practice objects new
// sessions are seeded with) is swapped atomically on reload, which happens on
// POST /reload or when the config file changes. Workflows are built from the
// config current when they start, so a reload never disturbs a running
// workflow. The store backend, the listener and the state directory are only
// read at startup.
//
// # Example
//
//	srv, err := server.New("/etc/vetflow/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/alexedwards/flow"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/nomis52/vetflow/archetype"
	"github.com/nomis52/vetflow/buildinfo"
	"github.com/nomis52/vetflow/config"
	"github.com/nomis52/vetflow/logging"
	"github.com/nomis52/vetflow/metrics"
	"github.com/nomis52/vetflow/server/cron"
	"github.com/nomis52/vetflow/server/handlers"
	"github.com/nomis52/vetflow/server/runner"
	"github.com/nomis52/vetflow/server/types"
	"github.com/nomis52/vetflow/session"
	"github.com/nomis52/vetflow/store"
	"github.com/nomis52/vetflow/store/backend"
	"github.com/nomis52/vetflow/workflows"
	"github.com/nomis52/vetflow/workflows/builtin"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	// maxHistory is the number of finished runs kept in memory.
	maxHistory = 200
)

// serverDeps holds config-derived dependencies that are swapped atomically on reload.
type serverDeps struct {
	config *config.Config
	seed   []archetype.Object
}

// Server is the vetflow HTTP server.
type Server struct {
	addr       string
	configPath string
	logger     *slog.Logger
	logCloser  io.Closer
	logLevel   *slog.LevelVar
	clock      clock.Clock
	deps       atomic.Pointer[serverDeps]
	httpServer *http.Server

	objects      store.Store
	storeCloser  io.Closer
	sessions     *session.Manager
	registry     *workflows.Registry
	history      runner.StateStore
	runner       *runner.Runner
	metrics      *metrics.ScrapeRegistry
	tracing      *sdktrace.TracerProvider
	housekeeping *cron.CronTrigger
	certs        *CertLoader
	watchConfig  bool
	properties   types.ServerProperties
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr overrides the listen address from the config.
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithClock sets the clock used for sessions, runs and housekeeping.
func WithClock(c clock.Clock) Option {
	return func(s *Server) error {
		s.clock = c
		return nil
	}
}

// WithoutConfigWatch disables reloading when the config file changes.
func WithoutConfigWatch() Option {
	return func(s *Server) error {
		s.watchConfig = false
		return nil
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration, opens the store and initializes all dependencies.
func New(configPath string, opts ...Option) (*Server, error) {
	s := &Server{
		configPath:  configPath,
		logLevel:    &slog.LevelVar{},
		clock:       clock.New(),
		watchConfig: true,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if s.addr == "" {
		s.addr = cfg.Listener.Addr
	}

	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("error getting hostname: %w", err)
	}
	s.properties = types.ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: s.clock.Now(),
		Hostname:  hostname,
	}

	logger, err := logging.New(cfg.Logging, logging.WithLevelVar(s.logLevel))
	if err != nil {
		return nil, err
	}
	s.logger, s.logCloser = logger.Logger, logger

	if err := s.init(&cfg); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// init builds everything that is only read from the config at startup.
func (s *Server) init(cfg *config.Config) error {
	ctx := context.Background()

	objects, closer, err := backend.Open(ctx, cfg.Store, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	s.objects, s.storeCloser = objects, closer

	if cfg.Store.Fixtures != "" {
		if err := s.loadFixtures(ctx, cfg.Store.Fixtures); err != nil {
			return err
		}
	}

	seed, err := EnsurePractice(ctx, s.objects, cfg.Practice)
	if err != nil {
		return err
	}
	s.deps.Store(&serverDeps{config: cfg, seed: seed})

	s.metrics, err = metrics.NewScrapeRegistry(metrics.WithNamespace(cfg.Monitoring.MetricsPrefix))
	if err != nil {
		return err
	}
	taskMetrics, err := metrics.NewTaskMetrics(s.metrics)
	if err != nil {
		return err
	}
	active, err := s.metrics.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_active",
		Help: "Live user sessions.",
	})
	if err != nil {
		return err
	}

	s.sessions = session.NewManager(
		session.WithTTL(cfg.Session.TTL),
		session.WithCapacity(cfg.Session.MaxSessions),
		session.WithHistorySize(cfg.Session.HistorySize),
		session.WithLogger(s.logger),
		session.WithClock(s.clock),
		session.WithActiveGauge(active),
	)

	if cfg.StateDir != "" {
		disk, err := runner.NewDiskStore(filepath.Join(cfg.StateDir, "runs"), maxHistory, s.logger)
		if err != nil {
			return err
		}
		s.history = disk
	} else {
		s.history = runner.NewMemoryStore()
	}

	runnerOpts := []runner.Option{
		runner.WithStateStore(s.history),
		runner.WithClock(s.clock),
		runner.WithTaskMetrics(taskMetrics),
	}
	if cfg.Tracing.Stdout {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}
		s.tracing = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		runnerOpts = append(runnerOpts, runner.WithTracer(s.tracing.Tracer("vetflow")))
	}

	s.registry = builtin.Registry()
	s.runner = runner.New(s.logger, s, s.registry, s.objects, runnerOpts...)

	s.housekeeping, err = cron.NewCronTrigger(cfg.Housekeeping.SweepSchedule, s.housekeep, s.logger, cron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("creating housekeeping trigger: %w", err)
	}

	if cfg.Listener.CertFile != "" {
		s.certs, err = NewCertLoader(cfg.Listener.CertFile, cfg.Listener.KeyFile, s.logger)
		if err != nil {
			return err
		}
	}
	s.properties.Addr = s.addr
	s.properties.TLS = s.certs != nil
	s.properties.StoreBackend = cfg.Store.Backend
	return nil
}

func (s *Server) loadFixtures(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer f.Close()
	objs, err := store.LoadFixtures(ctx, s.objects, f)
	if err != nil {
		return err
	}
	s.logger.Info("fixtures loaded", "path", path, "objects", len(objs))
	return nil
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// SetLogLevel changes the server's log level at runtime.
func (s *Server) SetLogLevel(level slog.Level) {
	s.logLevel.Set(level)
}

// Reload reads the config from disk and swaps in the config-derived state.
// Settings that are only read at startup are reported and otherwise ignored.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	seed, err := EnsurePractice(context.Background(), s.objects, cfg.Practice)
	if err != nil {
		return err
	}

	prev := s.Config()
	if prev.Store != cfg.Store || prev.Listener != cfg.Listener || prev.StateDir != cfg.StateDir {
		s.logger.Warn("store, listener and state_dir changes take effect after a restart")
	}
	if prev.Housekeeping.SweepSchedule != cfg.Housekeeping.SweepSchedule {
		s.logger.Warn("housekeeping schedule changes take effect after a restart")
	}

	s.logLevel.Set(level)
	s.deps.Store(&serverDeps{config: &cfg, seed: seed})
	s.logger.Info("configuration loaded", "config_path", s.configPath)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.deps.Load().config
}

// Seed returns the practice and location new sessions start with.
func (s *Server) Seed() []archetype.Object {
	return s.deps.Load().seed
}

// ActiveSessions returns the number of live sessions.
func (s *Server) ActiveSessions() int {
	return s.sessions.Len()
}

// RunningWorkflows returns the number of workflows in progress.
func (s *Server) RunningWorkflows() int {
	return s.runner.Running()
}

// NextSweep returns the next housekeeping run.
func (s *Server) NextSweep() *time.Time {
	if s.housekeeping == nil {
		return nil
	}
	next := s.housekeeping.NextRun()
	return &next
}

// Properties returns build and host details of this instance.
func (s *Server) Properties() types.ServerProperties {
	return s.properties
}

// housekeep expires idle sessions and prunes old runs.
func (s *Server) housekeep() error {
	s.sessions.Sweep()
	_, err := s.runner.Prune(s.Config().Housekeeping.HistoryMaxAge)
	return err
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := flow.New()
	s.registerRoutes(mux)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = &tls.Config{GetCertificate: s.certs.GetCertificate}
	}

	if err := s.startWatchers(ctx); err != nil {
		return err
	}
	go s.sessions.Start(ctx)
	s.logger.Info("starting housekeeping", "next_run", s.housekeeping.NextRun())
	s.housekeeping.Start(ctx)

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"config_path", s.configPath,
			"tls", s.certs != nil,
		)
		var err error
		if s.certs != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) startWatchers(ctx context.Context) error {
	if s.watchConfig {
		w, err := NewFileWatcher(s.logger.With("watch", "config"), s.Reload, s.configPath)
		if err != nil {
			return err
		}
		w.Start(ctx)
	}
	if s.certs != nil {
		w, err := NewFileWatcher(s.logger.With("watch", "tls"), s.certs.Reload, s.certs.Files()...)
		if err != nil {
			return err
		}
		w.Start(ctx)
	}
	return nil
}

// close ends every session, then releases the store and exporters.
func (s *Server) close() {
	if s.runner != nil {
		s.runner.Shutdown()
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	if s.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.logger.Warn("failed to flush traces", "error", err)
		}
	}
	if s.storeCloser != nil {
		if err := s.storeCloser.Close(); err != nil {
			s.logger.Warn("failed to close store", "error", err)
		}
	}
	if s.logCloser != nil {
		s.logCloser.Close()
	}
}

func (s *Server) registerRoutes(mux *flow.Mux) {
	logger := s.logger.With("component", "api")

	mux.Handle("/health", handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"store": func(ctx context.Context) error {
			_, err := s.objects.Find(ctx, archetype.KindPractice)
			return err
		},
	}), "GET")
	mux.Handle("/metrics", s.metrics.Handler(), "GET")
	mux.Handle("/config", handlers.NewConfigHandler(s), "GET")
	mux.Handle("/reload", handlers.NewReloadHandler(s.logger, "configuration", s), "POST")

	mux.Handle("/api/status", handlers.NewAPIStatusHandler(s), "GET")
	mux.Handle("/api/workflows", handlers.NewAvailableWorkflowsHandler(s.registry), "GET")

	mux.Handle("/api/sessions", handlers.NewLoginHandler(logger, s.sessions, s.objects, s), "POST")
	mux.Handle("/api/sessions/:session", handlers.NewLogoutHandler(logger, s.sessions, s.runner), "DELETE")
	mux.Handle("/api/sessions/:session/context", handlers.NewContextHandler(s.sessions), "GET")
	mux.Handle("/api/sessions/:session/workflows/:name", handlers.NewRunHandler(logger, s.sessions, s.objects, s.runner), "POST")
	mux.Handle("/api/sessions/:session/status", handlers.NewRunStatusHandler(s.sessions, s.runner), "GET")
	mux.Handle("/api/sessions/:session/dialogs", handlers.NewDialogsHandler(s.sessions), "GET")
	mux.Handle("/api/sessions/:session/dialogs/:dialog", handlers.NewRespondHandler(logger, s.sessions), "POST")

	mux.Handle("/api/history", handlers.NewHistoryHandler(s.runner), "GET")
	if disk, ok := s.history.(handlers.Reloader); ok {
		mux.Handle("/api/history/reload", handlers.NewReloadHandler(s.logger, "run history", disk), "POST")
	}
	mux.Handle("/api/history/:id", handlers.NewHistoryRunHandler(s.runner), "GET")
}
