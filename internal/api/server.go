package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
	"github.com/ccu-tools/ccuflux/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Pipeline is what the API server needs from the ingestion pipeline.
// Satisfied by telemetry.Pipeline.
type Pipeline interface {
	Reload(ctx context.Context, cfg *config.Config) error
	Directory() ccu.Directory
	Filter() *telemetry.Filter
	Stats() telemetry.Stats
}

// ConnectionTester validates database settings without touching the live
// connection. Satisfied by influx.Gateway.
type ConnectionTester interface {
	TestConnection(ctx context.Context, cfg config.InfluxDBConfig) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     *config.Config
	ConfigPath string
	Logger     *logging.Logger
	Pipeline   Pipeline
	Tester     ConnectionTester
	Version    string
}

// Server is the admin HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	configPath string
	logger     *logging.Logger
	pipeline   Pipeline
	tester     ConnectionTester
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc

	// cfgMu guards current. Config-mutating endpoints replace the whole
	// snapshot under the lock, then persist and reload outside of it.
	cfgMu   sync.RWMutex
	current *config.Config
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, pipeline)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}

	return &Server{
		cfg:        deps.Config.API,
		configPath: deps.ConfigPath,
		logger:     deps.Logger,
		pipeline:   deps.Pipeline,
		tester:     deps.Tester,
		version:    deps.Version,
		current:    deps.Config,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// NotifyControllerConnected broadcasts a controller-connected event to
// WebSocket clients. The pipeline calls it after each successful bootstrap
// so the web UI can refresh its device browser.
func (s *Server) NotifyControllerConnected() {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast("controller.connected", map[string]any{
		"connected": true,
	})
}

// snapshot returns the current configuration under the read lock.
func (s *Server) snapshot() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.current
}

// applyConfig validates the new configuration, persists it, swaps the
// in-memory snapshot, and reloads the pipeline.
//
// Persisting before reloading means a reload failure leaves the saved
// document intact; the next restart applies it again.
func (s *Server) applyConfig(ctx context.Context, next *config.Config) error {
	if err := next.Validate(); err != nil {
		return err
	}

	if s.configPath != "" {
		if err := next.Save(s.configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	s.cfgMu.Lock()
	s.current = next
	s.cfgMu.Unlock()

	if err := s.pipeline.Reload(ctx, next); err != nil {
		return fmt.Errorf("reloading pipeline: %w", err)
	}
	return nil
}
