package influx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	ihttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// defaultProbeTimeout bounds the connectivity probe query.
const defaultProbeTimeout = 10 * time.Second

// State is the gateway connection state.
type State int

// Connection states. Transitions are driven exclusively by the gateway:
// Disconnected → Connecting → Connected, with Connecting → Disconnected on
// failure.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Gateway owns the InfluxDB connection lifecycle and the write call.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
type Gateway struct {
	logger *logging.Logger

	mu         sync.Mutex
	state      State
	client     influxdb2.Client
	writeAPI   api.WriteAPIBlocking
	cfg        config.InfluxDBConfig
	retryDelay time.Duration
	retryTimer *time.Timer
	closed     bool
}

// NewGateway creates a disconnected gateway.
//
// Parameters:
//   - logger: Logger for connection lifecycle and write failures
//
// Returns:
//   - *Gateway: Gateway in the Disconnected state
func NewGateway(logger *logging.Logger) *Gateway {
	return &Gateway{
		logger: logger.With("component", "influx"),
	}
}

// Connect establishes the store handle per configuration.
//
// In normal mode (probe=false) the gateway transitions directly to Connected
// once the handle is constructed; reachability is discovered lazily on the
// first write failure. With probe=true a lightweight read query verifies the
// server first.
//
// A failure whose status is 503 ("service not ready") schedules a reconnect
// after the configured retry delay, indefinitely, until success. Any other
// failure is logged once and the gateway remains Disconnected until a fresh
// Connect (external reload).
//
// At most one live handle exists: a successful Connect replaces any
// previous one.
//
// Parameters:
//   - cfg: Database settings from configuration
//   - probe: Whether to verify reachability before reporting success
//
// Returns:
//   - error: The connect failure, nil once the handle is live
func (g *Gateway) Connect(cfg config.InfluxDBConfig, probe bool) error {
	err := g.establish(cfg, probe)
	if err == nil {
		return nil
	}

	if isNotReady(err) {
		g.scheduleRetry(cfg, probe)
		return err
	}

	g.logger.Error("database connection failed", "error", err)
	return err
}

// establish performs one connect attempt.
func (g *Gateway) establish(cfg config.InfluxDBConfig, probe bool) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL(),
		cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Millisecond),
	)

	if probe {
		ctx, cancel := context.WithTimeout(context.Background(), defaultProbeTimeout)
		err := probeQuery(ctx, client, cfg)
		cancel()
		if err != nil {
			client.Close()
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		client.Close()
		return fmt.Errorf("%w: gateway closed", ErrConnectionFailed)
	}

	g.state = StateConnecting

	// Replace rather than duplicate any previous handle.
	if g.client != nil {
		g.client.Close()
	}
	g.stopRetryLocked()

	g.client = client
	g.writeAPI = client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
	g.cfg = cfg
	g.retryDelay = cfg.GetRetryDelay()
	g.state = StateConnected

	g.logger.Info("database connection initialized",
		"url", cfg.URL(),
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	return nil
}

// scheduleRetry arms a single reconnect attempt after the retry delay.
func (g *Gateway) scheduleRetry(cfg config.InfluxDBConfig, probe bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return
	}

	g.state = StateDisconnected
	g.stopRetryLocked()

	delay := g.retryDelay
	if delay <= 0 {
		delay = cfg.GetRetryDelay()
	}

	g.logger.Warn("database not ready, scheduling reconnect", "delay", delay)
	g.retryTimer = time.AfterFunc(delay, func() {
		//nolint:errcheck // Failures re-arm the timer through the same path
		g.Connect(cfg, probe)
	})
}

// stopRetryLocked cancels a pending reconnect. Caller holds g.mu.
func (g *Gateway) stopRetryLocked() {
	if g.retryTimer != nil {
		g.retryTimer.Stop()
		g.retryTimer = nil
	}
}

// TestConnection probes the server with a lightweight read query.
//
// The probe runs against a throwaway client and never mutates the gateway's
// connection state. Used by configuration validation flows, never by the
// ingestion path.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - cfg: Database settings to verify
//
// Returns:
//   - error: nil if the server answered the probe, the failure otherwise
func (g *Gateway) TestConnection(ctx context.Context, cfg config.InfluxDBConfig) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL(),
		cfg.Token,
		influxdb2.DefaultOptions().SetPrecision(time.Millisecond),
	)
	defer client.Close()

	probeCtx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	if err := probeQuery(probeCtx, client, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return nil
}

// probeQuery runs the connectivity probe against the configured bucket.
func probeQuery(ctx context.Context, client influxdb2.Client, cfg config.InfluxDBConfig) error {
	query := fmt.Sprintf("from(bucket: %q) |> range(start: -1m)", cfg.Bucket)

	result, err := client.QueryAPI(cfg.Org).Query(ctx, query)
	if err != nil {
		return err
	}
	defer result.Close()

	// Drain so a server-side error mid-stream is surfaced too.
	for result.Next() {
	}
	return result.Err()
}

// Write performs a blocking batched write of the given points.
//
// Points are written to the configured org and bucket at millisecond
// precision. On failure the error is returned to the caller; the gateway
// does not retry the batch and does not re-queue the points; the buffer
// owns retention policy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - points: Points in insertion order
//
// Returns:
//   - error: ErrNotConnected without a live handle, ErrWriteFailed on rejection
func (g *Gateway) Write(ctx context.Context, points []*write.Point) error {
	g.mu.Lock()
	writeAPI := g.writeAPI
	state := g.state
	g.mu.Unlock()

	if state != StateConnected || writeAPI == nil {
		return ErrNotConnected
	}
	if len(points) == 0 {
		return nil
	}

	if err := writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return nil
}

// State returns the current connection state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Close releases the store handle and cancels any pending reconnect.
//
// Returns:
//   - error: Always nil; closing twice is a no-op
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	g.stopRetryLocked()

	if g.client != nil {
		g.client.Close()
		g.client = nil
		g.writeAPI = nil
	}
	g.state = StateDisconnected

	return nil
}

// isNotReady reports whether an error carries the "service not ready"
// signal: HTTP 503, which InfluxDB answers while it is still starting up.
func isNotReady(err error) bool {
	var httpErr *ihttp.Error
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusServiceUnavailable
	}
	return false
}
