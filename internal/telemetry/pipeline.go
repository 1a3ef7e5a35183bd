package telemetry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// PersistenceGateway is what the pipeline needs from the database gateway.
// Satisfied by influx.Gateway.
type PersistenceGateway interface {
	Writer
	Connect(cfg config.InfluxDBConfig, probe bool) error
}

// Deps holds the collaborators the pipeline wires together.
type Deps struct {
	Logger  *logging.Logger
	Gateway PersistenceGateway

	// Spill is the optional store for failed flush batches.
	Spill *SpillStore

	// NewDirectory creates the controller directory client for the
	// configured address. Called once per reload.
	NewDirectory func(address string, regaPort int) ccu.Directory

	// NewSource creates a fresh live-event subscription. Called once per
	// reload, always after the previous source finished its teardown.
	NewSource func() ccu.EventSource

	// Hostname is the local host identifier written as the source tag.
	Hostname string

	// OnControllerConnected, if set, is invoked once the live subscription
	// and the directory bootstrap have completed. UI layers subscribe to it.
	OnControllerConnected func()
}

// Pipeline wires filter, builder, buffer, poller, gateway, and the live
// event subscription together, and re-bootstraps the whole chain when the
// configuration changes.
//
// Thread Safety: Reload and Stop serialise on an internal mutex; the event
// callback and the poller run concurrently against the buffer, which has
// its own critical section.
type Pipeline struct {
	deps   Deps
	logger *logging.Logger

	mu        sync.Mutex
	source    ccu.EventSource
	poller    *Poller
	buffer    *Buffer
	filter    *Filter
	directory ccu.Directory
}

// Stats is a point-in-time snapshot of pipeline counters.
type Stats struct {
	BufferedPoints int   `json:"buffered_points"`
	DroppedPoints  int64 `json:"dropped_points"`
}

// NewPipeline creates a pipeline from its collaborators.
//
// Parameters:
//   - deps: Required dependencies (logger, gateway, source factory)
//
// Returns:
//   - *Pipeline: Pipeline ready for its first Reload
//   - error: If required dependencies are missing
func NewPipeline(deps Deps) (*Pipeline, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if deps.NewSource == nil {
		return nil, fmt.Errorf("source factory is required")
	}

	return &Pipeline{
		deps:   deps,
		logger: deps.Logger.With("component", "pipeline"),
	}, nil
}

// Reload (re)bootstraps the pipeline from a configuration snapshot.
//
// Sequencing, in order:
//
//	(a) stop the previous live subscription and wait for its teardown,
//	    stop the poller, and flush any leftover buffered points
//	(b) connect the database per configuration, or continue in a degraded
//	    non-persisting mode when database settings are absent
//	(c) create a fresh subscription with the filter→builder→buffer callback
//	(d) when a controller address is configured: resolve interfaces,
//	    connect the subscription, kick off the directory prefetch, start
//	    the poller, and notify controller-connected subscribers
//
// Directory fetches are not a precondition for accepting live events;
// until they complete, lookups degrade to "-" placeholders.
//
// All failures along the way are degraded modes, not fatal: Reload returns
// an error only when the new subscription itself cannot be created.
func (p *Pipeline) Reload(ctx context.Context, cfg *config.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.teardownLocked(ctx)

	filter := NewFilter(cfg.Whitelist, cfg.Datapoints, p.logger)
	if filter.Empty() {
		p.logger.Warn("whitelist and datapoint selection empty, nothing will be logged")
	}

	if cfg.InfluxDB.Configured() {
		if err := p.deps.Gateway.Connect(cfg.InfluxDB, false); err != nil {
			p.logger.Warn("database connect failed, ingestion continues without persistence",
				"error", err,
			)
		}
	} else {
		p.logger.Warn("missing database settings, running in non-persisting mode")
	}

	buffer := NewBuffer(cfg.Buffer.Size, p.deps.Gateway, p.deps.Spill, cfg.Buffer.MaxRetries, p.logger)

	var directory ccu.Directory
	if cfg.CCU.Address != "" && p.deps.NewDirectory != nil {
		directory = p.deps.NewDirectory(cfg.CCU.Address, cfg.CCU.RegaPort)
	}

	var resolver AddressResolver
	if directory != nil {
		resolver = directory
	}
	builder := NewBuilder(resolver, p.deps.Hostname)

	source := p.deps.NewSource()
	source.OnEvent(func(event ccu.Event) {
		if !filter.ShouldLog(event.Address) {
			return
		}
		point := builder.FromEvent(event)
		p.logger.Info("logging event",
			"address", event.Address,
			"value", event.Value,
		)
		buffer.Append(context.Background(), point)
	})

	p.filter = filter
	p.buffer = buffer
	p.directory = directory
	p.source = source

	if cfg.CCU.Address == "" {
		p.logger.Info("no controller address configured, live feed disabled")
		return nil
	}

	return p.bootstrapControllerLocked(ctx, cfg, source, directory, builder, buffer)
}

// bootstrapControllerLocked connects the live subscription and starts the
// poller. Caller holds p.mu.
func (p *Pipeline) bootstrapControllerLocked(ctx context.Context, cfg *config.Config, source ccu.EventSource, directory ccu.Directory, builder *Builder, buffer *Buffer) error {
	if directory == nil {
		p.logger.Warn("no directory client available, live feed disabled")
		return nil
	}

	p.logger.Info("querying interfaces", "ccu", cfg.CCU.Address)
	interfaces, err := directory.FetchInterfaces(ctx)
	if err != nil {
		p.logger.Warn("resolving controller interfaces failed, live feed disabled until next reload",
			"error", err,
		)
		return nil
	}

	for _, iface := range interfaces {
		p.logger.Info("adding interface",
			"name", iface.Name,
			"host", iface.Host,
			"port", iface.Port,
		)
		source.AddInterface(iface.Name, iface.Host, iface.Port, iface.Path)
	}

	if err := source.Init(); err != nil {
		return fmt.Errorf("initialising event subscription: %w", err)
	}
	if err := source.Connect(); err != nil {
		return fmt.Errorf("connecting event subscription: %w", err)
	}

	// Prefetch device and room directories in the background. Not a
	// precondition: lookups miss gracefully until these land.
	go p.prefetchDirectory(directory)

	poller := NewPoller(directory, builder, buffer, cfg.Variables, cfg.Programs, cfg.Poller.GetInterval(), p.logger)
	poller.Start(context.Background())
	p.poller = poller

	p.logger.Info("controller connected", "interfaces", len(interfaces))
	if p.deps.OnControllerConnected != nil {
		p.deps.OnControllerConnected()
	}

	return nil
}

// prefetchDirectory warms the device and room caches.
func (p *Pipeline) prefetchDirectory(directory ccu.Directory) {
	ctx := context.Background()

	if _, err := directory.FetchDevices(ctx, false); err != nil {
		p.logger.Warn("fetching device directory failed, names degrade to placeholders",
			"error", err,
		)
		return
	}
	p.logger.Info("device directory loaded")

	if _, err := directory.FetchRooms(ctx); err != nil {
		p.logger.Warn("fetching room directory failed, rooms degrade to placeholders",
			"error", err,
		)
		return
	}
	p.logger.Info("room directory loaded")
}

// teardownLocked stops the previous generation of the pipeline. The
// subscription stop is awaited before anything else so a replacement
// subscription can never overlap with the old one (no duplicate deliveries,
// no duplicate writes). Caller holds p.mu.
func (p *Pipeline) teardownLocked(ctx context.Context) {
	if p.source != nil {
		p.logger.Info("removing old event subscription")
		if err := p.source.Stop(); err != nil {
			p.logger.Warn("stopping event subscription", "error", err)
		}
		p.source = nil
		p.logger.Info("event subscription stopped")
	}

	if p.poller != nil {
		p.poller.Stop()
		p.poller = nil
	}

	if p.buffer != nil {
		p.buffer.Flush(ctx)
		p.buffer = nil
	}
}

// Stop tears the pipeline down, flushing any remaining buffered points.
func (p *Pipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked(ctx)
}

// Directory returns the current directory client, or nil when no controller
// is configured. The admin device browser uses it.
func (p *Pipeline) Directory() ccu.Directory {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.directory
}

// Filter returns the current filter snapshot, or nil before the first
// reload. The admin device browser uses it for annotation.
func (p *Pipeline) Filter() *Filter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filter
}

// Stats returns current pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	buffer := p.buffer
	p.mu.Unlock()

	if buffer == nil {
		return Stats{}
	}
	return Stats{
		BufferedPoints: buffer.Len(),
		DroppedPoints:  buffer.DroppedPoints(),
	}
}
