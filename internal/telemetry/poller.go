package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/ccu-tools/ccuflux/internal/ccu"
	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// PollDirectory is the subset of the directory the poller needs.
type PollDirectory interface {
	FetchVariablesByIDs(ctx context.Context, ids []string) ([]ccu.Variable, error)
	FetchProgramsByIDs(ctx context.Context, ids []string) ([]ccu.Program, error)
}

// Poller synthesises points for entities that never push changes: system
// variables and programs. On a fixed interval it asks the directory for
// current snapshots and appends points for reported changes to the same
// buffer the live feed uses.
//
// The poller holds no diff state of its own; "changed since last fetch" is
// the directory's bookkeeping.
type Poller struct {
	directory PollDirectory
	builder   *Builder
	buffer    *Buffer

	variables []string
	programs  []string
	interval  time.Duration

	logger *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poller for the given entity IDs.
//
// Parameters:
//   - directory: Snapshot source with change bookkeeping
//   - builder: Point builder shared with the live path
//   - buffer: Destination buffer shared with the live path
//   - variables: System variable IDs to poll
//   - programs: Program IDs to poll
//   - interval: Poll cadence
//   - logger: Logger for poll diagnostics
//
// Returns:
//   - *Poller: Poller ready for Start
func NewPoller(directory PollDirectory, builder *Builder, buffer *Buffer, variables, programs []string, interval time.Duration, logger *logging.Logger) *Poller {
	return &Poller{
		directory: directory,
		builder:   builder,
		buffer:    buffer,
		variables: variables,
		programs:  programs,
		interval:  interval,
		logger:    logger.With("component", "poller"),
	}
}

// Start begins polling on the configured interval. The first poll runs
// immediately; subsequent polls follow the ticker. Start returns at once;
// polling stops when Stop is called or the context is cancelled.
//
// Parameters:
//   - ctx: Parent context bounding the poll loop
func (p *Poller) Start(ctx context.Context) {
	if len(p.variables) == 0 && len(p.programs) == 0 {
		p.logger.Debug("no variables or programs configured, poller idle")
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.pollOnce(pollCtx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.pollOnce(pollCtx)
			case <-pollCtx.Done():
				return
			}
		}
	}()
}

// Stop ends polling and waits for an in-flight poll to finish.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
}

// pollOnce fetches snapshots and appends points for reported changes.
func (p *Poller) pollOnce(ctx context.Context) {
	p.pollVariables(ctx)
	p.pollPrograms(ctx)
}

// pollVariables appends one point per changed variable, timestamped with
// the variable's own reported last-update time.
func (p *Poller) pollVariables(ctx context.Context) {
	if len(p.variables) == 0 {
		return
	}

	variables, err := p.directory.FetchVariablesByIDs(ctx, p.variables)
	if err != nil {
		p.logger.Warn("fetching variables failed", "error", err)
		return
	}

	for _, variable := range variables {
		if !variable.WasChanged {
			continue
		}
		p.logger.Info("logging variable change",
			"id", variable.ID,
			"name", variable.Name,
			"state", variable.State,
		)
		p.buffer.Append(ctx, p.builder.FromVariable(variable))
	}
}

// pollPrograms appends a trigger pulse (rising then falling edge) per
// program whose last-run time moved.
func (p *Poller) pollPrograms(ctx context.Context) {
	if len(p.programs) == 0 {
		return
	}

	programs, err := p.directory.FetchProgramsByIDs(ctx, p.programs)
	if err != nil {
		p.logger.Warn("fetching programs failed", "error", err)
		return
	}

	for _, program := range programs {
		if !program.LastRunChanged {
			continue
		}
		p.logger.Info("logging program run",
			"id", program.ID,
			"name", program.Name,
		)
		for _, point := range p.builder.FromProgram(program) {
			p.buffer.Append(ctx, point)
		}
	}
}
