package telemetry

import (
	"context"
	"sync"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// Writer is the persistence call the buffer flushes into.
// Satisfied by influx.Gateway.
type Writer interface {
	Write(ctx context.Context, points []*write.Point) error
}

// Buffer is the bounded-by-policy queue of pending points.
//
// Append and the threshold-check-and-flush sequence form one critical
// section: the live event callback and the poller both funnel through the
// same mutex, so two producers can never race a flush or count a point
// twice.
//
// Clearing is acknowledged, not optimistic: a batch leaves the buffer only
// after the writer confirms it, and a failed batch is retained in the spill
// store (bounded retries) instead of being lost silently. When no spill
// store is configured, a failed batch is dropped immediately and the loss
// is counted.
type Buffer struct {
	mu     sync.Mutex
	points []*write.Point

	threshold  int
	writer     Writer
	spill      *SpillStore
	maxRetries int
	dropped    int64

	logger *logging.Logger
}

// NewBuffer creates a buffer flushing into the given writer.
//
// Parameters:
//   - threshold: Flush as soon as the buffer holds this many points (min 1)
//   - writer: Destination of flushed batches
//   - spill: Spill store for failed batches; nil disables spilling
//   - maxRetries: Retry budget per spilled batch before it is dropped
//   - logger: Logger for flush diagnostics
//
// Returns:
//   - *Buffer: Empty buffer ready for appends
func NewBuffer(threshold int, writer Writer, spill *SpillStore, maxRetries int, logger *logging.Logger) *Buffer {
	if threshold < 1 {
		threshold = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Buffer{
		threshold:  threshold,
		writer:     writer,
		spill:      spill,
		maxRetries: maxRetries,
		logger:     logger.With("component", "buffer"),
	}
}

// Append adds a point and flushes synchronously within the same step when
// the threshold is reached. Points are never mutated after append, and the
// flush hands them over in strict insertion order.
//
// Parameters:
//   - ctx: Context passed through to the writer on flush
//   - point: Point to buffer
func (b *Buffer) Append(ctx context.Context, point *write.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.points = append(b.points, point)

	if len(b.points) >= b.threshold {
		b.logger.Debug("flushing buffer",
			"fill", len(b.points),
			"threshold", b.threshold,
		)
		b.flushLocked(ctx)
	} else {
		b.logger.Debug("buffer below threshold",
			"fill", len(b.points),
			"threshold", b.threshold,
		)
	}
}

// Flush writes out any pending points regardless of the threshold.
// Used on shutdown and teardown so a partially filled buffer is not lost.
//
// Parameters:
//   - ctx: Context passed through to the writer
func (b *Buffer) Flush(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.points) == 0 {
		b.drainSpillLocked(ctx)
		return
	}
	b.flushLocked(ctx)
}

// flushLocked performs one flush attempt. Caller holds b.mu.
//
// Spilled batches are retried first (oldest first) so earlier data reaches
// the store before the live batch whenever possible.
func (b *Buffer) flushLocked(ctx context.Context) {
	b.drainSpillLocked(ctx)

	batch := b.points
	b.points = nil

	if err := b.writer.Write(ctx, batch); err != nil {
		b.handleFailedBatch(ctx, batch, err)
		return
	}
}

// drainSpillLocked retries spilled batches until one fails or none remain.
// Batches over their retry budget are dropped with a counted loss.
func (b *Buffer) drainSpillLocked(ctx context.Context) {
	if b.spill == nil {
		return
	}

	batches, err := b.spill.List(ctx, spillDrainLimit)
	if err != nil {
		b.logger.Error("listing spilled batches", "error", err)
		return
	}

	for _, spilled := range batches {
		if spilled.Attempts >= b.maxRetries {
			b.dropBatchLocked(ctx, spilled)
			continue
		}

		if err := b.writer.Write(ctx, spilled.Points); err != nil {
			if incErr := b.spill.IncrementAttempts(ctx, spilled.ID); incErr != nil {
				b.logger.Error("updating spilled batch", "id", spilled.ID, "error", incErr)
			}
			// The writer is unhealthy; later batches would fail too.
			return
		}

		if err := b.spill.Delete(ctx, spilled.ID); err != nil {
			b.logger.Error("deleting drained batch", "id", spilled.ID, "error", err)
			return
		}
		b.logger.Info("drained spilled batch",
			"id", spilled.ID,
			"points", len(spilled.Points),
		)
	}
}

// handleFailedBatch retains a failed batch in the spill store, or counts it
// as lost when spilling is disabled or fails.
func (b *Buffer) handleFailedBatch(ctx context.Context, batch []*write.Point, writeErr error) {
	if b.spill != nil {
		err := b.spill.Put(ctx, batch)
		if err == nil {
			b.logger.Warn("write failed, batch spilled",
				"points", len(batch),
				"error", writeErr,
			)
			return
		}
		b.logger.Error("spilling failed batch", "error", err)
	}

	b.dropped += int64(len(batch))
	b.logger.Error("write failed, batch dropped",
		"points", len(batch),
		"dropped_total", b.dropped,
		"error", writeErr,
	)
}

// dropBatchLocked removes a batch that exhausted its retry budget.
func (b *Buffer) dropBatchLocked(ctx context.Context, spilled SpilledBatch) {
	if err := b.spill.Delete(ctx, spilled.ID); err != nil {
		b.logger.Error("deleting exhausted batch", "id", spilled.ID, "error", err)
		return
	}
	b.dropped += int64(len(spilled.Points))
	b.logger.Error("dropping batch after retry budget exhausted",
		"id", spilled.ID,
		"points", len(spilled.Points),
		"attempts", spilled.Attempts,
		"dropped_total", b.dropped,
	)
}

// Len returns the number of points currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.points)
}

// DroppedPoints returns how many points have been dropped after exhausting
// their retries (or immediately, when spilling is disabled).
func (b *Buffer) DroppedPoints() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// spillDrainLimit bounds how many spilled batches one flush will retry.
const spillDrainLimit = 50
