package telemetry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// fakeWriter records batches and fails on demand.
type fakeWriter struct {
	batches [][]*write.Point
	err     error
}

func (w *fakeWriter) Write(_ context.Context, points []*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, points)
	return nil
}

func testPoint(value float64) *write.Point {
	return write.NewPoint("logging",
		map[string]string{"source": "test"},
		map[string]interface{}{"value": value},
		time.Now(),
	)
}

func TestBuffer_FlushAtThreshold(t *testing.T) {
	writer := &fakeWriter{}
	buffer := NewBuffer(3, writer, nil, 0, testLogger())
	ctx := context.Background()

	buffer.Append(ctx, testPoint(1))
	buffer.Append(ctx, testPoint(2))
	if len(writer.batches) != 0 {
		t.Fatalf("flushed below threshold: %d batches", len(writer.batches))
	}
	if buffer.Len() != 2 {
		t.Errorf("Len() = %d, want 2", buffer.Len())
	}

	buffer.Append(ctx, testPoint(3))
	if len(writer.batches) != 1 {
		t.Fatalf("batches = %d, want 1 after reaching threshold", len(writer.batches))
	}
	if len(writer.batches[0]) != 3 {
		t.Errorf("batch size = %d, want 3", len(writer.batches[0]))
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() = %d after flush, want 0", buffer.Len())
	}
}

func TestBuffer_InsertionOrderPreserved(t *testing.T) {
	writer := &fakeWriter{}
	buffer := NewBuffer(3, writer, nil, 0, testLogger())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		buffer.Append(ctx, testPoint(float64(i)))
	}

	batch := writer.batches[0]
	for i, point := range batch {
		want := float64(i + 1)
		if got := fieldValue(t, point, "value"); got != want {
			t.Errorf("batch[%d] value = %v, want %v", i, got, want)
		}
	}
}

func TestBuffer_ThresholdOneFlushesEveryPoint(t *testing.T) {
	writer := &fakeWriter{}
	buffer := NewBuffer(1, writer, nil, 0, testLogger())
	ctx := context.Background()

	buffer.Append(ctx, testPoint(1))
	buffer.Append(ctx, testPoint(2))

	if len(writer.batches) != 2 {
		t.Errorf("batches = %d, want 2", len(writer.batches))
	}
}

func TestBuffer_FlushPartial(t *testing.T) {
	writer := &fakeWriter{}
	buffer := NewBuffer(10, writer, nil, 0, testLogger())
	ctx := context.Background()

	buffer.Append(ctx, testPoint(1))
	buffer.Append(ctx, testPoint(2))
	buffer.Flush(ctx)

	if len(writer.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(writer.batches))
	}
	if len(writer.batches[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(writer.batches[0]))
	}
}

func TestBuffer_FailedBatchDroppedWithoutSpill(t *testing.T) {
	writer := &fakeWriter{err: errors.New("store down")}
	buffer := NewBuffer(2, writer, nil, 0, testLogger())
	ctx := context.Background()

	buffer.Append(ctx, testPoint(1))
	buffer.Append(ctx, testPoint(2))

	if got := buffer.DroppedPoints(); got != 2 {
		t.Errorf("DroppedPoints() = %d, want 2", got)
	}
	if buffer.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (failed batch is not re-queued live)", buffer.Len())
	}
}

func TestBuffer_FailedBatchSpilledAndDrained(t *testing.T) {
	spill, err := OpenSpillStore(filepath.Join(t.TempDir(), "spill.db"))
	if err != nil {
		t.Fatalf("OpenSpillStore() error = %v", err)
	}
	defer spill.Close()

	writer := &fakeWriter{err: errors.New("store down")}
	buffer := NewBuffer(1, writer, spill, 5, testLogger())
	ctx := context.Background()

	buffer.Append(ctx, testPoint(42))

	if got := buffer.DroppedPoints(); got != 0 {
		t.Fatalf("DroppedPoints() = %d, want 0 (batch spilled, not lost)", got)
	}
	spilled, err := spill.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(spilled) != 1 {
		t.Fatalf("spilled batches = %d, want 1", len(spilled))
	}

	// Store recovers; the next flush drains the spill first.
	writer.err = nil
	buffer.Append(ctx, testPoint(43))

	if len(writer.batches) != 2 {
		t.Fatalf("batches = %d, want 2 (spilled then live)", len(writer.batches))
	}
	if got := fieldValue(t, writer.batches[0][0], "value"); got != float64(42) {
		t.Errorf("drained value = %v, want 42 (spilled batch written first)", got)
	}
	if got := fieldValue(t, writer.batches[1][0], "value"); got != float64(43) {
		t.Errorf("live value = %v, want 43", got)
	}

	spilled, err = spill.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(spilled) != 0 {
		t.Errorf("spilled batches = %d after drain, want 0", len(spilled))
	}
}

func TestBuffer_RetryBudgetExhausted(t *testing.T) {
	spill, err := OpenSpillStore(filepath.Join(t.TempDir(), "spill.db"))
	if err != nil {
		t.Fatalf("OpenSpillStore() error = %v", err)
	}
	defer spill.Close()

	writer := &fakeWriter{err: errors.New("store down")}
	buffer := NewBuffer(1, writer, spill, 1, testLogger())
	ctx := context.Background()

	// Failed live batch lands in the spill with zero attempts.
	buffer.Append(ctx, testPoint(1))

	// First drain attempt fails, consuming the single retry.
	buffer.Flush(ctx)
	if got := buffer.DroppedPoints(); got != 0 {
		t.Fatalf("DroppedPoints() = %d after first retry, want 0", got)
	}

	// Budget exhausted: the batch is dropped with a counted loss.
	buffer.Flush(ctx)
	if got := buffer.DroppedPoints(); got != 1 {
		t.Errorf("DroppedPoints() = %d, want 1", got)
	}

	spilled, err := spill.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(spilled) != 0 {
		t.Errorf("spilled batches = %d, want 0 after drop", len(spilled))
	}
}
