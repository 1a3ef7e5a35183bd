package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"
)

// SpillStore persists batches whose write failed, so a temporarily
// unreachable database costs bounded retries instead of silent loss.
//
// Batches are stored in insertion order with an attempt counter; the buffer
// drains them oldest first and drops batches over their retry budget.
type SpillStore struct {
	db *sql.DB
}

// spillSchema creates the batch table. One row per failed batch, points
// serialised as JSON.
const spillSchema = `
CREATE TABLE IF NOT EXISTS spill_batches (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    attempts   INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    points     TEXT NOT NULL
)`

// SpilledBatch is one retained batch with its retry bookkeeping.
type SpilledBatch struct {
	ID       int64
	Attempts int
	Points   []*write.Point
}

// pointRecord is the JSON-serialisable form of a point.
type pointRecord struct {
	Measurement string            `json:"measurement"`
	Tags        map[string]string `json:"tags"`
	Fields      map[string]any    `json:"fields"`
	Time        time.Time         `json:"time"`
}

// OpenSpillStore opens (creating if necessary) the spill database.
//
// Parameters:
//   - path: SQLite file path
//
// Returns:
//   - *SpillStore: Store ready for use
//   - error: If the database cannot be opened or the schema applied
func OpenSpillStore(path string) (*SpillStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening spill store: %w", err)
	}

	if _, err := db.Exec(spillSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating spill schema: %w", err)
	}

	return &SpillStore{db: db}, nil
}

// Put retains one failed batch.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - points: The batch, in its original insertion order
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SpillStore) Put(ctx context.Context, points []*write.Point) error {
	if len(points) == 0 {
		return nil
	}

	records := make([]pointRecord, 0, len(points))
	for _, point := range points {
		records = append(records, encodePoint(point))
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshalling batch: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO spill_batches (points) VALUES (?)",
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	return nil
}

// List returns retained batches oldest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum batches to return
//
// Returns:
//   - []SpilledBatch: Batches in insertion order
//   - error: nil on success, otherwise the underlying query error
func (s *SpillStore) List(ctx context.Context, limit int) ([]SpilledBatch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, attempts, points
		 FROM spill_batches
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying spilled batches: %w", err)
	}
	defer rows.Close()

	var batches []SpilledBatch
	for rows.Next() {
		var batch SpilledBatch
		var payload string

		if err := rows.Scan(&batch.ID, &batch.Attempts, &payload); err != nil {
			return nil, fmt.Errorf("scanning spilled batch: %w", err)
		}

		var records []pointRecord
		if err := json.Unmarshal([]byte(payload), &records); err != nil {
			return nil, fmt.Errorf("unmarshalling batch %d: %w", batch.ID, err)
		}
		for _, record := range records {
			batch.Points = append(batch.Points, decodePoint(record))
		}

		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spilled batches: %w", err)
	}

	return batches, nil
}

// IncrementAttempts records one more failed retry for a batch.
func (s *SpillStore) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE spill_batches SET attempts = attempts + 1 WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("updating batch %d: %w", id, err)
	}
	return nil
}

// Delete removes a batch (drained or dropped).
func (s *SpillStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM spill_batches WHERE id = ?",
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting batch %d: %w", id, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SpillStore) Close() error {
	return s.db.Close()
}

// encodePoint converts a client point into its serialisable form.
func encodePoint(point *write.Point) pointRecord {
	record := pointRecord{
		Measurement: point.Name(),
		Tags:        make(map[string]string),
		Fields:      make(map[string]any),
		Time:        point.Time(),
	}
	for _, tag := range point.TagList() {
		record.Tags[tag.Key] = tag.Value
	}
	for _, field := range point.FieldList() {
		record.Fields[field.Key] = field.Value
	}
	return record
}

// decodePoint rebuilds a client point from its serialisable form.
//
// JSON decoding widens integer field values to float64; the stored value is
// numerically identical, which is all the time-series cares about.
func decodePoint(record pointRecord) *write.Point {
	return write.NewPoint(record.Measurement, record.Tags, record.Fields, record.Time)
}
