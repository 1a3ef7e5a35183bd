// Package telemetry implements the ingestion pipeline from controller
// events to time-series points.
//
// The pipeline is a chain of small components:
//
//	event → Filter → Builder → Buffer → gateway write
//
// with a Poller feeding the same Buffer on a fixed interval for entities
// that never push changes themselves (system variables and programs), and a
// Pipeline orchestrating construction, bootstrap, and reload of the whole
// chain.
//
// # Configuration snapshots
//
// Filter, Builder, and Buffer are built from an immutable snapshot of the
// configuration. A reload builds a fresh chain from the new document and
// swaps it in after tearing the old one down; components never observe
// configuration changing under them.
//
// # Delivery semantics
//
// The Buffer clears a batch only after the gateway acknowledges the write.
// Failed batches go to a SQLite spill store and are retried on subsequent
// flushes a bounded number of times, after which they are dropped and the
// loss is counted. Without a spill store a failed batch is dropped (and
// counted) immediately.
//
// # Concurrency
//
// The live event callback and the poller interleave arbitrarily; both
// funnel into the Buffer, whose append → threshold check → flush hand-off
// is one mutex-guarded critical section. Nothing else in the pipeline
// shares mutable state between the two producers.
package telemetry
