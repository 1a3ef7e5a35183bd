// Package api implements the admin HTTP API and WebSocket server for ccuflux.
//
// This package provides:
//   - REST endpoints for configuration, whitelist, and datapoint selection
//   - A device browser backed by the controller directory, annotated with
//     the active logging decisions
//   - A database connection test endpoint for the settings UI
//   - WebSocket hub broadcasting pipeline lifecycle events
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API server sits beside the ingestion pipeline. Configuration edits are
// persisted to disk and then applied by asking the pipeline to reload; the
// pipeline itself never reads the config file. Read endpoints serve from the
// current in-memory configuration and the directory cache.
//
// # Graceful Degradation
//
// The server operates without a configured controller or database. The device
// browser returns an empty list until the directory is reachable, and the
// connection test reports failures as structured errors rather than 500s.
package api
