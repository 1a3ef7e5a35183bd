// Package influx owns the connection to InfluxDB 2.x and all point writes.
//
// It is the only writer to the store. The gateway is a small state machine
// (Disconnected, Connecting, Connected) around the official InfluxDB v2
// client:
//
//   - Connect constructs the store handle and, in normal mode, transitions
//     straight to Connected. Construction does not guarantee reachability;
//     an unreachable server surfaces on the first write.
//   - TestConnection probes the server with a lightweight Flux query without
//     touching the gateway's own connection state. Configuration validation
//     flows use it; the ingestion path never does.
//   - Write performs a blocking batched write at millisecond precision and
//     returns the result to the caller. The gateway never retries or
//     re-queues a batch; the buffer owns that policy.
//
// A connect failure carrying HTTP 503 (the server is up but not serving yet,
// typical during InfluxDB startup) schedules a reconnect on a fixed cadence,
// indefinitely, until it succeeds. Any other connect failure is logged once
// and the gateway stays Disconnected until an external reload triggers a
// fresh Connect. At most one live store handle exists at a time; reconnects
// replace it.
package influx
