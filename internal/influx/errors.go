package influx

import "errors"

// Sentinel errors for gateway operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influx.ErrNotConnected) {
//	    // Flush failed fast; spill the batch
//	}
var (
	// ErrNotConfigured indicates no database settings are present.
	ErrNotConfigured = errors.New("influx: database not configured")

	// ErrNotConnected indicates the gateway holds no live store handle.
	ErrNotConnected = errors.New("influx: not connected")

	// ErrConnectionFailed indicates a connect or probe attempt failed.
	ErrConnectionFailed = errors.New("influx: connection failed")

	// ErrWriteFailed indicates a batched write was rejected or timed out.
	ErrWriteFailed = errors.New("influx: write failed")
)
