package ccu

import "errors"

// Sentinel errors for controller boundary operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, ccu.ErrDirectoryUnavailable) {
//	    // Degrade lookups to placeholders
//	}
var (
	// ErrInvalidAddress indicates a datapoint address that does not follow
	// the IFACE.SERIAL:CH.DATAPOINT form.
	ErrInvalidAddress = errors.New("ccu: invalid datapoint address")

	// ErrDirectoryUnavailable indicates a Rega fetch failed.
	ErrDirectoryUnavailable = errors.New("ccu: directory unavailable")

	// ErrSourceStopped indicates an operation on a stopped event source.
	ErrSourceStopped = errors.New("ccu: event source stopped")
)
