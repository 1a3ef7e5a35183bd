package ccu

import "context"

// Directory resolves controller metadata and polls Rega objects.
//
// Implementations own the "changed since last fetch" bookkeeping for
// variables and programs; callers only consume the reported flags.
type Directory interface {
	// Lookup resolves a full datapoint address to channel display metadata.
	// A miss (unknown address, or the device directory not fetched yet) is
	// reported via ok=false; callers degrade to placeholder values.
	Lookup(address string) (ChannelInfo, bool)

	// FetchInterfaces enumerates the controller's RPC interfaces.
	FetchInterfaces(ctx context.Context) ([]Interface, error)

	// FetchDevices returns the device directory, optionally including the
	// per-channel datapoint lists. The result is cached until ClearCache.
	FetchDevices(ctx context.Context, includeDatapoints bool) ([]Device, error)

	// FetchRooms returns the room directory. Room names are merged into the
	// cached channel metadata used by Lookup.
	FetchRooms(ctx context.Context) ([]Room, error)

	// FetchVariablesByIDs returns current snapshots of the given system
	// variables, with WasChanged set against the previous fetch.
	FetchVariablesByIDs(ctx context.Context, ids []string) ([]Variable, error)

	// FetchProgramsByIDs returns current snapshots of the given programs,
	// with LastRunChanged set against the previous fetch.
	FetchProgramsByIDs(ctx context.Context, ids []string) ([]Program, error)

	// ClearCache drops the cached device directory so the next FetchDevices
	// hits the controller again.
	ClearCache()
}
