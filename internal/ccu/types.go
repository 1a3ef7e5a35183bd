package ccu

import "time"

// Event is a live state-change notification from the controller.
//
// Events are immutable once received: the pipeline reads them but never
// writes them back.
type Event struct {
	// Address is the full datapoint address (IFACE.SERIAL:CH.DATAPOINT).
	Address string

	// DatapointType is the datapoint name, e.g. "HUMIDITY" or "STATE".
	DatapointType string

	// Value is the reported state. One of bool, float64, int64, or string.
	Value any

	// ArrivalTime is when the event reached this process.
	ArrivalTime time.Time
}

// Interface describes one controller RPC interface (BidCos-RF, HmIP-RF, ...).
type Interface struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
}

// Device is a physical device known to the controller.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Serial   string    `json:"serial"`
	Channels []Channel `json:"channels"`
}

// Channel is one addressable channel of a device.
type Channel struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"` // SERIAL:CH
	Room    string `json:"room,omitempty"`

	// Datapoints is populated only when devices are fetched with
	// includeDatapoints, which the admin device browser needs.
	Datapoints []Datapoint `json:"datapoints,omitempty"`
}

// Datapoint is one loggable reading of a channel.
type Datapoint struct {
	ID   string `json:"id"`
	Name string `json:"name"` // full address form, IFACE.SERIAL:CH.DATAPOINT
}

// Room is a room defined on the controller, referencing channel IDs.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
}

// Variable is a polled system variable snapshot.
//
// WasChanged reports whether the variable changed since the previous fetch;
// the directory owns that bookkeeping, callers hold no diff state.
type Variable struct {
	ID         string
	Name       string
	State      float64
	WasChanged bool
	LastUpdate time.Time
}

// Program is a polled program snapshot.
//
// LastRun is the controller-reported last execution time in Unix seconds.
// LastRunChanged reports whether it moved since the previous fetch.
type Program struct {
	ID             string
	Name           string
	LastRun        int64
	LastRunChanged bool
}

// ChannelInfo is the result of a directory lookup for a datapoint address.
type ChannelInfo struct {
	ChannelName string
	Room        string
}
