package ccu

import (
	"fmt"
	"strings"
)

// Address is a parsed full datapoint address (IFACE.SERIAL:CH.DATAPOINT).
type Address struct {
	Interface string
	Serial    string
	Channel   string
	Datapoint string
}

// ParseAddress splits a full datapoint address into its parts.
//
// The accepted form is IFACE.SERIAL:CH.DATAPOINT, for example
// "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY". Interface names may themselves
// contain dashes but never dots, so the first dot always terminates the
// interface part.
//
// Parameters:
//   - address: Full datapoint address
//
// Returns:
//   - Address: Parsed address parts
//   - error: ErrInvalidAddress if the form does not match
func ParseAddress(address string) (Address, error) {
	iface, rest, ok := strings.Cut(address, ".")
	if !ok || iface == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	channelPart, datapoint, ok := strings.Cut(rest, ".")
	if !ok || datapoint == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	serial, channel, ok := strings.Cut(channelPart, ":")
	if !ok || serial == "" || channel == "" {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return Address{
		Interface: iface,
		Serial:    serial,
		Channel:   channel,
		Datapoint: datapoint,
	}, nil
}

// ChannelAddress returns the SERIAL:CH part used as channel key.
func (a Address) ChannelAddress() string {
	return a.Serial + ":" + a.Channel
}

// String reassembles the full datapoint address.
func (a Address) String() string {
	return fmt.Sprintf("%s.%s:%s.%s", a.Interface, a.Serial, a.Channel, a.Datapoint)
}
