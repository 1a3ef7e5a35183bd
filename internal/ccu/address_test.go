package ccu

import (
	"errors"
	"testing"
)

func TestParseAddress_Valid(t *testing.T) {
	addr, err := ParseAddress("HmIP-RF.0001D3C99C6AB3:1.HUMIDITY")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}

	if addr.Interface != "HmIP-RF" {
		t.Errorf("Interface = %q, want %q", addr.Interface, "HmIP-RF")
	}
	if addr.Serial != "0001D3C99C6AB3" {
		t.Errorf("Serial = %q, want %q", addr.Serial, "0001D3C99C6AB3")
	}
	if addr.Channel != "1" {
		t.Errorf("Channel = %q, want %q", addr.Channel, "1")
	}
	if addr.Datapoint != "HUMIDITY" {
		t.Errorf("Datapoint = %q, want %q", addr.Datapoint, "HUMIDITY")
	}
}

func TestParseAddress_ChannelAddress(t *testing.T) {
	addr, err := ParseAddress("BidCos-RF.KEQ0123456:2.STATE")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}

	if got := addr.ChannelAddress(); got != "KEQ0123456:2" {
		t.Errorf("ChannelAddress() = %q, want %q", got, "KEQ0123456:2")
	}
	if got := addr.String(); got != "BidCos-RF.KEQ0123456:2.STATE" {
		t.Errorf("String() = %q, want original address", got)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	tests := []string{
		"",
		"HmIP-RF",
		"HmIP-RF.SERIAL",
		"HmIP-RF.SERIAL.HUMIDITY", // no channel separator
		".SERIAL:1.HUMIDITY",
		"HmIP-RF.SERIAL:1.",
		"HmIP-RF.:1.HUMIDITY",
	}

	for _, address := range tests {
		if _, err := ParseAddress(address); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseAddress(%q) error = %v, want ErrInvalidAddress", address, err)
		}
	}
}
