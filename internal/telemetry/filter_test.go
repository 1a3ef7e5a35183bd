package telemetry

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/logging"
)

// testLogger returns a logger that discards all output.
func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestFilter_WhitelistMatchesAsSearch(t *testing.T) {
	filter := NewFilter([]string{"HUMIDITY"}, nil, testLogger())

	// Patterns match anywhere in the address, not anchored.
	if !filter.ShouldLog("HmIP-RF.0001D3C99C6AB3:1.HUMIDITY") {
		t.Error("ShouldLog() = false, want true for substring pattern match")
	}
	if filter.ShouldLog("HmIP-RF.0001D3C99C6AB3:1.TEMPERATURE") {
		t.Error("ShouldLog() = true, want false for non-matching address")
	}
}

func TestFilter_SelectionFallback(t *testing.T) {
	address := "BidCos-RF.KEQ0123456:1.STATE"
	filter := NewFilter(nil, []string{address}, testLogger())

	if !filter.ShouldLog(address) {
		t.Error("ShouldLog() = false, want true for selected address")
	}
	if filter.ShouldLog("BidCos-RF.KEQ0123456:2.STATE") {
		t.Error("ShouldLog() = true, want false for unselected address")
	}
}

func TestFilter_WhitelistTakesPriority(t *testing.T) {
	address := "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY"
	filter := NewFilter([]string{"HUMIDITY"}, []string{address}, testLogger())

	if !filter.MatchesWhitelist(address) {
		t.Error("MatchesWhitelist() = false, want true")
	}
	if !filter.IsSelected(address) {
		t.Error("IsSelected() = false, want true")
	}
	if !filter.ShouldLog(address) {
		t.Error("ShouldLog() = false, want true")
	}
}

func TestFilter_MalformedPatternDropped(t *testing.T) {
	// The broken pattern fails closed; the valid one stays in effect.
	filter := NewFilter([]string{"[unclosed", "HUMIDITY"}, nil, testLogger())

	if !filter.ShouldLog("HmIP-RF.0001D3C99C6AB3:1.HUMIDITY") {
		t.Error("ShouldLog() = false, want true via surviving pattern")
	}
	if filter.ShouldLog("HmIP-RF.0001D3C99C6AB3:1.STATE") {
		t.Error("ShouldLog() = true, want false")
	}
}

func TestFilter_Empty(t *testing.T) {
	if !NewFilter(nil, nil, testLogger()).Empty() {
		t.Error("Empty() = false for filter without rules, want true")
	}
	if NewFilter([]string{"STATE"}, nil, testLogger()).Empty() {
		t.Error("Empty() = true for filter with rules, want false")
	}
	// A filter left with only malformed patterns can never match.
	if !NewFilter([]string{"[unclosed"}, nil, testLogger()).Empty() {
		t.Error("Empty() = false for filter with only malformed patterns, want true")
	}
}
