package telemetry

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccu-tools/ccuflux/internal/ccu"
)

// fakeResolver serves canned lookup results.
type fakeResolver struct {
	entries map[string]ccu.ChannelInfo
}

func (r *fakeResolver) Lookup(address string) (ccu.ChannelInfo, bool) {
	info, ok := r.entries[address]
	return info, ok
}

func tagValue(t *testing.T, p *write.Point, key string) string {
	t.Helper()
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	t.Fatalf("tag %q not found", key)
	return ""
}

func fieldValue(t *testing.T, p *write.Point, key string) any {
	t.Helper()
	for _, field := range p.FieldList() {
		if field.Key == key {
			return field.Value
		}
	}
	t.Fatalf("field %q not found", key)
	return nil
}

func TestBuilder_FromEvent_ResolvedTags(t *testing.T) {
	resolver := &fakeResolver{entries: map[string]ccu.ChannelInfo{
		"HmIP-RF.0001D3C99C6AB3:1.HUMIDITY": {ChannelName: "Bathroom sensor:1", Room: "Bathroom"},
	}}
	builder := NewBuilder(resolver, "ccu-host")

	arrival := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	point := builder.FromEvent(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY",
		DatapointType: "HUMIDITY",
		Value:         55.2,
		ArrivalTime:   arrival,
	})

	if point.Name() != "logging" {
		t.Errorf("measurement = %q, want %q", point.Name(), "logging")
	}
	if got := tagValue(t, point, "source"); got != "ccu-host" {
		t.Errorf("source = %q, want %q", got, "ccu-host")
	}
	if got := tagValue(t, point, "name"); got != "Bathroom sensor:1" {
		t.Errorf("name = %q, want %q", got, "Bathroom sensor:1")
	}
	if got := tagValue(t, point, "room"); got != "Bathroom" {
		t.Errorf("room = %q, want %q", got, "Bathroom")
	}
	if got := tagValue(t, point, "type"); got != "HUMIDITY" {
		t.Errorf("type = %q, want %q", got, "HUMIDITY")
	}
	if got := fieldValue(t, point, "value"); got != 55.2 {
		t.Errorf("value = %v, want 55.2", got)
	}
	if !point.Time().Equal(arrival) {
		t.Errorf("time = %v, want arrival time %v", point.Time(), arrival)
	}
}

func TestBuilder_FromEvent_PlaceholdersOnMiss(t *testing.T) {
	// Nil resolver models the directory not being loaded yet.
	builder := NewBuilder(nil, "ccu-host")

	point := builder.FromEvent(ccu.Event{
		Address:       "HmIP-RF.0001D3C99C6AB3:1.HUMIDITY",
		DatapointType: "HUMIDITY",
		Value:         55.2,
		ArrivalTime:   time.Now(),
	})

	if got := tagValue(t, point, "name"); got != "-" {
		t.Errorf("name = %q, want placeholder", got)
	}
	if got := tagValue(t, point, "room"); got != "-" {
		t.Errorf("room = %q, want placeholder", got)
	}
}

func TestBuilder_FromEvent_BoolNormalised(t *testing.T) {
	builder := NewBuilder(nil, "ccu-host")

	on := builder.FromEvent(ccu.Event{Address: "a.b:1.STATE", Value: true, ArrivalTime: time.Now()})
	if got := fieldValue(t, on, "value"); got != int64(1) {
		t.Errorf("value = %v (%T), want int64(1)", got, got)
	}

	off := builder.FromEvent(ccu.Event{Address: "a.b:1.STATE", Value: false, ArrivalTime: time.Now()})
	if got := fieldValue(t, off, "value"); got != int64(0) {
		t.Errorf("value = %v (%T), want int64(0)", got, got)
	}
}

func TestBuilder_FromVariable(t *testing.T) {
	builder := NewBuilder(nil, "ccu-host")

	lastUpdate := time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)
	point := builder.FromVariable(ccu.Variable{
		ID:         "4711",
		Name:       "Humidity alarm",
		State:      1,
		LastUpdate: lastUpdate,
	})

	if got := tagValue(t, point, "type"); got != "VARIABLE" {
		t.Errorf("type = %q, want VARIABLE", got)
	}
	if got := tagValue(t, point, "address"); got != "4711" {
		t.Errorf("address = %q, want the variable ID", got)
	}
	if got := tagValue(t, point, "room"); got != "-" {
		t.Errorf("room = %q, want placeholder", got)
	}
	// The point timestamp is the variable's own update time, not "now".
	if !point.Time().Equal(lastUpdate) {
		t.Errorf("time = %v, want %v", point.Time(), lastUpdate)
	}
}

func TestBuilder_FromProgram_PulsePair(t *testing.T) {
	builder := NewBuilder(nil, "ccu-host")

	runTime := time.Date(2025, 6, 1, 22, 0, 0, 0, time.Local)
	points := builder.FromProgram(ccu.Program{
		ID:      "815",
		Name:    "Night mode",
		LastRun: runTime.Unix(),
	})

	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}

	rising, falling := points[0], points[1]

	if got := fieldValue(t, rising, "value"); got != int64(1) {
		t.Errorf("rising value = %v, want 1", got)
	}
	if !rising.Time().Equal(runTime) {
		t.Errorf("rising time = %v, want %v", rising.Time(), runTime)
	}

	if got := fieldValue(t, falling, "value"); got != int64(0) {
		t.Errorf("falling value = %v, want 0", got)
	}
	if got := falling.Time().Sub(rising.Time()); got != programPulseWidth {
		t.Errorf("pulse width = %v, want %v", got, programPulseWidth)
	}

	if got := tagValue(t, rising, "type"); got != "PROGRAM" {
		t.Errorf("type = %q, want PROGRAM", got)
	}
}
