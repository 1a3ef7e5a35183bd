package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/ccu-tools/ccuflux/internal/ccu"
)

// Point shape constants.
const (
	// measurement is the single measurement all points are written under.
	measurement = "logging"

	// placeholder is the tag value used when directory resolution fails.
	placeholder = "-"

	// Type tags for polled entities. Live events carry their datapoint
	// type instead.
	typeVariable = "VARIABLE"
	typeProgram  = "PROGRAM"

	// programPulseWidth is the offset of a program pulse's falling edge
	// after its rising edge. A program trigger is an instant, not a level,
	// so it is modelled as value 1 at the run time and value 0 shortly
	// after.
	programPulseWidth = 5 * time.Second
)

// AddressResolver resolves datapoint addresses to display metadata.
// A nil resolver is valid and degrades every lookup to placeholders.
type AddressResolver interface {
	Lookup(address string) (ccu.ChannelInfo, bool)
}

// Builder converts accepted events and polled entities into points.
//
// The builder is a pure function of its inputs plus the resolver; it holds
// no mutable state and is safe for concurrent use.
type Builder struct {
	resolver AddressResolver
	source   string
}

// NewBuilder creates a point builder.
//
// Parameters:
//   - resolver: Directory for name/room resolution; nil degrades to placeholders
//   - source: Local host identifier written as the source tag
//
// Returns:
//   - *Builder: Builder ready for use
func NewBuilder(resolver AddressResolver, source string) *Builder {
	return &Builder{
		resolver: resolver,
		source:   source,
	}
}

// FromEvent builds the point for an accepted live event.
//
// Channel name and room come from the directory; either degrades to "-"
// when the lookup misses (device directory not loaded yet, or an unknown
// address). The timestamp is the event's arrival time.
func (b *Builder) FromEvent(event ccu.Event) *write.Point {
	name := placeholder
	room := placeholder
	if b.resolver != nil {
		if info, ok := b.resolver.Lookup(event.Address); ok {
			if info.ChannelName != "" {
				name = info.ChannelName
			}
			if info.Room != "" {
				room = info.Room
			}
		}
	}

	return write.NewPoint(
		measurement,
		map[string]string{
			"source":  b.source,
			"address": event.Address,
			"type":    event.DatapointType,
			"name":    name,
			"room":    room,
		},
		map[string]interface{}{
			"value": normalizeValue(event.Value),
		},
		event.ArrivalTime,
	)
}

// FromVariable builds the point for a changed system variable.
//
// The timestamp is the entity's own reported last-update time, not "now":
// the poll merely discovered a change that happened earlier.
func (b *Builder) FromVariable(v ccu.Variable) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{
			"source":  b.source,
			"address": v.ID,
			"type":    typeVariable,
			"name":    v.Name,
			"room":    placeholder,
		},
		map[string]interface{}{
			"value": v.State,
		},
		v.LastUpdate,
	)
}

// FromProgram builds the pulse pair for a program whose last-run time moved.
//
// A rising edge (value 1) at the reported run time and a falling edge
// (value 0) programPulseWidth later model the trigger as a pulse rather
// than a persistent level.
func (b *Builder) FromProgram(p ccu.Program) []*write.Point {
	runTime := time.Unix(p.LastRun, 0)

	tags := map[string]string{
		"source":  b.source,
		"address": p.ID,
		"type":    typeProgram,
		"name":    p.Name,
		"room":    placeholder,
	}

	rising := write.NewPoint(measurement, tags,
		map[string]interface{}{"value": int64(1)}, runTime)
	falling := write.NewPoint(measurement, tags,
		map[string]interface{}{"value": int64(0)}, runTime.Add(programPulseWidth))

	return []*write.Point{rising, falling}
}

// normalizeValue maps boolean values to 1/0 for storage; every other type
// passes through unchanged.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return value
	}
}
