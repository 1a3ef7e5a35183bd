package ccu

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/mqtt"
)

// Broker is the subset of the MQTT client the event source needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTSource receives controller events over MQTT.
//
// A CCU-side publisher mirrors every datapoint event onto
//
//	<prefix>/event/<interface>/<serial>/<channel>/<datapoint>
//
// with a JSON payload carrying the value and an optional source timestamp:
//
//	{"v": 55.2, "ts": 1724234400123}
//
// Bare scalar payloads are accepted too. The source subscribes one topic
// subtree per registered interface and reconstructs the full Homematic
// datapoint address from the topic levels.
//
// Thread Safety: All methods are safe for concurrent use; the event handler
// is invoked from paho's receive goroutines.
type MQTTSource struct {
	broker Broker
	prefix string
	qos    byte

	mu         sync.Mutex
	interfaces []string
	topics     []string
	handler    func(Event)
	stopped    bool
}

// eventPayload is the JSON envelope published for each event.
type eventPayload struct {
	Value     any   `json:"v"`
	Timestamp int64 `json:"ts,omitempty"` // Unix milliseconds
}

// NewMQTTSource creates an event source on the given broker connection.
//
// Parameters:
//   - broker: Connected MQTT client
//   - prefix: Topic prefix the CCU publisher uses (e.g. "ccu")
//   - qos: QoS level for event subscriptions
//
// Returns:
//   - *MQTTSource: Source ready for AddInterface/Init/Connect
func NewMQTTSource(broker Broker, prefix string, qos byte) *MQTTSource {
	return &MQTTSource{
		broker: broker,
		prefix: strings.Trim(prefix, "/"),
		qos:    qos,
	}
}

// AddInterface registers one controller interface with the subscription.
//
// Host, port, and path identify the interface's XML-RPC endpoint; the MQTT
// transport does not dial it (the CCU-side publisher owns that connection),
// only the name participates in topic construction.
func (s *MQTTSource) AddInterface(name, _ string, _ int, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interfaces = append(s.interfaces, name)
}

// Init prepares topic filters from the registered interfaces.
//
// Returns:
//   - error: If no interfaces were registered
func (s *MQTTSource) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.interfaces) == 0 {
		return fmt.Errorf("ccu: no interfaces registered")
	}

	s.topics = s.topics[:0]
	for _, name := range s.interfaces {
		s.topics = append(s.topics, fmt.Sprintf("%s/event/%s/#", s.prefix, name))
	}

	return nil
}

// Connect subscribes the prepared topics and starts event delivery.
//
// Returns:
//   - error: If any subscription is rejected by the broker
func (s *MQTTSource) Connect() error {
	s.mu.Lock()
	topics := make([]string, len(s.topics))
	copy(topics, s.topics)
	s.stopped = false
	s.mu.Unlock()

	for _, topic := range topics {
		if err := s.broker.Subscribe(topic, s.qos, s.handleMessage); err != nil {
			return err
		}
	}

	return nil
}

// Stop unsubscribes all event topics and blocks until the broker has
// acknowledged each unsubscribe. After Stop returns no further events are
// delivered, so a replacement source can be connected without duplicates.
func (s *MQTTSource) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	topics := make([]string, len(s.topics))
	copy(topics, s.topics)
	s.mu.Unlock()

	var firstErr error
	for _, topic := range topics {
		if err := s.broker.Unsubscribe(topic); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// OnEvent registers the callback invoked for each received event.
func (s *MQTTSource) OnEvent(handler func(Event)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

// handleMessage parses one event message and dispatches it.
func (s *MQTTSource) handleMessage(topic string, payload []byte) error {
	s.mu.Lock()
	handler := s.handler
	stopped := s.stopped
	s.mu.Unlock()

	if stopped || handler == nil {
		return nil
	}

	event, err := s.parseEvent(topic, payload)
	if err != nil {
		return err
	}

	handler(event)
	return nil
}

// parseEvent reconstructs an Event from topic levels and payload.
func (s *MQTTSource) parseEvent(topic string, payload []byte) (Event, error) {
	rest, ok := strings.CutPrefix(topic, s.prefix+"/event/")
	if !ok {
		return Event{}, fmt.Errorf("ccu: unexpected event topic %q", topic)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 4 {
		return Event{}, fmt.Errorf("ccu: unexpected event topic %q", topic)
	}
	iface, serial, channel, datapoint := parts[0], parts[1], parts[2], parts[3]

	value, arrival, err := parseEventPayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("ccu: topic %q: %w", topic, err)
	}

	return Event{
		Address:       fmt.Sprintf("%s.%s:%s.%s", iface, serial, channel, datapoint),
		DatapointType: datapoint,
		Value:         value,
		ArrivalTime:   arrival,
	}, nil
}

// parseEventPayload decodes the JSON envelope, accepting bare scalars.
func parseEventPayload(payload []byte) (any, time.Time, error) {
	var envelope eventPayload
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Value != nil {
		arrival := time.Now()
		if envelope.Timestamp > 0 {
			arrival = time.UnixMilli(envelope.Timestamp)
		}
		return envelope.Value, arrival, nil
	}

	var scalar any
	if err := json.Unmarshal(payload, &scalar); err != nil {
		return nil, time.Time{}, fmt.Errorf("parsing event payload: %w", err)
	}
	if _, isObject := scalar.(map[string]any); isObject {
		return nil, time.Time{}, fmt.Errorf("parsing event payload: missing value field")
	}

	return scalar, time.Now(), nil
}
