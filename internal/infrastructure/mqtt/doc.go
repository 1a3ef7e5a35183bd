// Package mqtt provides MQTT broker connectivity for ccuflux.
//
// It wraps eclipse/paho.mqtt.golang with connection management, automatic
// reconnection, and subscription restoration. ccuflux is a pure consumer:
// the CCU event transport subscribes to the broker topics that carry
// controller state-change events, it never publishes.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Subscriptions are automatically restored on reconnection.
//
// # Error Handling
//
// Handler panics are recovered and logged so a single malformed message can
// never take the event feed down.
package mqtt
