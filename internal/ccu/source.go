package ccu

// EventSource is the live event subscription to the controller.
//
// Lifecycle: AddInterface for each controller interface, then Init, then
// Connect. Stop tears the subscription down and blocks until teardown is
// complete, so a caller can safely create a replacement source afterwards
// without risking duplicate event delivery.
type EventSource interface {
	// AddInterface registers one controller interface with the subscription.
	AddInterface(name, host string, port int, path string)

	// Init prepares the subscription from the registered interfaces.
	Init() error

	// Connect starts event delivery.
	Connect() error

	// Stop ends event delivery and blocks until teardown completes.
	Stop() error

	// OnEvent registers the callback invoked for each received event.
	// Must be called before Connect.
	OnEvent(handler func(Event))
}
