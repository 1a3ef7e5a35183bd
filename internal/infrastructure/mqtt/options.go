package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ccu-tools/ccuflux/internal/infrastructure/config"
)

// Connection timing constants.
const (
	defaultConnectTimeout    = 10 * time.Second
	defaultDisconnectQuiesce = 250 // milliseconds, paho API takes uint

	// Reconnect backoff bounds for the paho auto-reconnect loop.
	reconnectMinDelay = 1 * time.Second
	reconnectMaxDelay = 60 * time.Second
)

// buildClientOptions constructs paho client options from configuration.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)

	clientID := cfg.Broker.ClientID
	if clientID == "" {
		clientID = "ccuflux"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetryInterval(reconnectMinDelay).
		SetMaxReconnectInterval(reconnectMaxDelay).
		SetOrderMatters(true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	return opts
}
