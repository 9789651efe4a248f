package bridge

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultConnectTimeout bounds the broker connection.
const DefaultConnectTimeout = 10 * time.Second

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883". Required.
	Broker string

	// ClientID identifies this client to the broker.
	ClientID string

	Username string
	Password string

	// ConnectTimeout bounds Connect. If zero, DefaultConnectTimeout is used.
	ConnectTimeout time.Duration
}

// Connect dials the broker and returns a connected client.
func Connect(config MQTTConfig) (mqtt.Client, error) {
	if config.Broker == "" {
		return nil, ErrNoBroker
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(config.ConnectTimeout) {
		return nil, fmt.Errorf("bridge: connect %s: timeout", config.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("bridge: connect %s: %w", config.Broker, err)
	}
	return client, nil
}
