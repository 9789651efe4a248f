package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backkem/mediaremote/pkg/message"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pion/logging"
)

// DefaultPublishTimeout bounds a single publish.
const DefaultPublishTimeout = 3 * time.Second

var (
	// ErrNoBroker is returned when MQTTConfig has no broker URL.
	ErrNoBroker = errors.New("bridge: broker required")

	// ErrPublishTimeout is returned when the broker does not acknowledge a
	// publish in time.
	ErrPublishTimeout = errors.New("bridge: publish timeout")
)

// Client is the part of mqtt.Client the bridge publishes with.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Event is the JSON document published for one message.
type Event struct {
	Type       string          `json:"type"`
	Identifier string          `json:"identifier,omitempty"`
	ErrorCode  int32           `json:"error_code,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEvent converts msg into an Event.
func NewEvent(msg *message.Message) (*Event, error) {
	e := &Event{
		Type:       msg.Type.String(),
		Identifier: msg.Identifier,
		ErrorCode:  msg.ErrorCode,
	}
	if msg.Payload != nil {
		data, err := json.Marshal(msg.Payload)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode %s: %w", msg, err)
		}
		e.Payload = data
	}
	return e, nil
}

// Config configures a Bridge.
type Config struct {
	// Client publishes events. Required.
	Client Client

	// TopicPrefix is prepended to the message type. If empty,
	// "mediaremote" is used.
	TopicPrefix string

	// QoS is the MQTT quality of service.
	QoS byte

	// Timeout bounds each publish. If zero, DefaultPublishTimeout is used.
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Bridge publishes messages as JSON events to <prefix>/<type>.
type Bridge struct {
	config Config
	log    logging.LeveledLogger
}

// New creates a Bridge.
func New(config Config) (*Bridge, error) {
	if config.Client == nil {
		return nil, ErrNoBroker
	}
	config.TopicPrefix = strings.TrimSuffix(config.TopicPrefix, "/")
	if config.TopicPrefix == "" {
		config.TopicPrefix = "mediaremote"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultPublishTimeout
	}

	b := &Bridge{config: config}
	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("bridge")
	}
	return b, nil
}

// Topic returns the topic messages of type t are published to.
func (b *Bridge) Topic(t message.Type) string {
	return b.config.TopicPrefix + "/" + t.String()
}

// Publish sends msg as an Event and waits for the broker.
func (b *Bridge) Publish(msg *message.Message) error {
	e, err := NewEvent(msg)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	topic := b.Topic(msg.Type)
	token := b.config.Client.Publish(topic, b.config.QoS, false, data)
	if !token.WaitTimeout(b.config.Timeout) {
		return fmt.Errorf("%w: %s", ErrPublishTimeout, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("bridge: publish %s: %w", topic, err)
	}

	if b.log != nil {
		b.log.Tracef("published %s to %s", msg, topic)
	}
	return nil
}

// Handler returns a message handler that publishes every message and logs
// failures. It is meant for transport.Conn.Subscribe.
func (b *Bridge) Handler() func(*message.Message) {
	return func(msg *message.Message) {
		if msg.Type == message.TypeCryptoPairing {
			return
		}
		if err := b.Publish(msg); err != nil && b.log != nil {
			b.log.Warnf("%v", err)
		}
	}
}
