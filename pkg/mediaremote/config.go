package mediaremote

import (
	"fmt"
	"os"
	"time"

	"github.com/backkem/mediaremote/pkg/pairing"
	"github.com/backkem/mediaremote/pkg/pairing/setup"
	"github.com/backkem/mediaremote/pkg/transport"
	"gopkg.in/yaml.v3"
)

// Defaults for Config.
const (
	DefaultName        = "mediaremote"
	DefaultListenAddr  = ":49152"
	DefaultStorePath   = "mediaremote.db"
	DefaultTopicPrefix = "mediaremote"
)

// MQTTConfig configures the message bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Config is the file configuration shared by the controller and accessory
// commands.
type Config struct {
	// Name is the device name announced in DeviceInfo and DNS-SD.
	Name string `yaml:"name"`

	// UniqueIdentifier is the announced device identifier. If empty the
	// identity's pairing identifier is used.
	UniqueIdentifier string `yaml:"unique_identifier"`

	// ListenAddr is the accessory listen address.
	ListenAddr string `yaml:"listen_addr"`

	// PIN fixes the accessory setup code.
	PIN string `yaml:"pin"`

	// StorePath is the SQLite database path.
	StorePath string `yaml:"store"`

	PairingTimeout time.Duration `yaml:"pairing_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MetricsAddr serves Prometheus metrics when set.
	MetricsAddr string `yaml:"metrics_addr"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mediaremote: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("mediaremote: parse config: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DefaultConfig returns a Config with all defaults applied.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.PIN != "" {
		if err := setup.ValidateCode(c.PIN); err != nil {
			return fmt.Errorf("%w: pin: %v", ErrInvalidConfig, err)
		}
	}
	if c.PairingTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.StorePath == "" {
		c.StorePath = DefaultStorePath
	}
	if c.PairingTimeout == 0 {
		c.PairingTimeout = pairing.DefaultTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = transport.DefaultRequestTimeout
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
}
