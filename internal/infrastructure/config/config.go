package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic node device.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Nodes     []NodeConfig    `yaml:"nodes"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig contains the identity and runtime settings of the device.
type DeviceConfig struct {
	// ID is the Homie device id, used as the second topic level.
	ID string `yaml:"id"`

	// Name is the human-friendly device name published as $name.
	Name string `yaml:"name"`

	// BaseTopic is the MQTT root for all device topics.
	// Default: "homie/"
	BaseTopic string `yaml:"base_topic"`

	// LoopInterval is the scheduler tick in milliseconds.
	// Default: 100
	LoopInterval int `yaml:"loop_interval"`

	// StatsInterval is how often $stats are published, in seconds.
	// Default: 60
	StatsInterval int `yaml:"stats_interval"`

	// MaxNodes bounds the node registry. 0 uses the registry default.
	MaxNodes int `yaml:"max_nodes"`

	// QueueSize is the inbound update queue length.
	// Default: 64
	QueueSize int `yaml:"queue_size"`
}

// NodeConfig declares one node exposed by the device.
type NodeConfig struct {
	ID           string           `yaml:"id"`
	Type         string           `yaml:"type"`
	SubscribeAll bool             `yaml:"subscribe_all"`
	Fallback     string           `yaml:"fallback"` // accept, reject, or none (default)
	Properties   []PropertyConfig `yaml:"properties"`
}

// PropertyConfig declares one settable property of a node.
type PropertyConfig struct {
	ID string `yaml:"id"`

	// Values restricts accepted values. Empty accepts anything.
	Values []string `yaml:"values,omitempty"`

	// Retained publishes the echoed value as a retained message.
	Retained bool `yaml:"retained"`
}

// Fallback modes for NodeConfig.Fallback.
const (
	FallbackNone   = "none"
	FallbackAccept = "accept"
	FallbackReject = "reject"
)

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// InputRetention is how many days of the input journal to keep.
	// Zero keeps everything.
	InputRetention int `yaml:"input_retention"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP introspection API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DEVICE_ID, GRAYLOGIC_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:            "graylogic-node",
			Name:          "Gray Logic Node",
			BaseTopic:     "homie/",
			LoopInterval:  100,
			StatsInterval: 60,
			QueueSize:     64,
		},
		Database: DatabaseConfig{
			Path:           "./data/nodes.db",
			WALMode:        true,
			BusyTimeout:    5,
			InputRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-node",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// Node ids and property names are validated when the nodes are built.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.BaseTopic == "" || !strings.HasSuffix(c.Device.BaseTopic, "/") {
		errs = append(errs, "device.base_topic must be non-empty and end with /")
	}
	if c.Device.LoopInterval < 1 {
		errs = append(errs, "device.loop_interval must be at least 1 millisecond")
	}
	if c.Device.StatsInterval < 1 {
		errs = append(errs, "device.stats_interval must be at least 1 second")
	}
	if c.Device.QueueSize < 1 {
		errs = append(errs, "device.queue_size must be at least 1")
	}

	for i, n := range c.Nodes {
		switch n.Fallback {
		case "", FallbackNone, FallbackAccept, FallbackReject:
		default:
			errs = append(errs, fmt.Sprintf("nodes[%d].fallback %q is invalid (use accept, reject, or none)", i, n.Fallback))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.InputRetention < 0 {
		errs = append(errs, "database.input_retention must not be negative")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetLoopInterval returns the scheduler tick as a Duration.
func (c *Config) GetLoopInterval() time.Duration {
	return time.Duration(c.Device.LoopInterval) * time.Millisecond
}

// GetStatsInterval returns the stats publishing interval as a Duration.
func (c *Config) GetStatsInterval() time.Duration {
	return time.Duration(c.Device.StatsInterval) * time.Second
}

// GetInputRetention returns how long journal records are kept.
// Zero means forever.
func (c *Config) GetInputRetention() time.Duration {
	return time.Duration(c.Database.InputRetention) * 24 * time.Hour
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
