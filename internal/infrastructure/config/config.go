package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the gateway.
// All configuration is loaded from YAML and can be overridden by environment
// variables and then by command-line flags.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Poll    PollConfig    `yaml:"poll"`
	Status  StatusConfig  `yaml:"status"`
	OpenHAB OpenHABConfig `yaml:"openhab"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig contains inverter connection settings.
type DeviceConfig struct {
	// Host is the inverter address (host or host:port).
	Host string `yaml:"host"`

	// Port is used when Host has no port. Default: 8899
	Port int `yaml:"port"`

	// Timeout bounds a single request/response exchange. Default: 1s
	Timeout time.Duration `yaml:"timeout"`

	// Retries is the number of resends per request; 0 sends once. Default: 3
	Retries int `yaml:"retries"`

	// CommAddr is the Modbus slave address. Default: 0xF7
	CommAddr int `yaml:"comm_addr"`

	// SensorTable is an optional path to a YAML sensor table replacing the
	// built-in one.
	SensorTable string `yaml:"sensor_table"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Retain    bool                `yaml:"retain"`
	KeepAlive int                 `yaml:"keep_alive"`
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

// String returns a string representation with password masked.
// Use this for logging to prevent credential exposure.
func (a MQTTAuthConfig) String() string {
	password := ""
	if a.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTAuthConfig{Username:%q, Password:%s}", a.Username, password)
}

// MarshalJSON implements json.Marshaler to redact the password in JSON output.
func (a MQTTAuthConfig) MarshalJSON() ([]byte, error) {
	type redacted MQTTAuthConfig
	safe := redacted(a)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// PollConfig contains the polling loop settings. Delays are in seconds.
type PollConfig struct {
	// Topic is the prefix every reading is published under.
	Topic string `yaml:"topic"`

	// Delay is the pause after a successful cycle.
	Delay int `yaml:"delay"`

	// Tries is the number of consecutive failed cycles tolerated.
	Tries int `yaml:"tries"`

	// SettleDelay is the pause between bus connect and device connect.
	SettleDelay int `yaml:"settle_delay"`

	// ConnectRetryDelay is the pause before the single device connect retry.
	ConnectRetryDelay int `yaml:"connect_retry_delay"`

	// BackoffDivisor divides Delay to get the pause after a failed cycle.
	BackoffDivisor int `yaml:"backoff_divisor"`
}

// StatusConfig contains the optional health/metrics HTTP endpoint settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// OpenHABConfig contains defaults for the items and thing generators.
type OpenHABConfig struct {
	Groups     string `yaml:"groups"`
	ItemPrefix string `yaml:"item_prefix"`
	CamelCase  bool   `yaml:"camel_case"`
	ThingUID   string `yaml:"thing_uid"`
	ThingLabel string `yaml:"thing_label"`
	BrokerUID  string `yaml:"broker_uid"`
	Location   string `yaml:"location"`
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GW_SECTION_KEY
// For example: GW_DEVICE_HOST, GW_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Host:     "192.168.2.92",
			Port:     8899,
			Timeout:  time.Second,
			Retries:  3,
			CommAddr: 0xF7,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "goodwe-gw",
			},
			QoS:       0,
			KeepAlive: 60,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Poll: PollConfig{
			Topic:             "solar",
			Delay:             15,
			Tries:             100,
			SettleDelay:       3,
			ConnectRetryDelay: 3,
			BackoffDivisor:    3,
		},
		Status: StatusConfig{
			Listen: "127.0.0.1:9109",
		},
		OpenHAB: OpenHABConfig{
			Groups:     "gSolar",
			ItemPrefix: "solar_",
			ThingUID:   "mqtt:topic:mq:solar",
			ThingLabel: "Solar",
			BrokerUID:  "mqtt:broker:mq",
			Location:   "roof",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GW_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Device
	if v := os.Getenv("GW_DEVICE_HOST"); v != "" {
		cfg.Device.Host = v
	}

	// MQTT
	if v := os.Getenv("GW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GW_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GW_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("GW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Poll
	if v := os.Getenv("GW_POLL_TOPIC"); v != "" {
		cfg.Poll.Topic = v
	}

	// Status
	if v := os.Getenv("GW_STATUS_LISTEN"); v != "" {
		cfg.Status.Listen = v
		cfg.Status.Enabled = true
	}

	// Logging
	if v := os.Getenv("GW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Trailing slashes are trimmed from poll.topic before it is checked, so
// the published topics never contain an empty level.
//
// Returns:
//   - error: Description of validation failures, or nil if valid
func (c *Config) Validate() error {
	c.Poll.Topic = strings.TrimRight(c.Poll.Topic, "/")

	var errs []string

	errs = append(errs, c.validateDevice()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validatePoll()...)
	errs = append(errs, c.validateStatus()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateDevice() []string {
	var errs []string
	if c.Device.Host == "" {
		errs = append(errs, "device.host is required")
	}
	if c.Device.Port < 1 || c.Device.Port > 65535 {
		errs = append(errs, "device.port must be between 1 and 65535")
	}
	if c.Device.Timeout <= 0 {
		errs = append(errs, "device.timeout must be positive")
	}
	if c.Device.Retries < 0 {
		errs = append(errs, "device.retries must not be negative")
	}
	if c.Device.CommAddr < 1 || c.Device.CommAddr > 0xFF {
		errs = append(errs, "device.comm_addr must be between 1 and 255")
	}
	return errs
}

func (c *Config) validateMQTT() []string {
	var errs []string
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive must not be negative")
	}
	return errs
}

func (c *Config) validatePoll() []string {
	var errs []string
	if c.Poll.Topic == "" {
		errs = append(errs, "poll.topic is required")
	} else if strings.ContainsAny(c.Poll.Topic, "+#") {
		errs = append(errs, "poll.topic must not contain MQTT wildcards")
	}
	if c.Poll.Delay < 1 {
		errs = append(errs, "poll.delay must be at least 1 second")
	}
	if c.Poll.Tries < 1 {
		errs = append(errs, "poll.tries must be at least 1")
	}
	if c.Poll.SettleDelay < 0 {
		errs = append(errs, "poll.settle_delay must not be negative")
	}
	if c.Poll.ConnectRetryDelay < 0 {
		errs = append(errs, "poll.connect_retry_delay must not be negative")
	}
	if c.Poll.BackoffDivisor < 1 {
		errs = append(errs, "poll.backoff_divisor must be at least 1")
	}
	return errs
}

func (c *Config) validateStatus() []string {
	if c.Status.Enabled && c.Status.Listen == "" {
		return []string{"status.listen is required when status.enabled is true"}
	}
	return nil
}

func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true}
	if !validOutputs[strings.ToLower(c.Logging.Output)] {
		errs = append(errs, fmt.Sprintf("logging.output %q is invalid (use stdout or stderr)", c.Logging.Output))
	}

	return errs
}

// GetDelay returns the pause after a successful cycle as a Duration.
func (c *Config) GetDelay() time.Duration {
	return time.Duration(c.Poll.Delay) * time.Second
}

// GetSettleDelay returns the pause after the bus connect as a Duration.
func (c *Config) GetSettleDelay() time.Duration {
	return time.Duration(c.Poll.SettleDelay) * time.Second
}

// GetConnectRetryDelay returns the pause before the device connect retry.
func (c *Config) GetConnectRetryDelay() time.Duration {
	return time.Duration(c.Poll.ConnectRetryDelay) * time.Second
}

// GetReconnectInitialDelay returns the MQTT initial reconnect delay.
func (c *Config) GetReconnectInitialDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.InitialDelay) * time.Second
}

// GetReconnectMaxDelay returns the MQTT maximum reconnect delay.
func (c *Config) GetReconnectMaxDelay() time.Duration {
	return time.Duration(c.MQTT.Reconnect.MaxDelay) * time.Second
}
