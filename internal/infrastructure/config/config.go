package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Luftujha Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Modbus    ModbusConfig    `yaml:"modbus"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Poller    PollerConfig    `yaml:"poller"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite database settings for the rule store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains downstream WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// UpstreamConfig contains connection settings for the upstream smart-home
// controller (Home Assistant), which owns authoritative valve entity state.
type UpstreamConfig struct {
	// BaseURL is the HTTP base URL of the controller API.
	// Inside a supervised add-on this is http://supervisor/core.
	BaseURL string `yaml:"base_url"`

	// Token is the long-lived access token used for both the REST API
	// and the WebSocket event stream handshake.
	Token string `yaml:"token"`

	// EntityPrefix selects which entities are material to this system.
	// Only entities whose ID starts with this prefix are mirrored.
	EntityPrefix string `yaml:"entity_prefix"`

	// ReconnectDelay is the fixed delay in seconds before the event
	// stream is re-dialled after any disconnect.
	ReconnectDelay int `yaml:"reconnect_delay"`

	// RequestTimeout bounds individual REST calls, in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// ModbusConfig contains register transport settings for the ventilation unit.
type ModbusConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// UnitID is the Modbus unit (slave) address of the device.
	UnitID int `yaml:"unit_id"`

	// Family selects the device register map from the catalog
	// (e.g. "atrea-rd5").
	Family string `yaml:"family"`

	// Timeout bounds a single register operation, in seconds.
	Timeout int `yaml:"timeout"`

	// ReconnectDelay is the fixed delay in seconds before a dropped
	// persistent connection is re-dialled.
	ReconnectDelay int `yaml:"reconnect_delay"`
}

// SchedulerConfig contains timeline scheduler settings.
type SchedulerConfig struct {
	// Interval is the tick cadence in seconds.
	Interval int `yaml:"interval"`

	// AlignToMinute delays the steady-state ticker so ticks land on
	// wall-clock minute boundaries, minimising skew against rule windows.
	AlignToMinute bool `yaml:"align_to_minute"`
}

// PollerConfig contains HRU register polling settings.
type PollerConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// MQTTConfig contains MQTT broker connection settings for telemetry.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUFTUJHA_SECTION_KEY
// For example: LUFTUJHA_DATABASE_PATH, LUFTUJHA_UPSTREAM_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
// Defaults mirror the supervised add-on deployment: the upstream controller
// is reached through the supervisor proxy and the Atrea RD5 speaks Modbus
// TCP on the standard port.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/luftujha.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws/valves",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Upstream: UpstreamConfig{
			BaseURL:        "http://supervisor/core",
			EntityPrefix:   "number.luftator_",
			ReconnectDelay: 5,
			RequestTimeout: 10,
		},
		Modbus: ModbusConfig{
			Port:           502,
			UnitID:         1,
			Family:         "atrea-rd5",
			Timeout:        5,
			ReconnectDelay: 5,
		},
		Scheduler: SchedulerConfig{
			Interval:      60,
			AlignToMinute: true,
		},
		Poller: PollerConfig{
			Enabled:  true,
			Interval: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "luftujha-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: LUFTUJHA_SECTION_KEY.
// SUPERVISOR_TOKEN is honoured as a fallback for the upstream token so the
// binary works unmodified inside a supervised add-on.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUFTUJHA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("LUFTUJHA_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("LUFTUJHA_UPSTREAM_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("LUFTUJHA_UPSTREAM_TOKEN"); v != "" {
		cfg.Upstream.Token = v
	}
	if cfg.Upstream.Token == "" {
		cfg.Upstream.Token = os.Getenv("SUPERVISOR_TOKEN")
	}

	if v := os.Getenv("LUFTUJHA_MODBUS_HOST"); v != "" {
		cfg.Modbus.Host = v
	}

	if v := os.Getenv("LUFTUJHA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUFTUJHA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUFTUJHA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("LUFTUJHA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required")
	}
	if c.Upstream.Token == "" {
		errs = append(errs, "upstream.token is required (set LUFTUJHA_UPSTREAM_TOKEN or SUPERVISOR_TOKEN)")
	}
	if c.Upstream.EntityPrefix == "" {
		errs = append(errs, "upstream.entity_prefix is required")
	}

	if c.Modbus.Host == "" {
		errs = append(errs, "modbus.host is required")
	}
	if c.Modbus.Port < 1 || c.Modbus.Port > 65535 {
		errs = append(errs, "modbus.port must be between 1 and 65535")
	}
	if c.Modbus.UnitID < 0 || c.Modbus.UnitID > 255 {
		errs = append(errs, "modbus.unit_id must be between 0 and 255")
	}
	if c.Modbus.Family == "" {
		errs = append(errs, "modbus.family is required")
	}

	if c.Scheduler.Interval < 1 {
		errs = append(errs, "scheduler.interval must be at least 1 second")
	}

	if c.Poller.Enabled && c.Poller.Interval < 1 {
		errs = append(errs, "poller.interval must be at least 1 second")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetUpstreamReconnectDelay returns the upstream link reconnect delay as a Duration.
func (c *Config) GetUpstreamReconnectDelay() time.Duration {
	return time.Duration(c.Upstream.ReconnectDelay) * time.Second
}

// GetModbusTimeout returns the per-operation register transport timeout as a Duration.
func (c *Config) GetModbusTimeout() time.Duration {
	return time.Duration(c.Modbus.Timeout) * time.Second
}

// GetModbusReconnectDelay returns the register transport reconnect delay as a Duration.
func (c *Config) GetModbusReconnectDelay() time.Duration {
	return time.Duration(c.Modbus.ReconnectDelay) * time.Second
}

// GetSchedulerInterval returns the scheduler tick interval as a Duration.
func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.Interval) * time.Second
}

// GetPollerInterval returns the HRU poll interval as a Duration.
func (c *Config) GetPollerInterval() time.Duration {
	return time.Duration(c.Poller.Interval) * time.Second
}
