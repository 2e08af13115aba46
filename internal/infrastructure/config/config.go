package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Hi-Kumo bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hikumo   HikumoConfig   `yaml:"hikumo"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Sync     SyncConfig     `yaml:"sync"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HikumoConfig contains the vendor cloud API settings.
type HikumoConfig struct {
	// APIURL is the enduser API base, without trailing slash.
	APIURL string `yaml:"api_url"`

	Username string `yaml:"username"`

	// Password for the vendor account.
	// WARNING: Never log this value.
	Password string `yaml:"password"`

	UserAgent  string `yaml:"user_agent"`
	HTTPProxy  string `yaml:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy"`

	// RetryBudget is how many times a failed call is retried after re-login.
	RetryBudget int `yaml:"retry_budget"`

	// RetryDelays and RetryRandomness pace retries of failed vendor calls.
	RetryDelays     []time.Duration `yaml:"retry_delays"`
	RetryRandomness time.Duration   `yaml:"retry_randomness"`

	// RequestsPerSecond caps the call rate towards the cloud. 0 disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`

	// Discovery enables publishing auto-configuration documents.
	Discovery bool `yaml:"discovery"`

	// RemoveDiscoveryOnStop clears discovery documents on shutdown.
	RemoveDiscoveryOnStop bool `yaml:"remove_discovery_on_stop"`

	ConfigRetain bool `yaml:"config_retain"`
	StateRetain  bool `yaml:"state_retain"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTTopicsConfig contains the topic prefixes exposed on the bus.
type MQTTTopicsConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	StatePrefix     string `yaml:"state_prefix"`
	CommandPrefix   string `yaml:"command_prefix"`
	Reset           string `yaml:"reset"`
}

// SyncConfig contains device synchronisation settings.
type SyncConfig struct {
	// ActionDelay is the coalescing window for local writes before a push.
	ActionDelay time.Duration `yaml:"action_delay"`

	// RefreshDelays is the ordered list of poll cadence tiers.
	RefreshDelays []time.Duration `yaml:"refresh_delays"`

	// RefreshRandomness is the jitter magnitude applied to every poll delay.
	RefreshRandomness time.Duration `yaml:"refresh_randomness"`

	// TemperatureUnit is only used in discovery metadata.
	TemperatureUnit string `yaml:"temperature_unit"`
}

// DatabaseConfig contains the SQLite command journal settings.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
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

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
//  3. Overlay files, in order, when they exist (e.g. configs/local.yaml)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: HIKUMO_SECTION_KEY
// For example: HIKUMO_API_PASSWORD, HIKUMO_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file (required)
//   - overlays: Optional files layered on top; missing files are skipped
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If a file cannot be read, parsed, or validation fails
func Load(path string, overlays ...string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	for _, overlay := range overlays {
		data, err := os.ReadFile(overlay)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading overlay %s: %w", overlay, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing overlay %s: %w", overlay, err)
		}
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
		Hikumo: HikumoConfig{
			APIURL:            "https://ha117-1.overkiz.com/enduser-mobile-web/enduserAPI",
			UserAgent:         "aasivak",
			RetryBudget:       1,
			RetryDelays:       []time.Duration{time.Second},
			RetryRandomness:   2 * time.Second,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     1883,
				ClientID: "aasivak",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				DiscoveryPrefix: "homeassistant",
				StatePrefix:     "hikumo/state",
				CommandPrefix:   "hikumo/command",
				Reset:           "hikumo/reset",
			},
			Discovery:    true,
			ConfigRetain: true,
			StateRetain:  true,
		},
		Sync: SyncConfig{
			ActionDelay: 500 * time.Millisecond,
			RefreshDelays: []time.Duration{
				3 * time.Second,
				5 * time.Second,
				10 * time.Second,
				30 * time.Second,
			},
			RefreshRandomness: 2 * time.Second,
			TemperatureUnit:   "°C",
		},
		Database: DatabaseConfig{
			Path:        "./data/hikumo.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HIKUMO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Vendor account
	if v := os.Getenv("HIKUMO_API_URL"); v != "" {
		cfg.Hikumo.APIURL = v
	}
	if v := os.Getenv("HIKUMO_API_USERNAME"); v != "" {
		cfg.Hikumo.Username = v
	}
	if v := os.Getenv("HIKUMO_API_PASSWORD"); v != "" {
		cfg.Hikumo.Password = v
	}

	// MQTT
	if v := os.Getenv("HIKUMO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HIKUMO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HIKUMO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("HIKUMO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Vendor account
	if c.Hikumo.APIURL == "" {
		errs = append(errs, "hikumo.api_url is required")
	}
	if c.Hikumo.Username == "" {
		errs = append(errs, "hikumo.username is required (set HIKUMO_API_USERNAME environment variable)")
	}
	if c.Hikumo.Password == "" {
		errs = append(errs, "hikumo.password is required (set HIKUMO_API_PASSWORD environment variable)")
	}
	if c.Hikumo.RetryBudget < 0 {
		errs = append(errs, "hikumo.retry_budget must not be negative")
	}
	if c.Hikumo.RequestsPerSecond < 0 {
		errs = append(errs, "hikumo.requests_per_second must not be negative")
	}
	if !nonNegative(c.Hikumo.RetryDelays) {
		errs = append(errs, "hikumo.retry_delays must not contain negative values")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.StatePrefix == "" || c.MQTT.Topics.CommandPrefix == "" {
		errs = append(errs, "mqtt.topics.state_prefix and mqtt.topics.command_prefix are required")
	}
	if c.MQTT.Topics.Reset == "" {
		errs = append(errs, "mqtt.topics.reset is required")
	}
	if c.MQTT.Discovery && c.MQTT.Topics.DiscoveryPrefix == "" {
		errs = append(errs, "mqtt.topics.discovery_prefix is required when discovery is enabled")
	}

	// Sync
	if c.Sync.ActionDelay <= 0 {
		errs = append(errs, "sync.action_delay must be positive")
	}
	if len(c.Sync.RefreshDelays) == 0 {
		errs = append(errs, "sync.refresh_delays must contain at least one delay")
	} else if !nonNegative(c.Sync.RefreshDelays) {
		errs = append(errs, "sync.refresh_delays must not contain negative values")
	}
	if c.Sync.RefreshRandomness < 0 {
		errs = append(errs, "sync.refresh_randomness must not be negative")
	}

	// Optional components
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func nonNegative(delays []time.Duration) bool {
	for _, d := range delays {
		if d < 0 {
			return false
		}
	}
	return true
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
