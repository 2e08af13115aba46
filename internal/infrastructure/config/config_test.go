package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a temporary file and returns its path.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
hikumo:
  username: "user@example.com"
  password: "secret"
mqtt:
  broker:
    host: "broker.local"
    port: 1884
  topics:
    state_prefix: "hk/state"
sync:
  action_delay: 250ms
  refresh_delays: [1s, 2s]
`
	path := writeConfig(t, "config.yaml", content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hikumo.Username != "user@example.com" {
		t.Errorf("Hikumo.Username = %q, want %q", cfg.Hikumo.Username, "user@example.com")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.Topics.StatePrefix != "hk/state" {
		t.Errorf("StatePrefix = %q, want %q", cfg.MQTT.Topics.StatePrefix, "hk/state")
	}
	// Unset prefixes keep their defaults
	if cfg.MQTT.Topics.CommandPrefix != "hikumo/command" {
		t.Errorf("CommandPrefix = %q, want default", cfg.MQTT.Topics.CommandPrefix)
	}
	if cfg.Sync.ActionDelay != 250*time.Millisecond {
		t.Errorf("ActionDelay = %v, want 250ms", cfg.Sync.ActionDelay)
	}
	if len(cfg.Sync.RefreshDelays) != 2 || cfg.Sync.RefreshDelays[1] != 2*time.Second {
		t.Errorf("RefreshDelays = %v, want [1s 2s]", cfg.Sync.RefreshDelays)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "hikumo:\n  username: u\n  password: p\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hikumo.RetryBudget != 1 {
		t.Errorf("RetryBudget = %d, want 1", cfg.Hikumo.RetryBudget)
	}
	if cfg.Sync.ActionDelay != 500*time.Millisecond {
		t.Errorf("ActionDelay = %v, want 500ms", cfg.Sync.ActionDelay)
	}
	want := []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second, 30 * time.Second}
	if len(cfg.Sync.RefreshDelays) != len(want) {
		t.Fatalf("RefreshDelays = %v, want %v", cfg.Sync.RefreshDelays, want)
	}
	for i := range want {
		if cfg.Sync.RefreshDelays[i] != want[i] {
			t.Errorf("RefreshDelays[%d] = %v, want %v", i, cfg.Sync.RefreshDelays[i], want[i])
		}
	}
	if cfg.MQTT.Topics.Reset != "hikumo/reset" {
		t.Errorf("Reset topic = %q, want hikumo/reset", cfg.MQTT.Topics.Reset)
	}
	if !cfg.MQTT.Discovery || !cfg.MQTT.ConfigRetain || !cfg.MQTT.StateRetain {
		t.Error("discovery and retain flags should default to true")
	}
}

func TestLoad_Overlay(t *testing.T) {
	base := writeConfig(t, "default.yaml", "hikumo:\n  username: base\n  password: p\nmqtt:\n  qos: 0\n")
	overlay := writeConfig(t, "local.yaml", "hikumo:\n  username: local\nmqtt:\n  qos: 1\n")

	cfg, err := Load(base, overlay)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hikumo.Username != "local" {
		t.Errorf("Username = %q, want overlay value", cfg.Hikumo.Username)
	}
	if cfg.Hikumo.Password != "p" {
		t.Errorf("Password = %q, want base value", cfg.Hikumo.Password)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("QoS = %d, want 1", cfg.MQTT.QoS)
	}
}

func TestLoad_MissingOverlayIgnored(t *testing.T) {
	base := writeConfig(t, "default.yaml", "hikumo:\n  username: u\n  password: p\n")

	if _, err := Load(base, filepath.Join(t.TempDir(), "local.yaml")); err != nil {
		t.Fatalf("Load() error = %v, want nil for missing overlay", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HIKUMO_API_USERNAME", "env-user")
	t.Setenv("HIKUMO_API_PASSWORD", "env-pass")
	t.Setenv("HIKUMO_MQTT_HOST", "env-broker")

	path := writeConfig(t, "config.yaml", "hikumo:\n  username: file-user\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hikumo.Username != "env-user" {
		t.Errorf("Username = %q, want env-user", cfg.Hikumo.Username)
	}
	if cfg.Hikumo.Password != "env-pass" {
		t.Errorf("Password = %q, want env-pass", cfg.Hikumo.Password)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Hikumo.Username = "user"
		cfg.Hikumo.Password = "pass"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "missing username",
			mutate:  func(c *Config) { c.Hikumo.Username = "" },
			wantErr: "hikumo.username",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Hikumo.Password = "" },
			wantErr: "hikumo.password",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid broker port",
			mutate:  func(c *Config) { c.MQTT.Broker.Port = 0 },
			wantErr: "mqtt.broker.port",
		},
		{
			name:    "empty refresh delays",
			mutate:  func(c *Config) { c.Sync.RefreshDelays = nil },
			wantErr: "sync.refresh_delays",
		},
		{
			name:    "negative refresh delay",
			mutate:  func(c *Config) { c.Sync.RefreshDelays = []time.Duration{-time.Second} },
			wantErr: "sync.refresh_delays",
		},
		{
			name:    "zero action delay",
			mutate:  func(c *Config) { c.Sync.ActionDelay = 0 },
			wantErr: "sync.action_delay",
		},
		{
			name:    "negative retry budget",
			mutate:  func(c *Config) { c.Hikumo.RetryBudget = -1 },
			wantErr: "hikumo.retry_budget",
		},
		{
			name:    "discovery without prefix",
			mutate:  func(c *Config) { c.MQTT.Topics.DiscoveryPrefix = "" },
			wantErr: "discovery_prefix",
		},
		{
			name: "discovery disabled without prefix",
			mutate: func(c *Config) {
				c.MQTT.Discovery = false
				c.MQTT.Topics.DiscoveryPrefix = ""
			},
		},
		{
			name: "journal enabled without path",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
			},
			wantErr: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 1, Write: 2, Idle: 3},
		},
	}

	if got := cfg.GetReadTimeout(); got != time.Second {
		t.Errorf("GetReadTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 2*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 2s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 3*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 3s", got)
	}
}
