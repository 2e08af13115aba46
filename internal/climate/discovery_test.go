package climate

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
)

func discoveredDevice(t *testing.T) *Device {
	t.Helper()
	d := newTestDevice(t, nil, time.Hour)
	d.UpdateCapabilities([]hikumo.RawDefinition{
		{QualifiedName: "hlrrwifi:ModeChangeState", Values: []any{"auto", "cooling", "autoCooling", "heating"}},
		{QualifiedName: "hlrrwifi:FanSpeedState", Values: []any{"auto", "high", "low"}},
		{QualifiedName: "hlrrwifi:SwingState", Values: []any{"off", "vertical"}},
	})
	d.MergeVendorSnapshot(vendorStates(), true)
	return d
}

func TestClimateDiscovery(t *testing.T) {
	d := discoveredDevice(t)

	cfg := d.ClimateDiscovery(testTopics())

	if cfg.Name != "Living room" || cfg.UniqueID != "dev-1" {
		t.Errorf("name/unique_id = %q/%q", cfg.Name, cfg.UniqueID)
	}
	if cfg.PayloadOn != "on" || cfg.PayloadOff != "off" {
		t.Errorf("payloads = %q/%q", cfg.PayloadOn, cfg.PayloadOff)
	}
	if want := []string{"auto", "cool", "heat", "off"}; !slices.Equal(cfg.Modes, want) {
		t.Errorf("Modes = %v, want %v", cfg.Modes, want)
	}
	if !slices.Equal(cfg.FanModes, []string{"auto", "high", "low"}) {
		t.Errorf("FanModes = %v", cfg.FanModes)
	}

	topics := map[string]string{
		cfg.CurrentTemperatureTopic: "hikumo/state/dev-1/temp",
		cfg.ModeStateTopic:          "hikumo/state/dev-1/mode",
		cfg.TemperatureStateTopic:   "hikumo/state/dev-1/target_temp",
		cfg.FanModeStateTopic:       "hikumo/state/dev-1/fan_mode",
		cfg.SwingModeStateTopic:     "hikumo/state/dev-1/swing_mode",
		cfg.AvailabilityTopic:       "hikumo/state/dev-1/availability",
		cfg.ModeCommandTopic:        "hikumo/command/dev-1/mode",
		cfg.TemperatureCommandTopic: "hikumo/command/dev-1/target_temp",
		cfg.FanModeCommandTopic:     "hikumo/command/dev-1/fan_mode",
		cfg.SwingModeCommandTopic:   "hikumo/command/dev-1/swing_mode",
	}
	if len(topics) != 10 {
		t.Errorf("discovery topics are not distinct: %+v", cfg)
	}
	for got, want := range topics {
		if got != want {
			t.Errorf("topic = %q, want %q", got, want)
		}
	}

	if cfg.Device.Identifiers != "dev-1" || cfg.Device.Manufacturer != "Hitachi" || cfg.Device.Model != "RAK-25PEC" {
		t.Errorf("Device = %+v", cfg.Device)
	}
}

func TestClimateDiscovery_JSONShape(t *testing.T) {
	d := newTestDevice(t, nil, time.Hour)

	data, err := json.Marshal(d.ClimateDiscovery(testTopics()))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"name", "unique_id", "mode_command_topic", "temperature_command_topic", "modes", "fan_modes", "swing_modes", "device"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("discovery document missing %q", key)
		}
	}
	// Empty capability lists encode as [] rather than null.
	if fan, ok := doc["fan_modes"].([]any); !ok || len(fan) != 0 {
		t.Errorf("fan_modes = %v, want []", doc["fan_modes"])
	}
}

func TestOutdoorSensorDiscovery(t *testing.T) {
	d := discoveredDevice(t)

	cfg := d.OutdoorSensorDiscovery(testTopics(), "°C")

	if cfg.Name != "Living room (Outdoor temperature)" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.UniqueID != "dev-1_outdoor_temp" || cfg.DeviceClass != "temperature" || cfg.UnitOfMeasurement != "°C" {
		t.Errorf("sensor = %+v", cfg)
	}
	if cfg.StateTopic != "hikumo/state/dev-1/outdoor_temp" {
		t.Errorf("StateTopic = %q", cfg.StateTopic)
	}
}

func TestStateMessages(t *testing.T) {
	d := discoveredDevice(t)

	got := make(map[string]string)
	for _, m := range d.StateMessages(testTopics()) {
		got[m.Topic] = m.Payload
	}

	want := map[string]string{
		"hikumo/state/dev-1/temp":         "21",
		"hikumo/state/dev-1/mode":         "heat",
		"hikumo/state/dev-1/target_temp":  "22",
		"hikumo/state/dev-1/fan_mode":     "auto",
		"hikumo/state/dev-1/swing_mode":   "vertical",
		"hikumo/state/dev-1/availability": "online",
		"hikumo/state/dev-1/outdoor_temp": "-5.0",
	}
	if len(got) != len(want) {
		t.Fatalf("messages = %v, want %d topics", got, len(want))
	}
	for topic, payload := range want {
		if got[topic] != payload {
			t.Errorf("%s = %q, want %q", topic, got[topic], payload)
		}
	}
}

func TestStateMessages_OfflineAndPoweredOff(t *testing.T) {
	d := newTestDevice(t, nil, time.Hour)
	d.MergeVendorSnapshot([]hikumo.RawState{
		{Name: "hlrrwifi:MainOperationState", Value: "off"},
		{Name: "hlrrwifi:ModeChangeState", Value: "cooling"},
	}, false)

	got := make(map[string]string)
	for _, m := range d.StateMessages(testTopics()) {
		got[m.Topic] = m.Payload
	}

	if got["hikumo/state/dev-1/mode"] != "off" {
		t.Errorf("mode = %q, want off", got["hikumo/state/dev-1/mode"])
	}
	if got["hikumo/state/dev-1/availability"] != "offline" {
		t.Errorf("availability = %q, want offline", got["hikumo/state/dev-1/availability"])
	}
}
