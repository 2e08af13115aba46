package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
)

// Attribute suffixes used on state and command topics.
const (
	AttrTemperature       = "temp"
	AttrMode              = "mode"
	AttrTargetTemperature = "target_temp"
	AttrFanMode           = "fan_mode"
	AttrSwingMode         = "swing_mode"
	AttrAvailability      = "availability"
	AttrOutdoorTemp       = "outdoor_temp"
)

// CommandAttributes lists the writable attributes, in subscription order.
var CommandAttributes = []string{
	AttrMode,
	AttrTargetTemperature,
	AttrFanMode,
	AttrSwingMode,
}

// Topics builds bridge topics from the configured prefixes.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	topics.State("14253", mqtt.AttrMode)
//	// Returns: "hikumo/state/14253/mode"
type Topics struct {
	discovery string
	state     string
	command   string
	reset     string
}

// NewTopics creates a topic builder. Trailing slashes on prefixes are ignored.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	return Topics{
		discovery: strings.TrimRight(cfg.DiscoveryPrefix, "/"),
		state:     strings.TrimRight(cfg.StatePrefix, "/"),
		command:   strings.TrimRight(cfg.CommandPrefix, "/"),
		reset:     cfg.Reset,
	}
}

// =============================================================================
// Device Topics
// =============================================================================

// State returns the topic a device attribute is published on.
//
// Example: hikumo/state/14253/target_temp
func (t Topics) State(deviceID, attr string) string {
	return fmt.Sprintf("%s/%s/%s", t.state, deviceID, attr)
}

// Command returns the topic a device attribute is written on.
//
// Example: hikumo/command/14253/mode
func (t Topics) Command(deviceID, attr string) string {
	return fmt.Sprintf("%s/%s/%s", t.command, deviceID, attr)
}

// ClimateDiscovery returns the auto-configuration topic for a device's climate entity.
//
// Example: homeassistant/climate/14253/config
func (t Topics) ClimateDiscovery(deviceID string) string {
	return fmt.Sprintf("%s/climate/%s/config", t.discovery, deviceID)
}

// OutdoorSensorDiscovery returns the auto-configuration topic for a device's
// outdoor temperature sensor.
//
// Example: homeassistant/sensor/14253_outdoor_temp/config
func (t Topics) OutdoorSensorDiscovery(deviceID string) string {
	return fmt.Sprintf("%s/sensor/%s_outdoor_temp/config", t.discovery, deviceID)
}

// =============================================================================
// Bridge Topics
// =============================================================================

// Reset returns the topic that triggers a full rediscovery.
func (t Topics) Reset() string {
	return t.reset
}

// BridgeStatus returns the bridge availability topic (LWT target).
//
// Example: hikumo/state/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.state)
}

// =============================================================================
// Parsing
// =============================================================================

// DeviceIDFromTopic returns the second-to-last path segment of topic.
// Returns false when the topic has fewer than two segments.
//
// Example: "hikumo/command/14253/mode" → "14253"
func DeviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return "", false
	}
	id := parts[len(parts)-2]
	if id == "" {
		return "", false
	}
	return id, true
}

// AttributeFromTopic returns the last path segment of topic.
func AttributeFromTopic(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
