package climate

import (
	"strconv"

	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/mqtt"
)

const manufacturer = "Hitachi"

// DeviceInfo groups discovery entities under one physical unit.
type DeviceInfo struct {
	Identifiers  string `json:"identifiers"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// ClimateConfig is the auto-configuration document for a climate entity.
type ClimateConfig struct {
	Name       string `json:"name"`
	UniqueID   string `json:"unique_id"`
	PayloadOn  string `json:"payload_on"`
	PayloadOff string `json:"payload_off"`

	CurrentTemperatureTopic string `json:"current_temperature_topic"`
	ModeStateTopic          string `json:"mode_state_topic"`
	TemperatureStateTopic   string `json:"temperature_state_topic"`
	FanModeStateTopic       string `json:"fan_mode_state_topic"`
	SwingModeStateTopic     string `json:"swing_mode_state_topic"`
	AvailabilityTopic       string `json:"availability_topic"`

	ModeCommandTopic        string `json:"mode_command_topic"`
	TemperatureCommandTopic string `json:"temperature_command_topic"`
	FanModeCommandTopic     string `json:"fan_mode_command_topic"`
	SwingModeCommandTopic   string `json:"swing_mode_command_topic"`

	Modes      []string `json:"modes"`
	FanModes   []string `json:"fan_modes"`
	SwingModes []string `json:"swing_modes"`

	Device DeviceInfo `json:"device"`
}

// SensorConfig is the auto-configuration document for the outdoor sensor.
type SensorConfig struct {
	Name              string     `json:"name"`
	UniqueID          string     `json:"unique_id"`
	DeviceClass       string     `json:"device_class"`
	UnitOfMeasurement string     `json:"unit_of_measurement"`
	StateTopic        string     `json:"state_topic"`
	Device            DeviceInfo `json:"device"`
}

// StateMessage is one retained state publication.
type StateMessage struct {
	Topic   string
	Payload string
}

// ClimateDiscovery builds the climate entity document.
func (d *Device) ClimateDiscovery(topics mqtt.Topics) ClimateConfig {
	s := d.Snapshot()

	fanModes := s.FanModes
	if fanModes == nil {
		fanModes = []string{}
	}
	swingModes := s.SwingModes
	if swingModes == nil {
		swingModes = []string{}
	}

	return ClimateConfig{
		Name:       s.Name,
		UniqueID:   s.ID,
		PayloadOn:  PowerOn,
		PayloadOff: PowerOff,

		CurrentTemperatureTopic: topics.State(s.ID, mqtt.AttrTemperature),
		ModeStateTopic:          topics.State(s.ID, mqtt.AttrMode),
		TemperatureStateTopic:   topics.State(s.ID, mqtt.AttrTargetTemperature),
		FanModeStateTopic:       topics.State(s.ID, mqtt.AttrFanMode),
		SwingModeStateTopic:     topics.State(s.ID, mqtt.AttrSwingMode),
		AvailabilityTopic:       topics.State(s.ID, mqtt.AttrAvailability),

		ModeCommandTopic:        topics.Command(s.ID, mqtt.AttrMode),
		TemperatureCommandTopic: topics.Command(s.ID, mqtt.AttrTargetTemperature),
		FanModeCommandTopic:     topics.Command(s.ID, mqtt.AttrFanMode),
		SwingModeCommandTopic:   topics.Command(s.ID, mqtt.AttrSwingMode),

		Modes:      BusModes(s.Modes),
		FanModes:   fanModes,
		SwingModes: swingModes,

		Device: d.deviceInfo(s),
	}
}

// OutdoorSensorDiscovery builds the outdoor temperature sensor document.
func (d *Device) OutdoorSensorDiscovery(topics mqtt.Topics, unit string) SensorConfig {
	s := d.Snapshot()
	return SensorConfig{
		Name:              s.Name + " (Outdoor temperature)",
		UniqueID:          s.ID + "_outdoor_temp",
		DeviceClass:       "temperature",
		UnitOfMeasurement: unit,
		StateTopic:        topics.State(s.ID, mqtt.AttrOutdoorTemp),
		Device:            d.deviceInfo(s),
	}
}

func (d *Device) deviceInfo(s State) DeviceInfo {
	return DeviceInfo{
		Identifiers:  s.ID,
		Manufacturer: manufacturer,
		Model:        s.ProductName,
	}
}

// StateMessages returns the state publications for the current snapshot.
func (d *Device) StateMessages(topics mqtt.Topics) []StateMessage {
	s := d.Snapshot()

	availability := "offline"
	if s.Online {
		availability = "online"
	}

	return []StateMessage{
		{Topic: topics.State(s.ID, mqtt.AttrTemperature), Payload: strconv.Itoa(s.Temperature)},
		{Topic: topics.State(s.ID, mqtt.AttrMode), Payload: s.BusMode},
		{Topic: topics.State(s.ID, mqtt.AttrTargetTemperature), Payload: strconv.Itoa(s.TargetTemperature)},
		{Topic: topics.State(s.ID, mqtt.AttrFanMode), Payload: s.FanMode},
		{Topic: topics.State(s.ID, mqtt.AttrSwingMode), Payload: s.SwingMode},
		{Topic: topics.State(s.ID, mqtt.AttrAvailability), Payload: availability},
		// Published as a float; integer sensor values render poorly downstream.
		{Topic: topics.State(s.ID, mqtt.AttrOutdoorTemp), Payload: strconv.FormatFloat(float64(s.OutdoorTemperature), 'f', 1, 64)},
	}
}
