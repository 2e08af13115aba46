package climate

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Field identifies a tracked device field.
type Field int

// Tracked device fields.
const (
	FieldUnknown Field = iota
	FieldPowerState
	FieldLeaveHome
	FieldMode
	FieldSwingMode
	FieldFanMode
	FieldTemperature
	FieldTargetTemperature
	FieldOutdoorTemperature
	FieldProductName
)

var fieldNames = map[Field]string{
	FieldPowerState:         "power_state",
	FieldLeaveHome:          "leave_home",
	FieldMode:               "mode",
	FieldSwingMode:          "swing_mode",
	FieldFanMode:            "fan_mode",
	FieldTemperature:        "temperature",
	FieldTargetTemperature:  "target_temperature",
	FieldOutdoorTemperature: "outdoor_temperature",
	FieldProductName:        "product_name",
}

// String returns the field name used in logs.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// IsTemperature reports whether the field holds a signed-byte temperature.
func (f Field) IsTemperature() bool {
	switch f {
	case FieldTemperature, FieldTargetTemperature, FieldOutdoorTemperature:
		return true
	default:
		return false
	}
}

// Capability identifies a vendor-advertised list of valid values.
type Capability int

// Capability lists fetched at discovery.
const (
	CapabilityUnknown Capability = iota
	CapabilityPowerStates
	CapabilityModes
	CapabilityFanModes
	CapabilitySwingModes
)

// Vendor state names (shared by live states and definitions).
const (
	stateMainOperation   = "hlrrwifi:MainOperationState"
	stateLeaveHome       = "hlrrwifi:LeaveHomeState"
	stateModeChange      = "hlrrwifi:ModeChangeState"
	stateSwing           = "hlrrwifi:SwingState"
	stateFanSpeed        = "hlrrwifi:FanSpeedState"
	stateRoomTemperature = "hlrrwifi:RoomTemperatureState"
	stateTargetTemp      = "core:TargetTemperatureState"
	stateOutdoorTemp     = "hlrrwifi:OutdoorTemperatureState"
	stateProductModel    = "core:ProductModelNameState"
)

var stateFields = map[string]Field{
	stateMainOperation:   FieldPowerState,
	stateLeaveHome:       FieldLeaveHome,
	stateModeChange:      FieldMode,
	stateSwing:           FieldSwingMode,
	stateFanSpeed:        FieldFanMode,
	stateRoomTemperature: FieldTemperature,
	stateTargetTemp:      FieldTargetTemperature,
	stateOutdoorTemp:     FieldOutdoorTemperature,
	stateProductModel:    FieldProductName,
}

var definitionCapabilities = map[string]Capability{
	stateMainOperation: CapabilityPowerStates,
	stateModeChange:    CapabilityModes,
	stateFanSpeed:      CapabilityFanModes,
	stateSwing:         CapabilitySwingModes,
}

// StateField maps a vendor state name to a tracked field.
func StateField(name string) Field {
	return stateFields[name]
}

// DefinitionCapability maps a vendor definition name to a capability list.
func DefinitionCapability(name string) Capability {
	return definitionCapabilities[name]
}

// Power and mode values.
const (
	PowerOn  = "on"
	PowerOff = "off"

	ModeAuto = "auto"
	ModeOff  = "off"

	vendorModeCooling     = "cooling"
	vendorModeAutoCooling = "autoCooling"
)

// vendorToBus maps vendor modes to bus modes.
var vendorToBus = map[string]string{
	"auto":       "auto",
	"cooling":    "cool",
	"dehumidify": "dry",
	"fan":        "fan_only",
	"heating":    "heat",
	"off":        "off",
}

// busToVendor maps bus modes to vendor modes.
var busToVendor = map[string]string{
	"auto":     "auto",
	"cool":     "cooling",
	"dry":      "dehumidify",
	"fan_only": "fan",
	"heat":     "heating",
	"off":      "off",
}

// BusMode returns the bus name for a vendor mode and whether it is mapped.
func BusMode(vendorMode string) (string, bool) {
	m, ok := vendorToBus[vendorMode]
	return m, ok
}

// SanitizeMode returns the bus mode to publish: "off" whenever the power
// state is off, otherwise the translated mode, defaulting to "auto".
func SanitizeMode(powerState, vendorMode string) string {
	if powerState == PowerOff {
		return ModeOff
	}
	if m, ok := vendorToBus[vendorMode]; ok {
		return m
	}
	return ModeAuto
}

// ReadMode translates a bus mode into a vendor mode, defaulting to "auto".
func ReadMode(busMode string) string {
	if m, ok := busToVendor[busMode]; ok {
		return m
	}
	return ModeAuto
}

// NormalizeMode folds the autoCooling alias into cooling.
func NormalizeMode(vendorMode string) string {
	if vendorMode == vendorModeAutoCooling {
		return vendorModeCooling
	}
	return vendorMode
}

// NormalizeModeCapabilities strips autoCooling and appends the synthetic
// "off" mode. Order is preserved and duplicates are dropped.
func NormalizeModeCapabilities(modes []string) []string {
	out := make([]string, 0, len(modes)+1)
	seen := make(map[string]bool, len(modes)+1)
	for _, m := range modes {
		if m == vendorModeAutoCooling || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if !seen[ModeOff] {
		out = append(out, ModeOff)
	}
	return out
}

// BusModes translates vendor mode capabilities for discovery. Unmapped modes
// are dropped and the result holds no duplicates.
func BusModes(vendorModes []string) []string {
	out := make([]string, 0, len(vendorModes))
	seen := make(map[string]bool, len(vendorModes))
	for _, vm := range vendorModes {
		m, ok := vendorToBus[vm]
		if !ok || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// SanitizeTemperature parses a vendor or bus temperature, truncates it to an
// integer and reinterprets values above 127 as signed bytes. It accepts JSON
// numbers and numeric strings; anything else reports false.
func SanitizeTemperature(raw any) (int, bool) {
	v, ok := parseNumber(raw)
	if !ok {
		return 0, false
	}
	t := int(v)
	if t > 127 {
		t -= 256
	}
	return t, true
}

// parseInt truncates a numeric bus payload without signed-byte reinterpretation.
func parseInt(payload string) (int, bool) {
	v, ok := parseNumber(payload)
	if !ok {
		return 0, false
	}
	return int(v), true
}

func parseNumber(raw any) (float64, bool) {
	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
		return 0, false
	}
	return v, true
}

// stringValues keeps the string entries of a definition's value list.
func stringValues(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
