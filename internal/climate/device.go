package climate

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/mqtt"
)

// commandPlaceholder is the opaque sixth globalControl parameter.
const commandPlaceholder = "off"

// defaultActionDelay applies when DeviceOptions.ActionDelay is not set.
const defaultActionDelay = 500 * time.Millisecond

// Logger is the logging interface used by devices.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Pusher sends a command envelope upstream.
type Pusher interface {
	Push(ctx context.Context, deviceID string, req hikumo.ApplyRequest) error
}

// State is a point-in-time copy of a device.
type State struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DeviceURL string `json:"device_url"`

	PowerState  string `json:"power_state"`
	LeaveHome   string `json:"leave_home"`
	Mode        string `json:"mode"`
	BusMode     string `json:"bus_mode"`
	FanMode     string `json:"fan_mode"`
	SwingMode   string `json:"swing_mode"`
	ProductName string `json:"product_name"`

	Temperature        int `json:"temperature"`
	TargetTemperature  int `json:"target_temperature"`
	OutdoorTemperature int `json:"outdoor_temperature"`

	Online bool `json:"online"`
	Dirty  bool `json:"dirty"`

	PowerStates []string `json:"power_states"`
	Modes       []string `json:"modes"`
	FanModes    []string `json:"fan_modes"`
	SwingModes  []string `json:"swing_modes"`
}

// DeviceOptions configures a new Device.
type DeviceOptions struct {
	ID        string
	Name      string
	DeviceURL string

	// ActionDelay is the coalescing window between a local write and the push.
	ActionDelay time.Duration

	// Pusher receives the coalesced command. Required for commands to leave the bridge.
	Pusher Pusher

	// Context bounds deferred pushes. Defaults to context.Background().
	Context context.Context

	Logger Logger
}

// Device is the state machine of one physical unit.
//
// A local write marks the device dirty and (re)arms a single push timer.
// While dirty, vendor snapshots are ignored. The push clears dirty only if no
// newer write arrived while it was in flight.
//
// Thread Safety: all methods are safe for concurrent use.
type Device struct {
	id        string
	name      string
	deviceURL string

	delay  time.Duration
	pusher Pusher
	ctx    context.Context
	logger Logger

	mu sync.Mutex

	// pushMu keeps pushes for one device in order.
	pushMu sync.Mutex

	powerState         string
	leaveHome          string
	mode               string
	swingMode          string
	fanMode            string
	temperature        int
	targetTemperature  int
	outdoorTemperature int
	productName        string
	online             bool

	powerStates []string
	modes       []string
	fanModes    []string
	swingModes  []string

	// topicFields maps command topics to fields. Rebuilt on every setup.
	topicFields map[string]Field

	dirty      bool
	generation uint64
	timer      *time.Timer
}

// NewDevice creates a clean, offline device.
func NewDevice(opts DeviceOptions) *Device {
	delay := opts.ActionDelay
	if delay <= 0 {
		delay = defaultActionDelay
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Device{
		id:          opts.ID,
		name:        opts.Name,
		deviceURL:   opts.DeviceURL,
		delay:       delay,
		pusher:      opts.Pusher,
		ctx:         ctx,
		logger:      opts.Logger,
		topicFields: make(map[string]Field),
	}
}

// ID returns the vendor-assigned device id.
func (d *Device) ID() string { return d.id }

// Name returns the human label.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// DeviceURL returns the vendor command endpoint.
func (d *Device) DeviceURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceURL
}

// UpdateIdentity replaces the label and command endpoint reported by setup.
// Empty values keep the current ones.
func (d *Device) UpdateIdentity(name, deviceURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name != "" {
		d.name = name
	}
	if deviceURL != "" {
		d.deviceURL = deviceURL
	}
}

// Dirty reports whether a local write is pending upstream.
func (d *Device) Dirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// commandFields maps writable topic attributes to device fields.
var commandFields = map[string]Field{
	mqtt.AttrMode:              FieldMode,
	mqtt.AttrTargetTemperature: FieldTargetTemperature,
	mqtt.AttrFanMode:           FieldFanMode,
	mqtt.AttrSwingMode:         FieldSwingMode,
}

// SetTopics rebuilds the command topic map for the given topic layout.
func (d *Device) SetTopics(topics mqtt.Topics) {
	m := make(map[string]Field, len(mqtt.CommandAttributes))
	for _, attr := range mqtt.CommandAttributes {
		if field, ok := commandFields[attr]; ok {
			m[topics.Command(d.id, attr)] = field
		}
	}

	d.mu.Lock()
	d.topicFields = m
	d.mu.Unlock()
}

// CommandTopics returns the topics the device accepts writes on.
func (d *Device) CommandTopics() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	topics := make([]string, 0, len(d.topicFields))
	for t := range d.topicFields {
		topics = append(topics, t)
	}
	slices.Sort(topics)
	return topics
}

// UpdateCapabilities replaces the capability lists present in defs. The mode
// list loses autoCooling and gains "off".
func (d *Device) UpdateCapabilities(defs []hikumo.RawDefinition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, def := range defs {
		values := stringValues(def.Values)
		switch DefinitionCapability(def.QualifiedName) {
		case CapabilityPowerStates:
			d.powerStates = values
		case CapabilityModes:
			d.modes = NormalizeModeCapabilities(values)
		case CapabilityFanModes:
			d.fanModes = values
		case CapabilitySwingModes:
			d.swingModes = values
		}
	}
}

// MergeVendorSnapshot applies a vendor state reading. It is a no-op while the
// device is dirty and reports whether anything was applied. Unknown states
// and malformed values are skipped.
func (d *Device) MergeVendorSnapshot(states []hikumo.RawState, online bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dirty {
		return false
	}

	d.online = online
	for _, st := range states {
		field := StateField(st.Name)
		if field == FieldUnknown {
			continue
		}

		if field.IsTemperature() {
			t, ok := SanitizeTemperature(st.Value)
			if !ok {
				d.logDebug("skipping malformed temperature", "device_id", d.id, "field", field.String(), "value", st.Value)
				continue
			}
			d.setIntLocked(field, t)
			continue
		}

		s, ok := st.Value.(string)
		if !ok {
			d.logDebug("skipping non-string state", "device_id", d.id, "field", field.String(), "value", st.Value)
			continue
		}
		if field == FieldMode {
			s = NormalizeMode(s)
		}
		d.setStringLocked(field, s)
	}
	return true
}

// HandleCommand applies a bus write to the field mapped from topic and
// schedules the coalesced push. It reports false for unknown topics and
// unparseable values, leaving the device untouched.
func (d *Device) HandleCommand(topic, payload string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	field, ok := d.topicFields[topic]
	if !ok {
		return false
	}

	switch field {
	case FieldMode:
		if payload == ModeOff {
			d.powerState = PowerOff
		} else {
			d.powerState = PowerOn
			d.mode = ReadMode(payload)
		}
	case FieldTargetTemperature:
		t, ok := parseInt(payload)
		if !ok {
			d.logWarn("ignoring malformed target temperature", "device_id", d.id, "value", payload)
			return false
		}
		d.targetTemperature = t
	default:
		d.setStringLocked(field, payload)
	}

	d.dirty = true
	d.generation++
	d.armLocked(d.generation)
	return true
}

// armLocked replaces any pending push timer with one for gen.
func (d *Device) armLocked(gen uint64) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.flush(d.ctx, gen) })
}

// Flush pushes a pending write immediately.
func (d *Device) Flush(ctx context.Context) {
	d.mu.Lock()
	gen := d.generation
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.flush(ctx, gen)
}

func (d *Device) flush(ctx context.Context, gen uint64) {
	d.pushMu.Lock()
	defer d.pushMu.Unlock()

	d.mu.Lock()
	if !d.dirty || gen != d.generation {
		d.mu.Unlock()
		return
	}
	req := d.commandPayloadLocked()
	pusher := d.pusher
	d.mu.Unlock()

	var err error
	if pusher != nil {
		err = pusher.Push(ctx, d.id, req)
	}
	if err != nil {
		d.logWarn("command push failed", "device_id", d.id, "error", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen == d.generation {
		d.dirty = false
		d.timer = nil
	}
}

// Cancel stops a pending push without sending it. The device stays dirty.
func (d *Device) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// BuildCommandPayload returns the globalControl envelope for the current state.
func (d *Device) BuildCommandPayload() hikumo.ApplyRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commandPayloadLocked()
}

func (d *Device) commandPayloadLocked() hikumo.ApplyRequest {
	return hikumo.NewApplyRequest(d.deviceURL, []any{
		d.powerState,
		d.targetTemperature,
		d.fanMode,
		d.mode,
		d.swingMode,
		commandPlaceholder,
	})
}

// Snapshot returns a copy of the device state.
func (d *Device) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return State{
		ID:                 d.id,
		Name:               d.name,
		DeviceURL:          d.deviceURL,
		PowerState:         d.powerState,
		LeaveHome:          d.leaveHome,
		Mode:               d.mode,
		BusMode:            SanitizeMode(d.powerState, d.mode),
		FanMode:            d.fanMode,
		SwingMode:          d.swingMode,
		ProductName:        d.productName,
		Temperature:        d.temperature,
		TargetTemperature:  d.targetTemperature,
		OutdoorTemperature: d.outdoorTemperature,
		Online:             d.online,
		Dirty:              d.dirty,
		PowerStates:        slices.Clone(d.powerStates),
		Modes:              slices.Clone(d.modes),
		FanModes:           slices.Clone(d.fanModes),
		SwingModes:         slices.Clone(d.swingModes),
	}
}

func (d *Device) setIntLocked(field Field, v int) {
	switch field {
	case FieldTemperature:
		d.temperature = v
	case FieldTargetTemperature:
		d.targetTemperature = v
	case FieldOutdoorTemperature:
		d.outdoorTemperature = v
	}
}

func (d *Device) setStringLocked(field Field, v string) {
	switch field {
	case FieldPowerState:
		d.powerState = v
	case FieldLeaveHome:
		d.leaveHome = v
	case FieldMode:
		d.mode = v
	case FieldSwingMode:
		d.swingMode = v
	case FieldFanMode:
		d.fanMode = v
	case FieldProductName:
		d.productName = v
	}
}

func (d *Device) logDebug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Device) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
