package house

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/hikumo-bridge/internal/backoff"
	"github.com/nerrad567/hikumo-bridge/internal/climate"
	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hikumo-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hikumo-bridge/internal/journal"
)

// discoveryQoS is used for auto-configuration documents.
const discoveryQoS byte = 1

// Logger defines the logging interface used by the coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Vendor is the cloud API as seen by the coordinator.
// Satisfied by *hikumo.Session.
type Vendor interface {
	Login(ctx context.Context) error
	FetchSetupData(ctx context.Context) hikumo.SetupData
	ExecApply(ctx context.Context, req hikumo.ApplyRequest) error
}

// Bus is the publish/subscribe transport.
// Satisfied by *mqtt.Client.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	ClearRetained(topic string) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Telemetry receives one climate snapshot per device after each refresh.
// Optional.
type Telemetry interface {
	WriteClimate(state climate.State)
}

// Options configures a Coordinator.
type Options struct {
	Vendor Vendor
	Bus    Bus

	MQTT config.MQTTConfig
	Sync config.SyncConfig

	// Journal, Telemetry and Metrics are optional.
	Journal   journal.Repository
	Telemetry Telemetry
	Metrics   *Metrics

	Logger Logger
}

// Coordinator owns the device registry and drives both data directions:
// the poll loop (vendor to bus) and inbound bus commands (bus to vendor).
//
// Thread Safety: All methods are safe for concurrent use. Run must be
// called at most once.
type Coordinator struct {
	vendor    Vendor
	bus       Bus
	topics    mqtt.Topics
	mqttCfg   config.MQTTConfig
	syncCfg   config.SyncConfig
	telemetry Telemetry
	metrics   *Metrics
	pusher    *pusher
	logger    Logger

	// poll paces refresh cycles; reset on every routed command.
	poll *backoff.Sequencer

	mu         sync.RWMutex
	devices    map[string]*climate.Device
	gateways   map[string]bool // gateway id -> alive
	registered bool

	// regMu serialises register/unregister against each other.
	regMu sync.Mutex

	resetCh chan struct{}

	// ctx bounds deferred device pushes; cancelled by Stop.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates a coordinator. Call Run to start the poll loop.
func New(opts Options) (*Coordinator, error) {
	if opts.Vendor == nil {
		return nil, ErrVendorRequired
	}
	if opts.Bus == nil {
		return nil, ErrBusRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		vendor:    opts.Vendor,
		bus:       opts.Bus,
		topics:    mqtt.NewTopics(opts.MQTT.Topics),
		mqttCfg:   opts.MQTT,
		syncCfg:   opts.Sync,
		telemetry: opts.Telemetry,
		metrics:   opts.Metrics,
		pusher: &pusher{
			vendor:  opts.Vendor,
			journal: opts.Journal,
			metrics: opts.Metrics,
			logger:  logger,
		},
		logger:   logger,
		poll:     backoff.New(opts.Sync.RefreshDelays, opts.Sync.RefreshRandomness),
		devices:  make(map[string]*climate.Device),
		gateways: make(map[string]bool),
		resetCh:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Run performs setup and registration, then refreshes until ctx is done.
// Reset requests are served between cycles. It returns ctx.Err().
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.vendor.Login(ctx); err != nil {
		c.logger.Warn("Initial Hi-Kumo login failed", "error", err)
	}
	c.Setup(ctx)
	c.Register()

	for {
		c.Refresh(ctx)

		timer := time.NewTimer(c.poll.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-c.resetCh:
			timer.Stop()
			c.Reset(ctx)
		case <-timer.C:
		}
	}
}

// Stop cancels pending pushes and releases the coordinator's context.
// Devices with pending writes stay dirty.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.mu.RLock()
		for _, d := range c.devices {
			d.Cancel()
		}
		c.mu.RUnlock()
	})
}

// Setup fetches the discovery document, creates or updates every climate
// device, and rebuilds their topic maps. It returns the number of climate
// devices seen this cycle. A failed fetch leaves the registry untouched.
func (c *Coordinator) Setup(ctx context.Context) int {
	data := c.vendor.FetchSetupData(ctx)
	if !data.Complete() {
		c.logger.Warn("Setup returned no data; keeping current registry")
		return 0
	}

	seen, _ := c.ingest(data, true)
	for _, d := range seen {
		d.SetTopics(c.topics)
		c.logger.Info("Device found", "name", d.Name(), "device_id", d.ID(), "device_url", d.DeviceURL())
	}
	return len(seen)
}

// Refresh fetches current state, merges it into every device and publishes
// the result. Devices seen for the first time are set up and, when the
// coordinator is registered, registered immediately.
func (c *Coordinator) Refresh(ctx context.Context) {
	data := c.vendor.FetchSetupData(ctx)
	if !data.Complete() {
		c.metrics.observePoll(resultEmpty)
		c.logger.Debug("Refresh returned no data")
		return
	}
	c.metrics.observePoll(resultOK)

	_, created := c.ingest(data, false)
	for _, d := range created {
		d.SetTopics(c.topics)
		c.logger.Info("New device found", "name", d.Name(), "device_id", d.ID())
	}

	c.mu.RLock()
	registered := c.registered
	c.mu.RUnlock()
	if registered {
		for _, d := range created {
			c.registerDevice(d)
		}
	}

	states := c.Devices()
	for _, d := range c.deviceList() {
		c.publishState(d)
	}
	if c.telemetry != nil {
		for _, s := range states {
			c.telemetry.WriteClimate(s)
		}
	}
	c.metrics.observeDevices(states)
}

// ingest replaces the gateway liveness table and merges every climate
// device of data. Identity and capabilities of new devices are always
// loaded; existing devices only reload them when withCapabilities is set.
// It returns the climate devices seen and the subset that was created.
func (c *Coordinator) ingest(data hikumo.SetupData, withCapabilities bool) (seen, created []*climate.Device) {
	gateways := make(map[string]bool, len(data.Gateways))
	for _, gw := range data.Gateways {
		gateways[gw.GatewayID] = gw.Alive
	}

	c.mu.Lock()
	c.gateways = gateways

	type pending struct {
		dev   *climate.Device
		raw   hikumo.RawDevice
		isNew bool
	}
	work := make([]pending, 0, len(data.Devices))
	for _, raw := range data.Devices {
		if raw.Type != hikumo.ClimateDeviceType || raw.OID == "" {
			continue
		}
		dev, ok := c.devices[raw.OID]
		if !ok {
			dev = climate.NewDevice(climate.DeviceOptions{
				ID:          raw.OID,
				Name:        raw.Label,
				DeviceURL:   raw.DeviceURL,
				ActionDelay: c.syncCfg.ActionDelay,
				Pusher:      c.pusher,
				Context:     c.ctx,
				Logger:      c.logger,
			})
			c.devices[raw.OID] = dev
		}
		work = append(work, pending{dev: dev, raw: raw, isNew: !ok})
	}
	online := make([]bool, len(work))
	for i, w := range work {
		online[i] = c.availableLocked(w.raw.DeviceURL)
	}
	c.mu.Unlock()

	for i, w := range work {
		if withCapabilities && !w.isNew {
			w.dev.UpdateIdentity(w.raw.Label, w.raw.DeviceURL)
		}
		if w.isNew || withCapabilities {
			w.dev.UpdateCapabilities(w.raw.Definition.States)
		}
		w.dev.MergeVendorSnapshot(w.raw.States, online[i])

		seen = append(seen, w.dev)
		if w.isNew {
			created = append(created, w.dev)
		}
	}
	return seen, created
}

// availableLocked reports whether the gateway owning deviceURL is alive.
// Unknown gateways and unparseable URLs count as offline.
func (c *Coordinator) availableLocked(deviceURL string) bool {
	u, err := url.Parse(deviceURL)
	if err != nil {
		return false
	}
	return c.gateways[u.Host]
}

// Register subscribes every device's command topics and the reset topic,
// and publishes discovery documents when enabled.
func (c *Coordinator) Register() {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	for _, d := range c.deviceList() {
		c.registerDevice(d)
	}
	if err := c.bus.Subscribe(c.topics.Reset(), c.qos(), c.HandleMessage); err != nil {
		c.logger.Error("Failed to subscribe reset topic", "topic", c.topics.Reset(), "error", err)
	}

	c.mu.Lock()
	c.registered = true
	c.mu.Unlock()
}

// Unregister drops every subscription. Discovery documents are cleared
// when discovery is enabled.
func (c *Coordinator) Unregister() {
	c.unregister(c.mqttCfg.Discovery)
}

// Shutdown unregisters, clearing discovery documents only when configured
// to, and then stops the coordinator.
func (c *Coordinator) Shutdown() {
	c.unregister(c.mqttCfg.Discovery && c.mqttCfg.RemoveDiscoveryOnStop)
	c.Stop()
}

func (c *Coordinator) unregister(clearDiscovery bool) {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	c.mu.Lock()
	c.registered = false
	c.mu.Unlock()

	if err := c.bus.Unsubscribe(c.topics.Reset()); err != nil {
		c.logger.Debug("Failed to unsubscribe reset topic", "error", err)
	}
	for _, d := range c.deviceList() {
		for _, topic := range d.CommandTopics() {
			if err := c.bus.Unsubscribe(topic); err != nil {
				c.logger.Debug("Failed to unsubscribe", "topic", topic, "error", err)
			}
		}
		if clearDiscovery {
			c.clearDiscovery(c.topics.ClimateDiscovery(d.ID()))
			c.clearDiscovery(c.topics.OutdoorSensorDiscovery(d.ID()))
		}
	}
}

func (c *Coordinator) registerDevice(d *climate.Device) {
	for _, topic := range d.CommandTopics() {
		if err := c.bus.Subscribe(topic, c.qos(), c.HandleMessage); err != nil {
			c.logger.Error("Failed to subscribe command topic", "topic", topic, "error", err)
		}
	}

	if !c.mqttCfg.Discovery {
		return
	}
	c.publishJSON(c.topics.ClimateDiscovery(d.ID()), d.ClimateDiscovery(c.topics))
	c.publishJSON(c.topics.OutdoorSensorDiscovery(d.ID()), d.OutdoorSensorDiscovery(c.topics, c.syncCfg.TemperatureUnit))
}

// RequestReset asks the poll loop to rediscover. Requests made while one is
// already pending are merged.
func (c *Coordinator) RequestReset() {
	select {
	case c.resetCh <- struct{}{}:
		c.logger.Info("Reset requested")
	default:
	}
}

// Reset drops all subscriptions, reruns setup and registers again.
func (c *Coordinator) Reset(ctx context.Context) {
	c.metrics.observeReset()
	c.Unregister()
	c.Setup(ctx)
	c.Register()
	c.poll.Reset()
}

// HandleMessage routes a bus message. It is registered as the handler for
// every subscription the coordinator makes.
func (c *Coordinator) HandleMessage(topic string, payload []byte) error {
	if topic == c.topics.Reset() {
		c.RequestReset()
		return nil
	}

	deviceID, ok := mqtt.DeviceIDFromTopic(topic)
	if !ok {
		c.metrics.observeRoutingMiss()
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	attribute := mqtt.AttributeFromTopic(topic)
	value := string(payload)
	c.logger.Info("MQTT message received", "device_id", deviceID, "command", attribute, "value", value)

	c.mu.RLock()
	dev, ok := c.devices[deviceID]
	c.mu.RUnlock()
	if !ok {
		c.metrics.observeRoutingMiss()
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	if !dev.HandleCommand(topic, value) {
		c.logger.Warn("Command ignored", "device_id", deviceID, "command", attribute, "value", value)
		return nil
	}

	c.metrics.observeCommand(attribute)
	c.poll.Reset()
	return nil
}

// Device returns a registered device.
func (c *Coordinator) Device(id string) (*climate.Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d, nil
}

// Devices returns snapshots of every device, ordered by id.
func (c *Coordinator) Devices() []climate.State {
	list := c.deviceList()
	states := make([]climate.State, 0, len(list))
	for _, d := range list {
		states = append(states, d.Snapshot())
	}
	return states
}

// DeviceCount returns the number of devices in the registry.
func (c *Coordinator) DeviceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.devices)
}

// BusConnected reports the bus connection state.
func (c *Coordinator) BusConnected() bool {
	return c.bus.IsConnected()
}

func (c *Coordinator) deviceList() []*climate.Device {
	c.mu.RLock()
	list := make([]*climate.Device, 0, len(c.devices))
	for _, d := range c.devices {
		list = append(list, d)
	}
	c.mu.RUnlock()

	slices.SortFunc(list, func(a, b *climate.Device) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		default:
			return 0
		}
	})
	return list
}

func (c *Coordinator) publishState(d *climate.Device) {
	for _, m := range d.StateMessages(c.topics) {
		c.publish(m.Topic, []byte(m.Payload), c.qos(), c.mqttCfg.StateRetain)
	}
}

func (c *Coordinator) publishJSON(topic string, doc any) {
	data, err := json.Marshal(doc)
	if err != nil {
		c.logger.Error("Failed to encode discovery document", "topic", topic, "error", err)
		return
	}
	c.publish(topic, data, discoveryQoS, c.mqttCfg.ConfigRetain)
}

func (c *Coordinator) publish(topic string, payload []byte, qos byte, retained bool) {
	if err := c.bus.Publish(topic, payload, qos, retained); err != nil {
		c.logger.Warn("Publish failed", "topic", topic, "error", err)
	}
}

func (c *Coordinator) clearDiscovery(topic string) {
	if err := c.bus.ClearRetained(topic); err != nil {
		c.logger.Warn("Clearing discovery failed", "topic", topic, "error", err)
	}
}

func (c *Coordinator) qos() byte {
	if c.mqttCfg.QoS < 0 || c.mqttCfg.QoS > 2 {
		return 0
	}
	return byte(c.mqttCfg.QoS)
}
