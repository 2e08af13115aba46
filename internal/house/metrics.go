package house

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/hikumo-bridge/internal/climate"
)

// Result label values.
const (
	resultOK    = "ok"
	resultEmpty = "empty"
	resultError = "error"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	pollCycles    *prometheus.CounterVec
	pushes        *prometheus.CounterVec
	commands      *prometheus.CounterVec
	routingMisses prometheus.Counter
	resets        prometheus.Counter
	devices       prometheus.Gauge
	deviceOnline  *prometheus.GaugeVec
	temperature   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pollCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hikumo_poll_cycles_total",
			Help: "Refresh cycles by result (ok, empty)",
		}, []string{"result"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hikumo_pushes_total",
			Help: "Upstream command pushes by result (ok, error)",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hikumo_commands_total",
			Help: "Accepted bus commands by attribute",
		}, []string{"attribute"}),
		routingMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hikumo_routing_misses_total",
			Help: "Bus messages dropped because no device matched",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hikumo_resets_total",
			Help: "Rediscovery cycles triggered by reset",
		}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hikumo_devices",
			Help: "Devices in the registry",
		}),
		deviceOnline: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hikumo_device_online",
			Help: "Device reachability through its gateway (1=online, 0=offline)",
		}, []string{"device_id"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hikumo_temperature_celsius",
			Help: "Last known temperatures by kind (room, target, outdoor)",
		}, []string{"device_id", "kind"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.pollCycles,
			m.pushes,
			m.commands,
			m.routingMisses,
			m.resets,
			m.devices,
			m.deviceOnline,
			m.temperature,
		)
	}
	return m
}

func (m *Metrics) observePoll(result string) {
	if m != nil {
		m.pollCycles.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) observePush(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pushes.WithLabelValues(resultError).Inc()
		return
	}
	m.pushes.WithLabelValues(resultOK).Inc()
}

func (m *Metrics) observeCommand(attribute string) {
	if m != nil {
		m.commands.WithLabelValues(attribute).Inc()
	}
}

func (m *Metrics) observeRoutingMiss() {
	if m != nil {
		m.routingMisses.Inc()
	}
}

func (m *Metrics) observeReset() {
	if m != nil {
		m.resets.Inc()
	}
}

func (m *Metrics) observeDevices(states []climate.State) {
	if m == nil {
		return
	}
	m.devices.Set(float64(len(states)))
	for _, s := range states {
		online := 0.0
		if s.Online {
			online = 1
		}
		m.deviceOnline.WithLabelValues(s.ID).Set(online)
		m.temperature.WithLabelValues(s.ID, "room").Set(float64(s.Temperature))
		m.temperature.WithLabelValues(s.ID, "target").Set(float64(s.TargetTemperature))
		m.temperature.WithLabelValues(s.ID, "outdoor").Set(float64(s.OutdoorTemperature))
	}
}
