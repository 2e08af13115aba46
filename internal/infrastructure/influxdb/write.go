package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/hikumo-bridge/internal/climate"
)

// climateMeasurement is the measurement written after every refresh cycle.
const climateMeasurement = "climate"

// WriteClimate records one device snapshot.
//
// Tags: device_id, name. Fields: temperature, target_temperature,
// outdoor_temperature, online, mode, power_state.
func (c *Client) WriteClimate(s climate.State) {
	c.WritePoint(climateMeasurement,
		map[string]string{
			"device_id": s.ID,
			"name":      s.Name,
		},
		map[string]any{
			"temperature":         float64(s.Temperature),
			"target_temperature":  float64(s.TargetTemperature),
			"outdoor_temperature": float64(s.OutdoorTemperature),
			"online":              s.Online,
			"mode":                s.BusMode,
			"power_state":         s.PowerState,
		},
	)
}

// WritePoint writes a point stamped with the current time.
//
//	client.WritePoint("bridge",
//	    map[string]string{"host": "attic"},
//	    map[string]any{"devices": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
