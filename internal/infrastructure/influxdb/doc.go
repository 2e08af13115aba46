// Package influxdb records climate telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteClimate(dev.Snapshot())
//
// # Error Handling
//
// Write errors arrive asynchronously through SetOnError. Connection and
// health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to batch_size and flush_interval.
package influxdb
