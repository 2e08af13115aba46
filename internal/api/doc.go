// Package api implements the read-only status HTTP server of the bridge.
//
// Endpoints:
//   - GET  /api/v1/health                 bridge status, version, bus state, device count
//   - GET  /api/v1/devices                every device snapshot
//   - GET  /api/v1/devices/{id}           one snapshot, including the dirty flag
//   - GET  /api/v1/devices/{id}/commands  push journal (404 when the journal is disabled)
//   - POST /api/v1/reset                  same effect as a message on the reset topic
//   - GET  /metrics                       Prometheus exposition
//
// The server never changes device state directly. Commands still travel over
// the bus so the coalescing and dirty tracking rules apply to every writer.
package api
