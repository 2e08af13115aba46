// Package climate models a Hi-Kumo air-to-air heat pump on the bus side.
//
// It holds the attribute translation tables between vendor state names and
// bus attributes, the per-device state machine that reconciles vendor
// snapshots with pending local writes, and the auto-configuration documents
// published for each unit.
//
// # Dirty tracking
//
// A write received on a command topic marks the device dirty and arms a
// single push timer. Further writes inside the coalescing window replace the
// timer, so a burst produces one upstream call carrying the final values.
// Vendor snapshots are ignored while the device is dirty:
//
//	dev.HandleCommand("hikumo/command/14253/target_temp", "22")
//	dev.MergeVendorSnapshot(states, true) // false: pending write wins
//
// Temperatures travel as signed bytes; values above 127 are read as v-256.
package climate
