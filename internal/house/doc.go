// Package house coordinates every Hi-Kumo unit of one account.
//
// The Coordinator owns the device registry and runs two paths concurrently:
//
//   - The poll loop fetches the setup document, merges it into each device,
//     publishes state on the bus and sleeps on a backoff sequencer.
//   - Bus messages are routed by the second-to-last topic segment to the
//     owning device, whose coalesced push goes out through the vendor session.
//
// A message on the reset topic asks the poll loop to unregister, rerun setup
// and register again. Polling returns to its fastest tier after every routed
// command.
//
// Usage:
//
//	coord, err := house.New(house.Options{
//	    Vendor: session,
//	    Bus:    mqttClient,
//	    MQTT:   cfg.MQTT,
//	    Sync:   cfg.Sync,
//	    Logger: log.Component("house"),
//	})
//	if err != nil {
//	    return err
//	}
//	defer coord.Shutdown()
//	return coord.Run(ctx)
package house
