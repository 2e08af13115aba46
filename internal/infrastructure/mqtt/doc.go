// Package mqtt provides MQTT client connectivity for the Hi-Kumo bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) on the bridge status topic
//   - Topic builders for state, command and discovery topics
//
// # Architecture
//
// The broker is the only surface home-automation controllers see. The bridge
// publishes device state, subscribes to command topics and withdraws its
// availability through the LWT when it drops off the bus.
//
//	Vendor cloud ↔ Bridge ↔ MQTT Broker ↔ Controllers
//
// # Security Considerations
//
//   - Enable TLS when the broker is not on the same host (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	err = client.Subscribe(topics.Command("14253", mqtt.AttrMode), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(topics.State("14253", mqtt.AttrMode), []byte("heat"), 0, true)
package mqtt
