// Package mqtt provides local MQTT broker connectivity for Hatch Bridge.
//
// This package manages:
//   - Connection to the local broker (Mosquitto) with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Hatch Bridge uses the local MQTT broker as the message bus between the
// bridge core, the REST API, and Home Assistant. The AWS IoT connection
// that carries device shadow traffic is separate and lives in
// internal/awsiot.
//
//	Home Assistant / API ↔ Local Broker ↔ Hatch Bridge ↔ AWS IoT
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
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
//	// Subscribe to all device commands
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish state
//	topic := mqtt.Topics{}.BridgeState("hatch", "rest-abc123")
//	client.PublishRetained(topic, []byte(`{"is_on":true}`))
package mqtt
