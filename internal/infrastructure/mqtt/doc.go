// Package mqtt provides MQTT client connectivity for Luftujha Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Luftujha uses MQTT as an optional telemetry channel: HRU register
// readings, valve values and scheduler activity are published for
// third-party consumers (dashboards, recorders) without those consumers
// needing access to the Core API.
//
// # Security Considerations
//
//   - TLS is recommended for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceQuantity("power")
//	err = client.Publish(topic, []byte(`{"value":60}`), 1, true)
package mqtt
