// Package mqtt provides the gateway's MQTT connection.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing readings with the configured QoS and retain flag
//   - A retained availability topic with Last Will and Testament (LWT)
//   - Connection state reporting (IsConnected and connect/disconnect callbacks)
//
// # Topics
//
// Readings go to <prefix>/<sensor id>; availability goes to
// <prefix>/bridge/status as JSON:
//
//	{"status":"online","client_id":"goodwe-gw-1a2b3c4d","timestamp":"..."}
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) when the broker is not on the local host
//   - Credentials are validated against the broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Topics{Prefix: cfg.Poll.Topic})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishReading("solar/vpv1", "345.6")
package mqtt
