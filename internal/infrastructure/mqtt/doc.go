// Package mqtt provides the bus client adapter for Rover Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and backoff
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for controller offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The broker decouples the controller from the rovers. All device traffic
// lives in the three-segment namespace devices/{id}/{category}:
//
//	devices/{id}/status    rover → core   retained, LWT on disconnect
//	devices/{id}/trajeto   rover → core   execution reports, QoS 1
//	devices/{id}/commands  core → rover   encoded command wire strings
//
// The controller's own liveness is published on fleet/controller/status.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
