// Package mqtt provides MQTT client connectivity for Gray Logic node devices.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support and restoration on reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// A node device speaks the Homie convention over MQTT. This package knows
// nothing about Homie; the boot package builds the topic layout and uses
// the client as its transport.
//
//	node registry ↔ boot runner ↔ mqtt.Client ↔ broker ↔ controllers
//
// # Security Considerations
//
//   - Enable TLS for anything beyond a trusted LAN (cfg.Broker.TLS=true)
//   - Credentials should come from GRAYLOGIC_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
//	    Topic:    "homie/porch/$online",
//	    Payload:  "false",
//	    QoS:      1,
//	    Retained: true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("homie/porch/light1/+/set", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("set %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
