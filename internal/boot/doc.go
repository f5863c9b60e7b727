// Package boot runs a node device: it drives the node lifecycle and is the
// only component that routes inbound property updates to nodes.
//
// # Lifecycle
//
//	Start ─► setup hooks (registration order)
//	      ─► advertise $homie, $online, $name, $nodes, node $type/$properties
//	      ─► subscribe <base><device>/<node>/<property>/set (or /+/set)
//	      ─► ready-to-operate hooks
//	      ─► loop goroutine: dispatch queued updates, run loop hooks,
//	         publish $stats/uptime
//	Stop  ─► stop loop, publish $online=false
//
// # Dispatch
//
// MQTT messages and API injections are queued and dispatched one at a time
// on the loop goroutine, so node handlers never run concurrently. Every
// outcome is passed to the configured Observers (input journal, telemetry,
// WebSocket events).
//
// # Usage
//
//	runner, err := boot.New(boot.Options{
//	    Device:    boot.DeviceInfo{ID: "porch", BaseTopic: "homie/"},
//	    Registry:  reg,
//	    Transport: mqttClient,
//	    QoS:       1,
//	})
//	if err != nil {
//	    return err
//	}
//	if err := runner.Start(ctx); err != nil {
//	    return err
//	}
//	defer runner.Stop()
package boot
