// Package node provides the Node Registry and per-node Subscription Tables
// for a Gray Logic device.
//
// A device exposes a fixed set of logical nodes (a relay, a dimmer channel,
// a temperature sensor). Each node has a unique id, a free-form type and a
// table of properties it accepts values for. Inbound property updates are
// resolved by the transport layer to a node id, looked up in the Registry
// and dispatched through the node's Subscription Table.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          Node Registry                           │
//	│                                                                  │
//	│  ┌──────────────────┐         ┌──────────────────────────────┐   │
//	│  │     Registry     │ 1 ── n  │            Node              │   │
//	│  │  (registry.go)   │────────▶│          (node.go)           │   │
//	│  │                  │         │                              │   │
//	│  │ • Ordered slice  │         │ • Subscription table         │   │
//	│  │ • FindByID       │         │ • Fallback input handler     │   │
//	│  │ • ForEach        │         │ • Dispatch (first match)     │   │
//	│  │ • Capacity bound │         │ • Lifecycle hooks            │   │
//	│  └──────────────────┘         └──────────────────────────────┘   │
//	└──────────────────────────────────────────────────────────────────┘
//	            ▲                                  ▲
//	            │ ForEach / FindByID               │ Dispatch
//	┌──────────────────────┐          ┌──────────────────────────┐
//	│  boot.Runner         │─────────▶│  MQTT <node>/<prop>/set  │
//	└──────────────────────┘          └──────────────────────────┘
//
// # Dispatch Policy
//
// Dispatch scans the subscription table in registration order. The first
// subscription whose property matches exactly and has a handler decides the
// result. When nothing matches, the node's fallback InputHandler decides.
// With neither, the update is Unhandled.
//
//	Unhandled  no binding and no fallback
//	Accepted   a handler returned true
//	Rejected   a handler returned false
//
// HandleInput collapses this to the classic boolean (Accepted or not).
//
// # Usage
//
//	reg := node.NewRegistry()
//
//	light, err := reg.NewNode("light", "switch",
//	    node.WithSetup(func(_ context.Context, n *node.Node) error {
//	        return n.Subscribe("on", func(value string) bool {
//	            return value == "true" || value == "false"
//	        })
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//
//	n, ok := reg.FindByID("light")
//	if ok {
//	    n.Dispatch("on", "true") // node.Accepted
//	}
//
// # Thread Safety
//
// Registration and subscription are expected during the single-writer
// initialisation phase. Both tables are guarded by read-write mutexes so
// that lookups and dispatch from MQTT callback goroutines are safe.
// Handlers and visitors are always invoked without any lock held.
package node
