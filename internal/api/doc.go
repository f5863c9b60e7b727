// Package api implements the HTTP introspection API and WebSocket event
// stream of a node device.
//
// This package provides:
//   - REST endpoints listing the registered nodes and their subscriptions
//   - Property updates injected over HTTP, dispatched by the device runner
//   - A paginated view of the input journal
//   - A WebSocket hub broadcasting every dispatched input as node.input
//
// # Architecture
//
// The API reads the node registry directly; it is safe for concurrent use.
// Writes never touch a node from an HTTP goroutine: they are handed to the
// runner, which serialises them with MQTT traffic on its loop goroutine.
//
// The Hub implements boot.Observer and is registered with the runner, so
// MQTT and HTTP inputs reach WebSocket clients through the same path.
//
// # Graceful Degradation
//
// The journal and MQTT status are optional. Without a journal the inputs
// endpoints return 503; everything else keeps working.
package api
