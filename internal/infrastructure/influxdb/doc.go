// Package influxdb records node device telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Two measurements
// are written:
//
//	property_input  device,node,property,result  count=1i
//	device_stats    device                       uptime_seconds,nodes,queued
//
// Writes are non-blocking and batched; async failures are reported through
// SetOnError. Every write method is a no-op on a nil or closed client, so
// callers do not need to guard optional telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordInput("light1", "on", "accepted")
package influxdb
