package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by a node device.
const (
	MeasurementInput = "property_input"
	MeasurementStats = "device_stats"
)

// RecordInput writes one dispatch outcome.
//
// Tags are the node id, the property and the result name, all low
// cardinality on a single device. The "count" field is always 1 so
// outcomes can be summed per window.
func (c *Client) RecordInput(nodeID, property, result string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(inputPoint(c.deviceID, nodeID, property, result, time.Now()))
}

// RecordStats writes a snapshot of the device runtime.
func (c *Client) RecordStats(uptime time.Duration, nodes, queued int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statsPoint(c.deviceID, uptime, nodes, queued, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
// The device tag is added unless tags already carries one.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, withDevice(tags, c.deviceID), fields, time.Now()))
}

func inputPoint(deviceID, nodeID, property, result string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementInput,
		withDevice(map[string]string{
			"node":     nodeID,
			"property": property,
			"result":   result,
		}, deviceID),
		map[string]any{
			"count": int64(1),
		},
		at,
	)
}

func statsPoint(deviceID string, uptime time.Duration, nodes, queued int, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementStats,
		withDevice(nil, deviceID),
		map[string]any{
			"uptime_seconds": int64(uptime / time.Second),
			"nodes":          int64(nodes),
			"queued":         int64(queued),
		},
		at,
	)
}

func withDevice(tags map[string]string, deviceID string) map[string]string {
	out := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		out[k] = v
	}
	if _, ok := out["device"]; !ok && deviceID != "" {
		out["device"] = deviceID
	}
	return out
}
