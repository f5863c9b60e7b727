package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Nodes         NodeMetrics    `json:"nodes"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// NodeMetrics contains registry and runner statistics.
type NodeMetrics struct {
	Registered    int   `json:"registered"`
	Capacity      int   `json:"capacity"`
	Subscriptions int   `json:"subscriptions"`
	Queued        int   `json:"queued"`
	Running       bool  `json:"running"`
	RunnerUptime  int64 `json:"runner_uptime_seconds"`
}

// handleMetrics returns process, transport and registry metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	subs := 0
	for _, n := range s.registry.Nodes() {
		subs += n.SubscriptionCount()
	}

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT: MQTTMetrics{
			Connected: s.mqtt != nil && s.mqtt.IsConnected(),
		},
		Nodes: NodeMetrics{
			Registered:    s.registry.Count(),
			Capacity:      s.registry.MaxNodes(),
			Subscriptions: subs,
			Queued:        s.runner.QueueDepth(),
			Running:       s.runner.Running(),
			RunnerUptime:  int64(s.runner.Uptime().Seconds()),
		},
	}

	writeJSON(w, http.StatusOK, metrics)
}
