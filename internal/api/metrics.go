package api

import (
	"net/http"
	"runtime"
	"time"
)

const bytesPerMiB = 1 << 20

// SystemMetrics is the body of GET /metrics.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Entities      EntityMetrics   `json:"entities"`
	Numbers       NumberMetrics   `json:"numbers"`
	Database      DatabaseMetrics `json:"database"`
}

type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics is empty when the server runs without a broker.
type MQTTMetrics struct {
	Configured    bool `json:"configured"`
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

type EntityMetrics struct {
	Total      int            `json:"total"`
	ByPlatform map[string]int `json:"by_platform"`
}

// NumberMetrics counts presented number controls by refresh phase.
type NumberMetrics struct {
	Total     int            `json:"total"`
	Available int            `json:"available"`
	ByPhase   map[string]int `json:"by_phase"`
}

type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.collectMetrics())
}

func (s *Server) collectMetrics() SystemMetrics {
	m := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime:       runtimeMetrics(),
		WebSocket:     WSMetrics{ConnectedClients: s.hub.ClientCount()},
		Entities:      EntityMetrics{ByPlatform: map[string]int{}},
		Numbers:       NumberMetrics{ByPhase: map[string]int{}},
	}

	for _, e := range s.store.List("") {
		m.Entities.Total++
		m.Entities.ByPlatform[string(e.Platform)]++
	}

	for _, st := range s.numbers.States() {
		m.Numbers.Total++
		m.Numbers.ByPhase[string(st.Phase)]++
		if st.Available {
			m.Numbers.Available++
		}
	}

	if s.mqtt != nil {
		m.MQTT = MQTTMetrics{
			Configured:    true,
			Connected:     s.mqtt.IsConnected(),
			Subscriptions: len(s.mqtt.Subscriptions()),
		}
	}

	if s.db != nil {
		st := s.db.Stats()
		m.Database = DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	return m
}

func runtimeMetrics() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(ms.Alloc) / bytesPerMiB,
		MemoryTotalMB: float64(ms.TotalAlloc) / bytesPerMiB,
		NumGC:         ms.NumGC,
	}
}
