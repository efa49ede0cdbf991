package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-uplink/internal/link"
	"github.com/nerrad567/gray-logic-uplink/internal/producer"
	"github.com/nerrad567/gray-logic-uplink/internal/session"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string           `json:"timestamp"`
	DeviceID      string           `json:"device_id"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Link          link.Stats       `json:"link"`
	Session       SessionStatus    `json:"session"`
	Producer      producer.Stats   `json:"producer"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// SessionStatus combines controller counters with the subscription set.
type SessionStatus struct {
	session.ControllerStats
	Subscriptions []SubscriptionStatus `json:"subscriptions"`
}

// SubscriptionStatus is one configured subscription.
type SubscriptionStatus struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// DatabaseMetrics contains connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildStatus())
}

func (s *Server) buildStatus() StatusResponse {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	subs := s.session.Subscriptions()
	subStatus := make([]SubscriptionStatus, 0, len(subs))
	for _, sub := range subs {
		subStatus = append(subStatus, SubscriptionStatus{Topic: sub.Topic, QoS: sub.QoS})
	}

	resp := StatusResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DeviceID:  s.deviceID,
		Version:   s.version,
		Link:      s.link.Stats(),
		Session: SessionStatus{
			ControllerStats: s.session.Stats(),
			Subscriptions:   subStatus,
		},
		Producer: s.producer.Stats(),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
	}
	if !s.startTime.IsZero() {
		resp.UptimeSeconds = int64(time.Since(s.startTime).Seconds())
	}

	if s.db != nil {
		st := s.db.Stats()
		resp.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	return resp
}
