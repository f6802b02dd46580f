package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/seeker014/SilentRoom/internal/infrastructure/json"
	"github.com/seeker014/SilentRoom/internal/infrastructure/ws"
)

type StatsProvider interface {
	Stats() ws.Stats
}

type Handler struct {
	stats     StatsProvider
	startTime time.Time
	healthy   atomic.Bool
}

func NewHandler(stats StatsProvider) *Handler {
	h := &Handler{
		stats:     stats,
		startTime: time.Now(),
	}
	h.healthy.Store(true)
	return h
}

// SetHealthy flips the reported status, e.g. while draining on shutdown.
func (h *Handler) SetHealthy(healthy bool) {
	h.healthy.Store(healthy)
}

func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.stats.Stats()

	resp := healthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Connections: stats.Connections,
		Rooms:       stats.Rooms,
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	json.Write(w, http.StatusOK, resp)
}
