package handlers

import (
	"net/http"
	"time"

	"github.com/akinalp/pulse/pkg"
)

// ConnectionCounter reports how many connections are in the gateway.
type ConnectionCounter interface {
	GroupSize(group string) int
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	gateway ConnectionCounter
	group   string
	started time.Time
}

// NewHealthHandler builds the handler. group is the broadcast group whose size
// is reported.
func NewHealthHandler(gateway ConnectionCounter, group string) *HealthHandler {
	return &HealthHandler{gateway: gateway, group: group, started: time.Now()}
}

type healthBody struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Connections int       `json:"connections"`
	Uptime      string    `json:"uptime"`
}

// Health always answers 200 while the process can serve HTTP.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, healthBody{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Connections: h.gateway.GroupSize(h.group),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
	})
}
