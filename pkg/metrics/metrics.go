// Package metrics exposes Prometheus instruments for the gateway and the
// HTTP API. Everything registers on the default registry at init time and is
// served by Handler on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway metrics
	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_gateway_connections",
			Help: "Number of joined push channel connections",
		},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_online_users",
			Help: "Number of identities with at least one joined connection",
		},
	)

	EventsRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_relayed_total",
			Help: "Events rebroadcast to the feed group, by outgoing op",
		},
		[]string{"op"},
	)

	DeliveriesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_deliveries_dropped_total",
			Help: "Per-connection deliveries that were dropped, by reason",
		},
		[]string{"reason"},
	)

	HandshakeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_handshake_failures_total",
			Help: "Rejected push channel handshakes, by reason",
		},
		[]string{"reason"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(GatewayConnections)
	prometheus.MustRegister(OnlineUsers)
	prometheus.MustRegister(EventsRelayed)
	prometheus.MustRegister(DeliveriesDropped)
	prometheus.MustRegister(HandshakeFailures)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures one operation for a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed seconds on o.
func (t *Timer) ObserveDuration(o prometheus.Observer) {
	o.Observe(t.Duration().Seconds())
}
