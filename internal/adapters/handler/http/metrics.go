package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pressline.sync/internal/core/domain"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Mirror metrics
	connectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_connection_state",
			Help: "Push channel state (1 for the current state, 0 otherwise)",
		},
		[]string{"state"},
	)

	framesDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_frames_decoded_total",
			Help: "Inbound frames decoded into typed events",
		},
	)

	framesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_frames_dropped_total",
			Help: "Inbound frames discarded as malformed",
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mirror_reconnects_total",
			Help: "Times the push channel entered the reconnecting state",
		},
	)

	hubClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_clients",
			Help: "Dashboard websocket clients currently connected",
		},
	)
)

var connStates = []domain.ConnectionState{
	domain.ConnDisconnected,
	domain.ConnConnecting,
	domain.ConnConnected,
	domain.ConnReconnecting,
}

// MetricsMiddleware records HTTP request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics for WebSocket upgrade requests
		if r.Header.Get("Upgrade") == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// SetConnectionState reflects the push channel state into the gauge vector.
func SetConnectionState(st domain.ConnectionState) {
	for _, s := range connStates {
		v := 0.0
		if s == st {
			v = 1.0
		}
		connectionState.WithLabelValues(string(s)).Set(v)
	}
	if st == domain.ConnReconnecting {
		reconnectsTotal.Inc()
	}
}

// RecordFrameDecoded counts a successfully decoded push frame.
func RecordFrameDecoded() {
	framesDecoded.Inc()
}

// RecordFrameDropped counts a discarded malformed frame.
func RecordFrameDropped() {
	framesDropped.Inc()
}

// SetHubClients sets the connected dashboard client count.
func SetHubClients(count int) {
	hubClients.Set(float64(count))
}
