// Package metrics provides Prometheus instrumentation for the wager ledger.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WagersPlaced counts wagers written at placement, partitioned by the
	// backed side.
	WagersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_wagers_placed_total",
		Help: "Total number of wagers placed",
	}, []string{"choice"})

	// Settlements counts settled wagers by outcome.
	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_settlements_total",
		Help: "Total number of wagers settled",
	}, []string{"outcome"})

	// SkippedWagers counts corrupt wagers left open by settlement.
	SkippedWagers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wagerledger_skipped_wagers_total",
		Help: "Wagers skipped during settlement because they were malformed",
	})

	// OperationDuration tracks ledger operation latency, lock wait included.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerledger_operation_duration_seconds",
		Help:    "Ledger operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// OperationErrors counts failed ledger operations.
	OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_operation_errors_total",
		Help: "Ledger operations that returned an error",
	}, []string{"op"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wagerledger_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wagerledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wagerledger_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Observe records the latency of op and counts it as failed when err is set.
// Intended for defer: defer metrics.Observe("place_wager", time.Now(), &err).
func Observe(op string, start time.Time, err *error) {
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil && *err != nil {
		OperationErrors.WithLabelValues(op).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
