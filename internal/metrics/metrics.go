// Package metrics registers folio's Prometheus metrics and the HTTP
// middleware that records request counts and durations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search outcomes.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total HTTP requests handled by folio",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// SearchRequests counts backend searches by how their response was used.
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_search_requests_total",
			Help: "Backend searches by outcome (applied, stale, failed, skipped)",
		},
		[]string{"outcome"},
	)

	// PersistFailures counts failed durable writes by store.
	PersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_persist_failures_total",
			Help: "Failed list/settings store writes",
		},
		[]string{"store"},
	)

	// StoreReloads counts reloads caused by external edits of a store file.
	StoreReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_store_reloads_total",
			Help: "Store reloads triggered by external file changes",
		},
		[]string{"store"},
	)
)

// Middleware records request count and duration per chi route pattern,
// which keeps list names and file paths out of the label set.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					path = p
				}
			}
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
