package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitscreen_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	batchItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_batch_items_total",
			Help: "Work items processed by the worker pool, by operation and result.",
		},
		[]string{"op", "result"},
	)

	batchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbitscreen_batch_duration_seconds",
			Help:    "Wall time of one worker pool batch.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"op"},
	)

	screeningPairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_screening_pairs_total",
			Help: "Satellite pairs considered by close-approach screening, by outcome.",
		},
		[]string{"outcome"},
	)

	screeningDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitscreen_screening_duration_seconds",
			Help:    "Wall time of one close-approach report.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	odIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbitscreen_od_iterations",
			Help:    "Iterations used per batch least-squares solve.",
			Buckets: prometheus.LinearBuckets(1, 2, 12),
		},
	)

	odSolvesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_od_solves_total",
			Help: "Batch least-squares solves, by convergence.",
		},
		[]string{"converged"},
	)

	reportCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_report_cache_lookups_total",
			Help: "Screening report cache lookups, by result.",
		},
		[]string{"result"},
	)

	alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_alerts_published_total",
			Help: "Close-approach alerts published, by result.",
		},
		[]string{"result"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_stream_connections_total",
			Help: "Alert stream connection events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbitscreen_streams_active",
			Help: "Currently open alert streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitscreen_stream_messages_total",
			Help: "Messages written to alert streams.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitscreen_stream_bytes_total",
			Help: "Bytes written to alert streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbitscreen_stream_errors_total",
			Help: "Alert stream errors, by reason.",
		},
		[]string{"reason"},
	)

	authFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbitscreen_auth_failures_total",
			Help: "Requests rejected for a missing or invalid bearer token.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		batchItemsTotal,
		batchDurationSeconds,
		screeningPairsTotal,
		screeningDurationSeconds,
		odIterations,
		odSolvesTotal,
		reportCacheTotal,
		alertsTotal,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
		authFailuresTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RegisterGaugeFunc exposes fn as a gauge. Registering the same name twice is a no-op.
func RegisterGaugeFunc(name, help string, fn func() float64) {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
	if err := prometheus.Register(g); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			panic(err)
		}
	}
}

// RecordBatch records one worker pool run.
func RecordBatch(op string, d time.Duration, succeeded, failed int) {
	batchDurationSeconds.WithLabelValues(op).Observe(d.Seconds())
	batchItemsTotal.WithLabelValues(op, "ok").Add(float64(succeeded))
	batchItemsTotal.WithLabelValues(op, "failed").Add(float64(failed))
}

// RecordScreening records one close-approach report.
func RecordScreening(d time.Duration, pruned, searched, events int) {
	screeningDurationSeconds.Observe(d.Seconds())
	screeningPairsTotal.WithLabelValues("pruned").Add(float64(pruned))
	screeningPairsTotal.WithLabelValues("searched").Add(float64(searched))
	screeningPairsTotal.WithLabelValues("event").Add(float64(events))
}

// RecordSolve records one orbit determination run.
func RecordSolve(iterations int, converged bool) {
	odIterations.Observe(float64(iterations))
	odSolvesTotal.WithLabelValues(strconv.FormatBool(converged)).Inc()
}

// RecordCacheLookup records a report cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	reportCacheTotal.WithLabelValues(result).Inc()
}

// RecordAlert records one alert publish attempt.
func RecordAlert(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	alertsTotal.WithLabelValues(result).Inc()
}

// StreamConnected records a new alert stream.
func StreamConnected() {
	streamConnectionsTotal.WithLabelValues("connect").Inc()
	streamsActive.Inc()
}

// StreamDisconnected records a closed alert stream.
func StreamDisconnected() {
	streamConnectionsTotal.WithLabelValues("disconnect").Inc()
	streamsActive.Dec()
}

// RecordStreamMessage records one message of n bytes written to a stream.
// Keepalives pass message=false.
func RecordStreamMessage(n int, message bool) {
	if message {
		streamMessagesTotal.Inc()
	}
	streamBytesTotal.Add(float64(n))
}

func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

func IncAuthFailures() {
	authFailuresTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets SSE handlers stream through the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

var knownRoutes = map[string]bool{
	"/":                     true,
	"/healthz":              true,
	"/readyz":               true,
	"/metrics":              true,
	"/api/v1/catalog":       true,
	"/api/v1/states":        true,
	"/api/v1/screen":        true,
	"/api/v1/screen/latest": true,
	"/api/v1/cache/stats":   true,
	"/api/v1/stream/alerts": true,
	"/api/v1/passes":        true,
}

// normalizeRoute maps a request path to a bounded label set. Per-satellite paths
// collapse to one label and unknown paths to "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if id, ok := strings.CutPrefix(path, "/api/v1/states/"); ok && id != "" {
		if _, err := strconv.Atoi(id); err == nil {
			return "/api/v1/states/{satellite_id}"
		}
	}
	return "other"
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := normalizeRoute(r.URL.Path)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}
