// Package stream pushes close-approach alerts to browsers and tools over
// Server-Sent Events. Clients connect via GET /api/v1/stream/alerts and receive
// every alert the screener publishes, optionally filtered to one satellite or a
// tighter distance.
//
// Every connection starts with a retry hint and a metadata event:
//
//	retry: 4210
//
//	event: metadata
//	id: 1
//	data: {"type":"metadata","connected_at":"...","satellite_id":0,"max_distance_km":0}
//
// followed by one event per alert:
//
//	event: close_approach
//	id: 2
//	data: {"type":"close_approach","report_id":"...","primary_id":25544,"secondary_id":48274,...}
//
// Comment lines (":") are sent every KeepaliveInterval while idle.
package stream

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/star/orbitscreen/internal/alerts"
	"github.com/star/orbitscreen/internal/httputil"
	"github.com/star/orbitscreen/internal/metrics"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	Buffer             int           // Alerts queued per stream before dropping (default: 64).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool
}

type subscriber struct {
	ch          chan alerts.Alert
	satelliteID int
	maxDistance float64
}

func (s *subscriber) wants(a alerts.Alert) bool {
	if s.satelliteID != 0 && a.PrimaryID != s.satelliteID && a.SecondaryID != s.satelliteID {
		return false
	}
	return s.maxDistance == 0 || a.Distance <= s.maxDistance
}

// Broker fans published alerts out to connected streams. It implements
// alerts.Publisher.
type Broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool

	config  Config
	limiter *connLimiter
	logger  *slog.Logger
}

// NewBroker creates a broker with no subscribers.
func NewBroker(config Config, logger *slog.Logger) *Broker {
	if config.Buffer < 1 {
		config.Buffer = 64
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Broker{
		subs:    make(map[*subscriber]struct{}),
		config:  config,
		limiter: newConnLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger.With("component", "stream"),
	}
}

// Publish queues a for every interested stream. A stream whose queue is full
// misses the alert.
func (b *Broker) Publish(_ context.Context, a alerts.Alert) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		if !s.wants(a) {
			continue
		}
		select {
		case s.ch <- a:
		default:
			metrics.IncStreamErrors("dropped")
		}
	}
	return nil
}

// Close ends every stream.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
	return nil
}

// Subscribers returns the number of connected streams.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) subscribe(satelliteID int, maxDistance float64) (*subscriber, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	s := &subscriber{ch: make(chan alerts.Alert, b.config.Buffer), satelliteID: satelliteID, maxDistance: maxDistance}
	b.subs[s] = struct{}{}
	return s, true
}

func (b *Broker) unsubscribe(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// HandleAlerts serves the SSE alert stream.
// GET /api/v1/stream/alerts?satellite_id=25544&max_km=5
func (b *Broker) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	var satelliteID int
	if v := r.URL.Query().Get("satellite_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid satellite_id parameter, must be a positive integer")
			return
		}
		satelliteID = n
	}

	var maxDistance float64
	if v := r.URL.Query().Get("max_km"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid max_km parameter, must be positive")
			return
		}
		maxDistance = f
	}

	ip := httputil.ClientIP(r, b.config.TrustProxy)
	release, ok := b.limiter.tryAcquire(ip)
	if !ok {
		metrics.IncStreamErrors("rate_limit")
		b.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", b.limiter.active(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer release()

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, ok := b.subscribe(satelliteID, maxDistance)
	if !ok {
		httputil.WriteError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	defer b.unsubscribe(sub)

	metrics.StreamConnected()
	startTime := time.Now()
	b.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"satellite_id", satelliteID,
		"max_distance_km", maxDistance,
	)
	defer func() {
		metrics.StreamDisconnected()
		b.logger.Info("stream disconnected",
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		b.logger.Debug("could not clear write deadline", "error", err)
	}

	ew := &eventWriter{w: w, flusher: flusher, rc: rc, logger: b.logger}

	// Jittered 3-7s so clients do not all reconnect at once after a restart.
	if err := ew.retry(3*time.Second + time.Duration(rand.Intn(4000))*time.Millisecond); err != nil {
		return
	}

	meta := metadataMessage{
		Type:        "metadata",
		ConnectedAt: startTime.UTC().Format(time.RFC3339),
		SatelliteID: satelliteID,
		MaxDistance: maxDistance,
	}
	if err := ew.event("metadata", meta); err != nil {
		metrics.IncStreamErrors("send_error")
		b.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	keepalive := time.NewTicker(b.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case a, ok := <-sub.ch:
			if !ok {
				return
			}
			if err := ew.event("close_approach", alertMessage{Type: "close_approach", Alert: a}); err != nil {
				metrics.IncStreamErrors("send_error")
				b.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			keepalive.Reset(b.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := ew.keepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				b.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// SSE message payload types.

type metadataMessage struct {
	Type        string  `json:"type"`
	ConnectedAt string  `json:"connected_at"`
	SatelliteID int     `json:"satellite_id"`
	MaxDistance float64 `json:"max_distance_km"`
}

type alertMessage struct {
	Type string `json:"type"`
	alerts.Alert
}
