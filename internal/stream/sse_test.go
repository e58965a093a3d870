package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/star/orbitscreen/internal/alerts"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testAlert(primary, secondary int, km float64) alerts.Alert {
	return alerts.Alert{
		CloseApproach: events.CloseApproach{
			PrimaryID:   primary,
			SecondaryID: secondary,
			Epoch:       epoch.FromComponents(2025, 4, 15, 12, 0, 0, epoch.UTC),
			Distance:    km,
		},
		Threshold: 10,
		CreatedAt: time.Date(2025, 4, 15, 11, 0, 0, 0, time.UTC),
	}
}

func TestConnLimiter(t *testing.T) {
	l := newConnLimiter(2, 3)

	r1, ok1 := l.tryAcquire("1.2.3.4")
	_, ok2 := l.tryAcquire("1.2.3.4")
	if !ok1 || !ok2 {
		t.Fatal("first two acquires should succeed")
	}
	if _, ok := l.tryAcquire("1.2.3.4"); ok {
		t.Error("third acquire for same IP should fail")
	}
	r3, ok := l.tryAcquire("5.6.7.8")
	if !ok {
		t.Error("acquire for different IP should succeed")
	}
	if _, ok := l.tryAcquire("9.9.9.9"); ok {
		t.Error("acquire beyond total limit should fail")
	}

	r1()
	r1()
	if got := l.active("1.2.3.4"); got != 1 {
		t.Errorf("active = %d after double release, want 1", got)
	}
	if _, ok := l.tryAcquire("9.9.9.9"); !ok {
		t.Error("acquire after release should succeed")
	}

	r3()
	if _, ok := l.perIP["5.6.7.8"]; ok {
		t.Error("empty IP entry should be deleted")
	}
}

func TestSubscriberFilter(t *testing.T) {
	tests := []struct {
		name        string
		satelliteID int
		maxDistance float64
		alert       alerts.Alert
		want        bool
	}{
		{"no filter", 0, 0, testAlert(1, 2, 9), true},
		{"primary match", 1, 0, testAlert(1, 2, 9), true},
		{"secondary match", 2, 0, testAlert(1, 2, 9), true},
		{"other satellite", 3, 0, testAlert(1, 2, 9), false},
		{"within distance", 0, 5, testAlert(1, 2, 4.9), true},
		{"beyond distance", 0, 5, testAlert(1, 2, 5.1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &subscriber{satelliteID: tt.satelliteID, maxDistance: tt.maxDistance}
			if got := s.wants(tt.alert); got != tt.want {
				t.Errorf("wants = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := NewBroker(Config{MaxConcurrentPerIP: 1, Buffer: 1}, testLogger())
	s, ok := b.subscribe(0, 0)
	if !ok {
		t.Fatal("subscribe failed")
	}

	for i := 0; i < 3; i++ {
		if err := b.Publish(context.Background(), testAlert(1, 2, 1)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(s.ch) != 1 {
		t.Errorf("queued %d alerts, want 1", len(s.ch))
	}

	b.Close()
	if b.Subscribers() != 0 {
		t.Errorf("Subscribers = %d after Close", b.Subscribers())
	}
	if _, ok := b.subscribe(0, 0); ok {
		t.Error("subscribe after Close should fail")
	}
}

func TestHandleAlertsBadParams(t *testing.T) {
	b := NewBroker(Config{MaxConcurrentPerIP: 1}, testLogger())
	for _, q := range []string{"satellite_id=abc", "satellite_id=0", "max_km=-1", "max_km=x"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/alerts?"+q, nil)
		w := httptest.NewRecorder()
		b.HandleAlerts(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}

func TestHandleAlertsRateLimited(t *testing.T) {
	b := NewBroker(Config{MaxConcurrentPerIP: 1}, testLogger())
	b.limiter.tryAcquire("192.0.2.1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream/alerts", nil)
	w := httptest.NewRecorder()
	b.HandleAlerts(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestHandleAlertsStream(t *testing.T) {
	b := NewBroker(Config{MaxConcurrentPerIP: 2, KeepaliveInterval: time.Hour}, testLogger())
	srv := httptest.NewServer(http.HandlerFunc(b.HandleAlerts))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream/alerts?satellite_id=2")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Each delivered message carries the SSE event name and id alongside the payload.
	messages := make(chan map[string]any, 8)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		var event, id string
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "id: "):
				id = strings.TrimPrefix(line, "id: ")
			case strings.HasPrefix(line, "data: "):
				var m map[string]any
				if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m) == nil {
					m["_event"], m["_id"] = event, id
					messages <- m
				}
			}
		}
		close(messages)
	}()

	next := func() map[string]any {
		t.Helper()
		select {
		case m, ok := <-messages:
			if !ok {
				t.Fatal("stream closed")
			}
			return m
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for message")
		}
		return nil
	}

	meta := next()
	if meta["_event"] != "metadata" || meta["_id"] != "1" || meta["satellite_id"] != float64(2) {
		t.Fatalf("metadata = %v", meta)
	}

	// The subscriber is registered before metadata is written.
	b.Publish(context.Background(), testAlert(5, 6, 1))
	b.Publish(context.Background(), testAlert(1, 2, 4.5))

	got := next()
	if got["_event"] != "close_approach" || got["_id"] != "2" || got["secondary_id"] != float64(2) || got["distance_km"] != 4.5 {
		t.Errorf("alert = %v", got)
	}

	b.Close()
	for range messages {
	}
}
