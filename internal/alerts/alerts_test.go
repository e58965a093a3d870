package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type recorder struct {
	got    []Alert
	failOn int // secondary id to reject
}

func (r *recorder) Publish(_ context.Context, a Alert) error {
	if a.SecondaryID == r.failOn {
		return errors.New("rejected")
	}
	r.got = append(r.got, a)
	return nil
}

func (r *recorder) Close() error { return nil }

func testReport() *events.Report {
	t0 := epoch.FromComponents(2025, 4, 15, 12, 0, 0, epoch.UTC)
	r := events.NewReport(t0, t0.Add(epoch.FromDays(1)), 10)
	r.SetCloseApproaches([]events.CloseApproach{
		{PrimaryID: 1, SecondaryID: 2, Epoch: t0.Add(epoch.FromHours(2)), Distance: 3.5},
		{PrimaryID: 1, SecondaryID: 3, Epoch: t0.Add(epoch.FromHours(1)), Distance: 7.25},
	})
	return r
}

func TestPublishReport(t *testing.T) {
	r := testReport()

	rec := &recorder{}
	if failed := PublishReport(context.Background(), rec, r, testLogger()); failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
	if len(rec.got) != 2 {
		t.Fatalf("published %d alerts, want 2", len(rec.got))
	}
	// Report order is by epoch.
	if rec.got[0].SecondaryID != 3 || rec.got[0].ReportID != r.ID || rec.got[0].Threshold != 10 {
		t.Errorf("first alert = %+v", rec.got[0])
	}

	rec = &recorder{failOn: 3}
	if failed := PublishReport(context.Background(), rec, r, testLogger()); failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	if len(rec.got) != 1 || rec.got[0].SecondaryID != 2 {
		t.Errorf("published %+v", rec.got)
	}
}

func TestSubject(t *testing.T) {
	a := Alert{CloseApproach: events.CloseApproach{PrimaryID: 25544, SecondaryID: 48274}}
	if got := Subject("orbitscreen.alerts", a); got != "orbitscreen.alerts.25544.48274" {
		t.Errorf("Subject = %q", got)
	}
}

func TestAlertJSON(t *testing.T) {
	r := testReport()
	a := Alert{ReportID: r.ID, CloseApproach: r.CloseApproaches[0], Threshold: 10, CreatedAt: r.CreatedAt}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"report_id", "primary_id", "secondary_id", "epoch", "distance_km", "distance_threshold_km"} {
		if _, ok := m[k]; !ok {
			t.Errorf("missing %q in %s", k, b)
		}
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	if failed := PublishReport(context.Background(), p, testReport(), testLogger()); failed != 0 {
		t.Fatalf("failed = %d", failed)
	}
	if n := strings.Count(buf.String(), `"msg":"close approach"`); n != 2 {
		t.Errorf("logged %d alerts, want 2:\n%s", n, buf.String())
	}
}

func TestConnectNATSUnavailable(t *testing.T) {
	_, err := ConnectNATS(NATSConfig{
		URL:            "nats://127.0.0.1:1",
		SubjectPrefix:  "orbitscreen.alerts",
		Name:           "test",
		ConnectTimeout: 200 * time.Millisecond,
	}, testLogger())
	if err == nil {
		t.Fatal("connected to a closed port")
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{failOn: 2}
	m := Multi{a, b}

	err := m.Publish(context.Background(), Alert{CloseApproach: events.CloseApproach{PrimaryID: 1, SecondaryID: 2}})
	if err == nil {
		t.Error("expected error from rejecting publisher")
	}
	if len(a.got) != 1 {
		t.Errorf("first publisher got %d alerts, want 1", len(a.got))
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
