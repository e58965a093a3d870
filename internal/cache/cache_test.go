package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/star/orbitscreen/internal/alerts"
	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

// A GEO satellite and a neighbour within 25 km of it on 2025-04-15.
const (
	geoLine1     = "1 37605U 11022A   25105.58543138  .00000096  00000+0  00000+0 0  9990"
	geoLine2     = "2 37605   1.0234  87.2060 0005091 220.8721 161.7206  1.00271635 50950"
	geoNearLine1 = "1 90001U 11022A   25105.58543138  .00000096  00000+0  00000+0 0  9999"
	geoNearLine2 = "2 90001   2.1234  87.2060 0006091 220.8721 161.7206  1.00271635 50952"
)

var t0 = time.Date(2025, 4, 15, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	if err := propagation.Init(propagation.Config{Gravity: "wgs72", Workers: 4}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func entry(t testing.TB, l1, l2 string) tle.Entry {
	t.Helper()
	e, err := tle.ParseLines("", l1, l2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	return e
}

func testStore(t testing.TB) *tle.Store {
	store := tle.NewStore()
	store.Set(tle.NewCatalog("geo", "test", t0, []tle.Entry{
		entry(t, geoLine1, geoLine2),
		entry(t, geoNearLine1, geoNearLine2),
	}))
	return store
}

func testConfig() Config {
	return Config{Threshold: 25, Horizon: 24 * time.Hour, Interval: 50 * time.Millisecond}
}

type recorder struct {
	mu  sync.Mutex
	got []alerts.Alert
}

func (r *recorder) Publish(_ context.Context, a alerts.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newScreener(t *testing.T, store *tle.Store, pub alerts.Publisher) *Screener {
	t.Helper()
	s := NewScreener(testConfig(), store, NewReportCache(8, testLogger()), propagation.NewWorkerPool(4, testLogger()), pub, testLogger())
	s.now = func() time.Time { return t0 }
	t.Cleanup(s.Close)
	return s
}

func TestReportCacheLRU(t *testing.T) {
	c := NewReportCache(2, testLogger())
	start := epoch.FromTime(t0)
	key := func(v uint64, threshold float64) Key {
		return Key{Version: v, Start: start, End: start.Add(epoch.FromDays(1)), Threshold: threshold}
	}
	report := func() *events.Report { return events.NewReport(start, start.Add(epoch.FromDays(1)), 10) }

	c.Put(key(1, 5), report())
	c.Put(key(1, 10), report())
	if _, ok := c.Get(key(1, 5)); !ok { // 5 is now most recent
		t.Fatal("expected hit")
	}
	c.Put(key(1, 20), report()) // evicts 10

	if _, ok := c.Get(key(1, 10)); ok {
		t.Error("least recently used entry survived")
	}
	if _, ok := c.Get(key(1, 5)); !ok {
		t.Error("recently used entry evicted")
	}

	stats := c.Stats()
	if stats.Entries != 2 || stats.Capacity != 2 {
		t.Errorf("entries %d capacity %d", stats.Entries, stats.Capacity)
	}
	if stats.Hits != 2 || stats.Misses != 1 || stats.Evictions != 1 {
		t.Errorf("hits %d misses %d evictions %d", stats.Hits, stats.Misses, stats.Evictions)
	}

	c.Put(key(2, 5), report())
	if n := c.InvalidateBefore(2); n != 1 {
		t.Errorf("InvalidateBefore removed %d, want 1", n)
	}
	if _, ok := c.Get(key(2, 5)); !ok || c.Len() != 1 {
		t.Errorf("current version dropped, Len = %d", c.Len())
	}
}

func TestScreenCachesAndCutover(t *testing.T) {
	store := testStore(t)
	s := newScreener(t, store, nil)

	start := epoch.FromTime(t0)
	end := start.Add(epoch.FromDays(1))

	r1, cached, err := s.Screen(context.Background(), start, end, 25, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Error("first screening reported cached")
	}
	if len(r1.CloseApproaches) != 1 {
		t.Fatalf("events = %+v", r1.CloseApproaches)
	}

	r2, cached, err := s.Screen(context.Background(), start, end, 25, 0)
	if err != nil || !cached || r2.ID != r1.ID {
		t.Errorf("second screening: cached %v same report %v err %v", cached, r2.ID == r1.ID, err)
	}

	one, _, err := s.Screen(context.Background(), start, end, 25, 90001)
	if err != nil {
		t.Fatal(err)
	}
	if len(one.CloseApproaches) != 1 || one.CloseApproaches[0].PrimaryID != 90001 {
		t.Errorf("vs-one events = %+v", one.CloseApproaches)
	}
	if _, _, err := s.Screen(context.Background(), start, end, 25, 12345); !errors.Is(err, bodies.ErrNotFound) {
		t.Errorf("unknown satellite: err = %v", err)
	}

	// A refreshed catalog without the neighbour invalidates both reports.
	store.Set(tle.NewCatalog("geo", "test", t0.Add(time.Hour), []tle.Entry{entry(t, geoLine1, geoLine2)}))
	r3, cached, err := s.Screen(context.Background(), start, end, 25, 0)
	if err != nil {
		t.Fatal(err)
	}
	if cached || len(r3.CloseApproaches) != 0 {
		t.Errorf("after cutover: cached %v events %d", cached, len(r3.CloseApproaches))
	}
	if s.Stats().Entries != 1 {
		t.Errorf("stale reports kept: %d entries", s.Stats().Entries)
	}
}

func TestScreenWithoutCatalog(t *testing.T) {
	s := newScreener(t, tle.NewStore(), nil)
	start := epoch.FromTime(t0)
	if _, _, err := s.Screen(context.Background(), start, start.Add(epoch.FromDays(1)), 10, 0); !errors.Is(err, ErrNoCatalog) {
		t.Errorf("err = %v, want ErrNoCatalog", err)
	}
}

func TestStatesAt(t *testing.T) {
	s := newScreener(t, testStore(t), nil)
	states, err := s.StatesAt(context.Background(), epoch.FromTime(t0))
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 || states[37605] == nil || states[90001] == nil {
		t.Errorf("states = %v", states)
	}
	if r := states[37605].Position.Magnitude(); r < 42000 || r > 42300 {
		t.Errorf("GEO radius %.1f km", r)
	}
}

func TestStartPublishesAlerts(t *testing.T) {
	rec := &recorder{}
	s := newScreener(t, testStore(t), rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	deadline := time.After(30 * time.Second)
	for s.Latest() == nil {
		select {
		case <-deadline:
			cancel()
			t.Fatal("no report within 30s")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := len(s.Latest().CloseApproaches); got != 1 {
		t.Errorf("latest report has %d events", got)
	}
	// Later ticks hit the cache and do not republish.
	if rec.count() != 1 {
		t.Errorf("published %d alerts, want 1", rec.count())
	}
}
