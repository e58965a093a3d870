package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitscreen/internal/alerts"
	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

// ErrNoCatalog is returned when screening is requested before a catalog is loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// Config holds screener configuration.
type Config struct {
	Threshold float64       // km (default: 10)
	Horizon   time.Duration // window screened from now (default: 24h)
	Interval  time.Duration // time between periodic screenings (default: 10m)
}

// Screener screens the current catalog for close approaches.
type Screener struct {
	config Config
	store  *tle.Store
	cache  *ReportCache
	pool   *propagation.WorkerPool
	pub    alerts.Publisher
	logger *slog.Logger

	// now is replaced in tests.
	now func() time.Time

	mu            sync.RWMutex // guards constellation and version
	constellation *bodies.Constellation
	version       uint64

	cutoverMu sync.Mutex // serializes rebuilds
	inCutover atomic.Bool
	latest    atomic.Pointer[events.Report]
}

// NewScreener creates a screener. pub may be nil.
func NewScreener(config Config, store *tle.Store, cache *ReportCache, pool *propagation.WorkerPool, pub alerts.Publisher, logger *slog.Logger) *Screener {
	logger = logger.With("component", "screener")
	logger.Info("screener initialized",
		"threshold_km", config.Threshold,
		"horizon_seconds", config.Horizon.Seconds(),
		"interval_seconds", config.Interval.Seconds(),
	)
	return &Screener{
		config: config,
		store:  store,
		cache:  cache,
		pool:   pool,
		pub:    pub,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the periodic screening loop. It waits for a catalog, screens once,
// then screens every Interval, rebuilding first when the catalog has changed.
//
// Blocks until ctx is cancelled.
func (s *Screener) Start(ctx context.Context) {
	if !s.waitForCatalog(ctx) {
		return
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("screener stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// waitForCatalog blocks until the store holds a catalog, checking every second.
// Returns false if ctx is cancelled.
func (s *Screener) waitForCatalog(ctx context.Context) bool {
	if s.store.Get() != nil {
		return true
	}

	s.logger.Info("screener waiting for catalog...")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if s.store.Get() != nil {
				s.logger.Info("catalog available, starting screening")
				return true
			}
		}
	}
}

// tick runs one periodic screening over [now, now+Horizon] and publishes its
// close approaches.
func (s *Screener) tick(ctx context.Context) {
	start := epoch.FromTime(s.now().UTC().Truncate(time.Minute))
	end := start.Add(epoch.FromDuration(s.config.Horizon))

	report, cached, err := s.Screen(ctx, start, end, s.config.Threshold, 0)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("periodic screening failed", "error", err)
		}
		return
	}
	if !cached && s.pub != nil {
		if failed := alerts.PublishReport(ctx, s.pub, report, s.logger); failed > 0 {
			s.logger.Warn("some alerts not published", "report_id", report.ID, "failed", failed)
		}
	}
	s.latest.Store(report)
}

// Latest returns the most recent periodic report, or nil before the first.
func (s *Screener) Latest() *events.Report {
	return s.latest.Load()
}

// Screen returns the close-approach report for [start, end] at threshold km
// against the current catalog, screening only satelliteID against the rest
// when it is non-zero. cached reports whether the report came from the cache.
func (s *Screener) Screen(ctx context.Context, start, end epoch.Epoch, threshold float64, satelliteID int) (report *events.Report, cached bool, err error) {
	if err := s.refresh(ctx); err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := Key{Version: s.version, Start: start, End: end, Threshold: threshold, SatelliteID: satelliteID}
	if r, ok := s.cache.Get(key); ok {
		return r, true, nil
	}

	if satelliteID == 0 {
		report, err = s.constellation.CAReportVsMany(ctx, start, end, threshold)
	} else {
		var primary *bodies.Satellite
		primary, err = s.constellation.Get(satelliteID)
		if err != nil {
			return nil, false, fmt.Errorf("screen satellite %d: %w", satelliteID, err)
		}
		defer primary.Close()
		report, err = s.constellation.CAReportVsOne(ctx, primary, start, end, threshold)
	}
	if err != nil {
		return nil, false, err
	}

	s.cache.Put(key, report)
	return report, false, nil
}

// StatesAt returns the TEME state of every catalog member at e.
// Members that fail to propagate map to nil.
func (s *Screener) StatesAt(ctx context.Context, e epoch.Epoch) (map[int]*elements.CartesianState, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constellation.StatesAt(ctx, e), nil
}

// Satellite returns a copy of one catalog member, owned by the caller.
func (s *Screener) Satellite(ctx context.Context, id int) (*bodies.Satellite, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constellation.Get(id)
}

// Stats returns the report cache statistics.
func (s *Screener) Stats() Stats {
	st := s.cache.Stats()
	st.InCutover = s.inCutover.Load()
	return st
}

// Close releases the constellation.
func (s *Screener) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.constellation != nil {
		s.constellation.Close()
		s.constellation = nil
		s.version = 0
	}
}
