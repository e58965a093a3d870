package bodies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/ephemeris"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/metrics"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

// Constellation is a set of satellites keyed by id. Batch operations run on a
// worker pool and report failed members as absent entries rather than errors.
type Constellation struct {
	mu     sync.RWMutex
	name   string
	sats   map[int]*Satellite
	pool   *propagation.WorkerPool
	logger *slog.Logger
}

// NewConstellation creates an empty constellation. A nil pool uses the
// process-wide worker count.
func NewConstellation(name string, pool *propagation.WorkerPool, logger *slog.Logger) *Constellation {
	if pool == nil {
		pool = propagation.NewWorkerPool(0, logger)
	}
	return &Constellation{
		name:   name,
		sats:   make(map[int]*Satellite),
		pool:   pool,
		logger: logger.With("component", "constellation"),
	}
}

// FromTLECatalog binds every entry in the catalog. Entries that cannot be bound
// are logged and left out; the number skipped is returned.
func FromTLECatalog(c *tle.Catalog, pool *propagation.WorkerPool, logger *slog.Logger) (*Constellation, int) {
	con := NewConstellation(c.Name, pool, logger)
	skipped := 0
	for _, id := range c.IDs() {
		entry, _ := c.Get(id)
		sat, err := FromTLE(entry)
		if err != nil {
			con.logger.Warn("skipping catalog entry", "satellite_id", id, "error", err)
			skipped++
			continue
		}
		con.sats[id] = sat
	}
	return con, skipped
}

func (c *Constellation) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

func (c *Constellation) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// Add stores sat under id, taking ownership of it. A satellite previously stored
// under id is closed.
func (c *Constellation) Add(id int, sat *Satellite) {
	c.mu.Lock()
	old := c.sats[id]
	c.sats[id] = sat
	c.mu.Unlock()
	if old != nil && old != sat {
		old.Close()
	}
}

// Get returns a clone of the member under id. The caller owns the clone.
func (c *Constellation) Get(id int) (*Satellite, error) {
	c.mu.RLock()
	sat, ok := c.sats[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("satellite %d: %w", id, ErrNotFound)
	}
	return sat.Clone()
}

// Remove closes and drops the member under id.
func (c *Constellation) Remove(id int) {
	c.mu.Lock()
	sat := c.sats[id]
	delete(c.sats, id)
	c.mu.Unlock()
	sat.Close()
}

// Clear closes and drops every member.
func (c *Constellation) Clear() {
	c.mu.Lock()
	old := c.sats
	c.sats = make(map[int]*Satellite)
	c.mu.Unlock()
	for _, sat := range old {
		sat.Close()
	}
}

// Close releases every member.
func (c *Constellation) Close() error {
	c.Clear()
	return nil
}

func (c *Constellation) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sats)
}

// IDs returns the member ids in ascending order.
func (c *Constellation) IDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.sats))
}

// members snapshots the members in id order.
func (c *Constellation) members() []*Satellite {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Satellite, 0, len(c.sats))
	for _, id := range slices.Sorted(maps.Keys(c.sats)) {
		out = append(out, c.sats[id])
	}
	return out
}

// StatesAt propagates every member to e. Members that fail map to nil.
func (c *Constellation) StatesAt(ctx context.Context, e epoch.Epoch) map[int]*elements.CartesianState {
	sats := c.members()
	states, errs := propagation.Map(ctx, c.pool, "states", sats,
		func(_ context.Context, s *Satellite) (elements.CartesianState, error) {
			return s.StateAt(e)
		})

	out := make(map[int]*elements.CartesianState, len(sats))
	for i, s := range sats {
		if errs[i] != nil {
			out[s.ID()] = nil
			continue
		}
		st := states[i]
		out[s.ID()] = &st
	}
	return out
}

// Ephemerides samples every member over [start, end]. Members that fail map to
// nil. The caller owns and must Close the returned ephemerides.
func (c *Constellation) Ephemerides(ctx context.Context, start, end epoch.Epoch, step epoch.TimeSpan) map[int]*ephemeris.Ephemeris {
	sats := c.members()
	ephs, _ := c.ephemerides(ctx, sats, start, end, step)

	out := make(map[int]*ephemeris.Ephemeris, len(sats))
	for i, s := range sats {
		out[s.ID()] = ephs[i]
	}
	return out
}

func (c *Constellation) ephemerides(ctx context.Context, sats []*Satellite, start, end epoch.Epoch, step epoch.TimeSpan) ([]*ephemeris.Ephemeris, []error) {
	return propagation.Map(ctx, c.pool, "ephemeris", sats,
		func(_ context.Context, s *Satellite) (*ephemeris.Ephemeris, error) {
			return s.Ephemeris(start, end, step)
		})
}

type screenPair struct {
	primary, secondary int // indexes into the ephemeris slice
}

// CAReportVsOne screens sat against every member over [start, end]. Members with
// sat's id are skipped. When sat itself cannot be propagated the report is empty.
func (c *Constellation) CAReportVsOne(ctx context.Context, sat *Satellite, start, end epoch.Epoch, threshold float64) (*events.Report, error) {
	began := time.Now()
	report := events.NewReport(start, end, threshold)

	primary, err := sat.Ephemeris(start, end, ephemeris.ConjunctionStep)
	if err != nil {
		if errors.Is(err, propagation.ErrResourceBinding) {
			return nil, err
		}
		c.logger.Warn("primary has no ephemeris", "satellite_id", sat.ID(), "error", err)
		return report, nil
	}
	defer primary.Close()

	var candidates []*Satellite
	for _, other := range c.members() {
		if other.ID() == sat.ID() {
			continue
		}
		if !EnvelopesOverlap(sat, other, threshold) {
			report.PairsPruned++
			continue
		}
		candidates = append(candidates, other)
	}

	cas, errs := propagation.Map(ctx, c.pool, "screen_vs_one", candidates,
		func(_ context.Context, other *Satellite) (*events.CloseApproach, error) {
			secondary, err := other.Ephemeris(start, end, ephemeris.ConjunctionStep)
			if err != nil {
				return nil, err
			}
			defer secondary.Close()

			ca, ok, err := primary.CloseApproach(secondary, threshold)
			if err != nil || !ok {
				return nil, err
			}
			return &ca, nil
		})

	report.PairsSearched = len(candidates)
	report.SetCloseApproaches(collect(cas, errs))
	c.finish(report, began)
	return report, ctx.Err()
}

// CAReportVsMany screens every pair of members over [start, end]. Each member's
// ephemeris is built once; members without one are left out of the search.
func (c *Constellation) CAReportVsMany(ctx context.Context, start, end epoch.Epoch, threshold float64) (*events.Report, error) {
	began := time.Now()
	report := events.NewReport(start, end, threshold)

	sats := c.members()
	ephs, _ := c.ephemerides(ctx, sats, start, end, ephemeris.ConjunctionStep)
	defer func() {
		for _, e := range ephs {
			e.Close()
		}
	}()

	var pairs []screenPair
	for i := range sats {
		if ephs[i] == nil {
			continue
		}
		for j := i + 1; j < len(sats); j++ {
			if ephs[j] == nil {
				continue
			}
			if !EnvelopesOverlap(sats[i], sats[j], threshold) {
				report.PairsPruned++
				continue
			}
			pairs = append(pairs, screenPair{primary: i, secondary: j})
		}
	}

	cas, errs := propagation.Map(ctx, c.pool, "screen_vs_many", pairs,
		func(_ context.Context, p screenPair) (*events.CloseApproach, error) {
			ca, ok, err := ephs[p.primary].CloseApproach(ephs[p.secondary], threshold)
			if err != nil || !ok {
				return nil, err
			}
			return &ca, nil
		})

	report.PairsSearched = len(pairs)
	report.SetCloseApproaches(collect(cas, errs))
	c.finish(report, began)
	return report, ctx.Err()
}

func collect(cas []*events.CloseApproach, errs []error) []events.CloseApproach {
	var out []events.CloseApproach
	for i, ca := range cas {
		if errs[i] == nil && ca != nil {
			out = append(out, *ca)
		}
	}
	return out
}

func (c *Constellation) finish(report *events.Report, began time.Time) {
	d := time.Since(began)
	metrics.RecordScreening(d, report.PairsPruned, report.PairsSearched, len(report.CloseApproaches))
	c.logger.Info("screening complete",
		"report_id", report.ID,
		"pruned", report.PairsPruned,
		"searched", report.PairsSearched,
		"events", len(report.CloseApproaches),
		"duration_ms", d.Milliseconds(),
	)
}
