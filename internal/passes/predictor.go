// Package passes predicts when satellites are visible from a ground site and
// simulates the observations a sensor there would take.
package passes

import (
	"context"
	"fmt"
	"math"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Epoch     epoch.Epoch `json:"epoch"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	Altitude  float64     `json:"altitude_km"`
	Elevation float64     `json:"elevation"` // degrees above observer's horizon (0-90)
}

// Window is one interval during which a satellite is at or above the minimum
// elevation from a site.
type Window struct {
	Rise              epoch.Epoch        `json:"rise"`
	MaxElevationEpoch epoch.Epoch        `json:"max_elevation_epoch"`
	Set               epoch.Epoch        `json:"set"`
	DurationSeconds   float64            `json:"duration_seconds"`
	MaxElevation      float64            `json:"max_elevation"`
	AzimuthAtMax      float64            `json:"azimuth_at_max"`
	RiseAzimuth       float64            `json:"rise_azimuth"`
	SetAzimuth        float64            `json:"set_azimuth"`
	GroundTrack       []GroundTrackPoint `json:"ground_track,omitempty"`
}

// SatelliteWindows holds the predicted windows for one satellite.
type SatelliteWindows struct {
	SatelliteID int      `json:"satellite_id"`
	Windows     []Window `json:"windows"`
	Error       string   `json:"error,omitempty"`
}

// Request holds the parameters for a visibility prediction.
type Request struct {
	Site         *bodies.Observatory
	Satellites   []*bodies.Satellite
	Start        epoch.Epoch
	Horizon      epoch.TimeSpan
	MinElevation float64 // degrees
	MaxWindows   int     // per satellite, 0 for no limit
	GroundTrack  bool
}

const (
	coarseStepSec      = 30 // seconds between coarse scan steps
	bisectToleranceSec = 0.01
	groundTrackStepSec = 10 // seconds between ground track samples
	minWindowSec       = 10
)

// Predict finds the visibility windows of every satellite in req on the pool.
// Results are index-aligned with req.Satellites; a satellite that cannot be
// propagated carries an Error instead of windows.
func Predict(ctx context.Context, pool *propagation.WorkerPool, req Request) []SatelliteWindows {
	site := req.Site.Position()
	windows, errs := propagation.Map(ctx, pool, "passes", req.Satellites,
		func(ctx context.Context, sat *bodies.Satellite) ([]Window, error) {
			return predictSatellite(ctx, req, site, sat)
		})

	results := make([]SatelliteWindows, len(req.Satellites))
	for i, sat := range req.Satellites {
		results[i] = SatelliteWindows{SatelliteID: sat.ID(), Windows: windows[i]}
		if errs[i] != nil {
			results[i].Error = errs[i].Error()
		}
	}
	return results
}

// elevationFunc returns elevation above the minimum, so windows are where it is >= 0.
type elevationFunc func(epoch.Epoch) (float64, transform.LookAngles, error)

func lookFrom(site transform.ObserverPosition, sat *bodies.Satellite, minElev float64) elevationFunc {
	return func(e epoch.Epoch) (float64, transform.LookAngles, error) {
		s, err := sat.StateAt(e)
		if err != nil {
			return 0, transform.LookAngles{}, err
		}
		la := site.LookAnglesTo(transform.TEMEToEFG(s).Position)
		return la.ElevationDeg - minElev, la, nil
	}
}

// predictSatellite scans the horizon at coarseStepSec and bisects each horizon
// crossing it brackets.
func predictSatellite(ctx context.Context, req Request, site transform.ObserverPosition, sat *bodies.Satellite) ([]Window, error) {
	f := lookFrom(site, sat, req.MinElevation)
	end := req.Start.Add(req.Horizon)
	step := epoch.FromSeconds(coarseStepSec)

	prev, _, err := f(req.Start)
	if err != nil {
		return nil, fmt.Errorf("satellite %d: %w", sat.ID(), err)
	}

	var (
		windows []Window
		rise    epoch.Epoch
		up      = prev >= 0
	)
	if up {
		rise = req.Start
	}

	t := req.Start
	for t.Before(end) {
		if err := ctx.Err(); err != nil {
			return windows, err
		}
		next := t.Add(step)
		if next.After(end) {
			next = end
		}
		el, _, err := f(next)
		if err != nil {
			return windows, fmt.Errorf("satellite %d: %w", sat.ID(), err)
		}

		switch {
		case !up && el >= 0:
			rise = bisect(f, t, next, true)
			up = true
		case up && el < 0:
			set := bisect(f, t, next, false)
			if w, ok := buildWindow(f, site, sat, rise, set, req); ok {
				windows = append(windows, w)
			}
			up = false
		}
		if req.MaxWindows > 0 && len(windows) >= req.MaxWindows {
			return windows, nil
		}
		t = next
	}

	if up {
		if w, ok := buildWindow(f, site, sat, rise, end, req); ok {
			windows = append(windows, w)
		}
	}
	return windows, nil
}

// bisect narrows [lo, hi] to the horizon crossing. rising selects which side of
// the crossing is above.
func bisect(f elevationFunc, lo, hi epoch.Epoch, rising bool) epoch.Epoch {
	for hi.Sub(lo).Seconds() > bisectToleranceSec {
		mid := lo.Add(hi.Sub(lo).Scale(0.5))
		el, _, err := f(mid)
		if err != nil {
			break
		}
		if (el >= 0) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if rising {
		return hi
	}
	return lo
}

// maxElevation golden-section searches [lo, hi] for the culmination.
func maxElevation(f elevationFunc, lo, hi epoch.Epoch) epoch.Epoch {
	const invPhi = 0.6180339887498949
	a, b := 0.0, hi.Sub(lo).Seconds()
	at := func(s float64) float64 {
		el, _, err := f(lo.Add(epoch.FromSeconds(s)))
		if err != nil {
			return math.Inf(-1)
		}
		return el
	}
	c, d := b-invPhi*(b-a), a+invPhi*(b-a)
	fc, fd := at(c), at(d)
	for b-a > bisectToleranceSec {
		if fc > fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = at(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = at(d)
		}
	}
	return lo.Add(epoch.FromSeconds((a + b) / 2))
}

func buildWindow(f elevationFunc, site transform.ObserverPosition, sat *bodies.Satellite, rise, set epoch.Epoch, req Request) (Window, bool) {
	dur := set.Sub(rise).Seconds()
	if dur < minWindowSec {
		return Window{}, false
	}

	// A pass has one culmination; search the coarse sample nearest it.
	best, bestEl := rise, math.Inf(-1)
	for s := 0.0; s <= dur; s += coarseStepSec {
		at := rise.Add(epoch.FromSeconds(s))
		if el, _, err := f(at); err == nil && el > bestEl {
			best, bestEl = at, el
		}
	}
	lo := best.Add(epoch.FromSeconds(-coarseStepSec))
	if lo.Before(rise) {
		lo = rise
	}
	hi := best.Add(epoch.FromSeconds(coarseStepSec))
	if hi.After(set) {
		hi = set
	}
	culm := maxElevation(f, lo, hi)

	_, riseLA, _ := f(rise)
	_, setLA, _ := f(set)
	_, maxLA, _ := f(culm)

	w := Window{
		Rise:              rise,
		MaxElevationEpoch: culm,
		Set:               set,
		DurationSeconds:   dur,
		MaxElevation:      maxLA.ElevationDeg,
		AzimuthAtMax:      maxLA.AzimuthDeg,
		RiseAzimuth:       riseLA.AzimuthDeg,
		SetAzimuth:        setLA.AzimuthDeg,
	}
	if req.GroundTrack {
		w.GroundTrack = groundTrack(site, sat, rise, set)
	}
	return w, true
}

func groundTrack(site transform.ObserverPosition, sat *bodies.Satellite, rise, set epoch.Epoch) []GroundTrackPoint {
	var pts []GroundTrackPoint
	dur := set.Sub(rise).Seconds()
	for s := 0.0; s <= dur; s += groundTrackStepSec {
		at := rise.Add(epoch.FromSeconds(s))
		st, err := sat.StateAt(at)
		if err != nil {
			continue
		}
		efg := transform.TEMEToEFG(st).Position
		geo := transform.EFGToGeodetic(efg)
		pts = append(pts, GroundTrackPoint{
			Epoch:     at,
			Latitude:  geo.LatDeg,
			Longitude: geo.LonDeg,
			Altitude:  geo.AltKm,
			Elevation: math.Max(0, site.LookAnglesTo(efg).ElevationDeg),
		})
	}
	return pts
}
