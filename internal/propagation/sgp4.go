package propagation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/tle"
)

// Deep-space backend: github.com/joshuaferrara/go-satellite
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible to the
// caller. Failures are detected from the output: NaN/Inf or a position inside the
// Earth. The library also only accepts whole seconds, so other epochs are
// Hermite-interpolated between the bracketing seconds, and it drops the fraction
// of a second from the TLE epoch, which is added back as lag.

// minRadius is the smallest geocentric distance (km) accepted from SGP4.
const minRadius = 6200.0

// Mean element fitting for deep-space sets.
const (
	fitIterations = 25
	fitTolerance  = 1e-4 // km
)

// sgp4Engine propagates a GP element set. Immutable after construction.
type sgp4Engine struct {
	set  ElementSet
	near *nearEarth // nil for deep-space sets

	sat satellite.Satellite
	lag float64 // seconds the library's epoch trails the set's
}

func newSGP4Engine(set ElementSet, g satellite.Gravity) (*sgp4Engine, error) {
	near, err := newNearEarth(set, gravityFor(g))
	switch {
	case err == nil:
		return &sgp4Engine{set: set, near: near}, nil
	case !errors.Is(err, errDeepSpace):
		return nil, fmt.Errorf("sgp4 init failed for satellite %d: %w", set.SatelliteID, err)
	}
	return newLibraryEngine(set, g)
}

// newLibraryEngine formats set as TLE lines and initializes the library model.
//
// Lines are validated before they reach the library, because go-satellite calls
// log.Fatal on malformed input.
func newLibraryEngine(set ElementSet, g satellite.Gravity) (*sgp4Engine, error) {
	entry, err := set.TLE()
	if err != nil {
		return nil, err
	}
	if err := validateTLELines(entry.Line1, entry.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for satellite %d: %w", set.SatelliteID, err)
	}
	lag, err := epochLag(entry.Line1)
	if err != nil {
		return nil, fmt.Errorf("invalid TLE for satellite %d: %w", set.SatelliteID, err)
	}

	sat := satellite.TLEToSat(entry.Line1, entry.Line2, g)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for satellite %d: code=%d %s: %w",
			set.SatelliteID, sat.Error, sat.ErrorStr, ErrPropagationFailure)
	}
	return &sgp4Engine{set: set, sat: sat, lag: lag}, nil
}

// validateTLELines performs basic format validation on TLE lines.
func validateTLELines(line1, line2 string) error {
	if len(line1) != tle.LineLength {
		return fmt.Errorf("line1 length %d, expected %d", len(line1), tle.LineLength)
	}
	if len(line2) != tle.LineLength {
		return fmt.Errorf("line2 length %d, expected %d", len(line2), tle.LineLength)
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// epochLag returns the fraction of a second go-satellite truncates from the epoch
// field of line1, split into hours and minutes the same way the library does.
func epochLag(line1 string) (float64, error) {
	days, err := strconv.ParseFloat(strings.TrimSpace(line1[18:32])[2:], 64)
	if err != nil {
		return 0, fmt.Errorf("epoch %q: %w", line1[18:32], err)
	}
	temp := (days - math.Floor(days)) * 24
	temp = (temp - math.Floor(temp)) * 60
	sec := (temp - math.Floor(temp)) * 60
	return sec - math.Trunc(sec), nil
}

func (p *sgp4Engine) capabilities() Capabilities {
	return Capabilities{Drag: true, Differentiable: p.near != nil}
}

func (p *sgp4Engine) stateAt(e epoch.Epoch) (elements.CartesianState, error) {
	if p.near != nil {
		return p.nearStateAt(e)
	}

	u := e.ToSystem(epoch.UTC)
	secs := u.DaysSince1950*86400 - p.lag
	whole := math.Floor(secs)
	frac := secs - whole

	p0, v0, err := p.propagateSecond(whole)
	if err != nil {
		return elements.CartesianState{}, err
	}
	pos, vel := p0, v0
	if frac > 1e-9 {
		p1, v1, err := p.propagateSecond(whole + 1)
		if err != nil {
			return elements.CartesianState{}, err
		}
		pos, vel = elements.Hermite(p0, v0, p1, v1, 1, frac)
	}

	return elements.CartesianState{Epoch: e, Position: pos, Velocity: vel, Frame: elements.TEME}, nil
}

func (p *sgp4Engine) nearStateAt(e epoch.Epoch) (elements.CartesianState, error) {
	pos, vel, err := p.near.state(e.Sub(p.set.State.Epoch).Minutes())
	if err != nil {
		return elements.CartesianState{}, fmt.Errorf("sgp4 satellite %d at %s: %w", p.set.SatelliteID, e.ISO(), err)
	}
	if !pos.IsFinite() || !vel.IsFinite() {
		return elements.CartesianState{}, fmt.Errorf("sgp4 satellite %d at %s: output is NaN/Inf: %w", p.set.SatelliteID, e.ISO(), ErrPropagationFailure)
	}
	if mag := pos.Magnitude(); mag < minRadius {
		return elements.CartesianState{}, fmt.Errorf("sgp4 satellite %d at %s: radius %.1f km: %w", p.set.SatelliteID, e.ISO(), mag, ErrPropagationFailure)
	}
	return elements.CartesianState{Epoch: e, Position: pos, Velocity: vel, Frame: elements.TEME}, nil
}

// propagateSecond evaluates the library at a whole UTC second counted from the DS50 origin.
func (p *sgp4Engine) propagateSecond(secs float64) (elements.CartesianVector, elements.CartesianVector, error) {
	t := epoch.New(secs/86400, epoch.UTC).Time()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	r := elements.CartesianVector{X: pos.X, Y: pos.Y, Z: pos.Z}
	v := elements.CartesianVector{X: vel.X, Y: vel.Y, Z: vel.Z}
	if !r.IsFinite() || !v.IsFinite() {
		return r, v, fmt.Errorf("sgp4 satellite %d at %s: output is NaN/Inf: %w", p.set.SatelliteID, t.Format("2006-01-02T15:04:05Z"), ErrPropagationFailure)
	}
	if mag := r.Magnitude(); mag < minRadius {
		return r, v, fmt.Errorf("sgp4 satellite %d at %s: radius %.1f km: %w", p.set.SatelliteID, t.Format("2006-01-02T15:04:05Z"), mag, ErrPropagationFailure)
	}
	return r, v, nil
}

// elementsAt returns mean elements at e that reproduce this set's trajectory when
// bound at e. Near-earth sets use the secular solution, drag terms included.
// Deep-space sets are fitted to the state at e.
func (p *sgp4Engine) elementsAt(e epoch.Epoch) (elements.KeplerianState, error) {
	if p.near == nil {
		return p.fitMeanElements(e)
	}
	s := p.set.State
	s.Epoch = e
	k, err := p.near.meanElements(e.Sub(p.set.State.Epoch).Minutes())
	if err != nil {
		return elements.KeplerianState{}, fmt.Errorf("sgp4 satellite %d at %s: %w", p.set.SatelliteID, e.ISO(), err)
	}
	s.Elements = k
	return s, nil
}

// fitMeanElements corrects candidate mean elements at e by the difference between
// the target's osculating elements and the candidate's, in equinoctial form, until
// the candidate's state matches the target's.
func (p *sgp4Engine) fitMeanElements(e epoch.Epoch) (elements.KeplerianState, error) {
	target, err := p.stateAt(e)
	if err != nil {
		return elements.KeplerianState{}, err
	}
	want := elements.OsculatingFromCartesian(target.Position, target.Velocity).ToEquinoctial(elements.Osculating)

	cand := p.set
	cand.State.Epoch = e
	x := want
	var best elements.KeplerianState
	bestErr := math.Inf(1)
	for i := 0; i < fitIterations; i++ {
		cand.State.Elements = x.ToKeplerian(elements.Osculating)
		eng, err := newLibraryEngine(cand, gravity)
		if err != nil {
			break
		}
		got, err := eng.stateAt(e)
		if err != nil {
			break
		}
		if d := got.Position.Sub(target.Position).Magnitude(); d < bestErr {
			best, bestErr = cand.State, d
			if d < fitTolerance {
				break
			}
		}
		have := elements.OsculatingFromCartesian(got.Position, got.Velocity).ToEquinoctial(elements.Osculating)
		for j := 0; j < elements.EquinoctialSize; j++ {
			d := want.Get(j) - have.Get(j)
			if j == 4 {
				d = elements.WrapDegrees180(d)
			}
			x = x.With(j, x.Get(j)+d)
		}
	}
	if math.IsInf(bestErr, 1) {
		return elements.KeplerianState{}, fmt.Errorf("sgp4 satellite %d: no mean elements at %s: %w", p.set.SatelliteID, e.ISO(), ErrPropagationFailure)
	}
	return best, nil
}
