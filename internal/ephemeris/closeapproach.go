package ephemeris

import (
	"errors"
	"math"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
)

// ConjunctionStep is the default sampling and coarse-scan interval.
var ConjunctionStep = epoch.FromMinutes(10)

const (
	maxNewtonIterations = 10
	newtonToleranceDays = 1e-6
	minRelativeSpeedSq  = 1e-12 // (km/s)^2
)

// CloseApproach scans at ConjunctionStep. See CloseApproachStep.
func (e *Ephemeris) CloseApproach(other *Ephemeris, threshold float64) (events.CloseApproach, bool, error) {
	return e.CloseApproachStep(other, threshold, ConjunctionStep)
}

// CloseApproachStep finds the minimum distance between e and other over e's range.
//
// At each coarse step the linear-motion time of closest approach is estimated; when
// it falls inside the step, Newton iterations on d(r.r)/dt refine it. The smallest
// refined distance inside its own step wins, and is reported only when it is strictly
// below threshold (km). Errors are returned only for released ephemerides.
func (e *Ephemeris) CloseApproachStep(other *Ephemeris, threshold float64, step epoch.TimeSpan) (events.CloseApproach, bool, error) {
	start, end, err := e.Range()
	if err != nil {
		return events.CloseApproach{}, false, err
	}

	best := events.CloseApproach{
		PrimaryID:   e.satelliteID,
		SecondaryID: other.satelliteID,
		Epoch:       start,
		Distance:    math.MaxFloat64,
	}

	for current := start; !current.After(end); current = current.Add(step) {
		s1, s2, err := statesAt(e, other, current)
		if err != nil {
			if errors.Is(err, ErrOutsideRange) {
				break
			}
			return events.CloseApproach{}, false, err
		}

		guess := estimateClosestEpoch(s1, s2)
		tMax := current.Add(step)
		if guess.Before(current) || guess.After(tMax) {
			continue
		}

		at, dist, ok := refine(e, other, guess)
		if ok && dist < best.Distance && !at.Before(current) && at.Before(tMax) {
			best.Epoch = at
			best.Distance = dist
		}
	}

	if best.Distance < threshold {
		return best, true, nil
	}
	return events.CloseApproach{}, false, nil
}

func statesAt(a, b *Ephemeris, at epoch.Epoch) (elements.CartesianState, elements.CartesianState, error) {
	s1, err := a.StateAt(at)
	if err != nil {
		return s1, s1, err
	}
	s2, err := b.StateAt(at)
	return s1, s2, err
}

// estimateClosestEpoch minimizes |dr + dv*t|^2 assuming straight-line relative motion.
func estimateClosestEpoch(s1, s2 elements.CartesianState) epoch.Epoch {
	dr := s1.Position.Sub(s2.Position)
	dv := s1.Velocity.Sub(s2.Velocity)
	den := dv.Dot(dv)
	if den < minRelativeSpeedSq {
		return s1.Epoch
	}
	return s1.Epoch.Add(epoch.FromSeconds(-dr.Dot(dv) / den))
}

// refine runs Newton's method on the range-rate root starting at t. It reports false
// when either ephemeris cannot be evaluated along the way.
func refine(a, b *Ephemeris, t epoch.Epoch) (epoch.Epoch, float64, bool) {
	for i := 0; i < maxNewtonIterations; i++ {
		s1, s2, err := statesAt(a, b, t)
		if err != nil {
			return t, 0, false
		}
		dr := s1.Position.Sub(s2.Position)
		dv := s1.Velocity.Sub(s2.Velocity)
		dvdv := dv.Dot(dv)
		if dvdv < minRelativeSpeedSq {
			break
		}

		dt := -dr.Dot(dv) / dvdv
		t = t.Add(epoch.FromSeconds(dt))
		if math.Abs(dt) < newtonToleranceDays*86400 {
			break
		}
	}

	s1, s2, err := statesAt(a, b, t)
	if err != nil {
		return t, 0, false
	}
	return t, s1.Position.Sub(s2.Position).Magnitude(), true
}
