// Package estimation fits orbits to sensor observations by batch weighted least
// squares.
package estimation

import (
	"fmt"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/transform"
)

// Observation is one sensor measurement of a satellite's line of sight.
type Observation struct {
	Sensor   bodies.Sensor
	Epoch    epoch.Epoch
	Observed elements.TopocentricElements
	// Observer is the site's TEME state at Epoch.
	Observer    elements.CartesianState
	SatelliteID int // 0 when unassociated
}

// NewObservation builds an observation taken by sensor at site.
func NewObservation(site *bodies.Observatory, sensor bodies.Sensor, at epoch.Epoch, observed elements.TopocentricElements) Observation {
	return Observation{
		Sensor:   sensor,
		Epoch:    at,
		Observed: observed,
		Observer: site.StateAt(at),
	}
}

// Components returns the optional measurements that take part in the fit: those
// that were observed and that the sensor has a noise figure for. Measurement and
// predicted vectors both follow this set, so they always line up.
func (o Observation) Components() elements.Components {
	var c elements.Components
	if o.Observed.Has(elements.HasRange) && o.Sensor.RangeNoise != nil {
		c |= elements.HasRange
	}
	if o.Observed.Has(elements.HasRangeRate) && o.Sensor.RangeRateNoise != nil {
		c |= elements.HasRangeRate
	}
	if o.Observed.Has(elements.HasRightAscensionRate) && o.Sensor.AngularRateNoise != nil {
		c |= elements.HasRightAscensionRate
	}
	if o.Observed.Has(elements.HasDeclinationRate) && o.Sensor.AngularRateNoise != nil {
		c |= elements.HasDeclinationRate
	}
	return c
}

// Len returns the length of the measurement vector.
func (o Observation) Len() int {
	n := 2
	c := o.Components()
	for _, bit := range []elements.Components{elements.HasRange, elements.HasRangeRate, elements.HasRightAscensionRate, elements.HasDeclinationRate} {
		if c&bit != 0 {
			n++
		}
	}
	return n
}

// vector lays out t in measurement order: RA, Dec, then range, range rate,
// RA rate and Dec rate for each component present in c.
func vector(t elements.TopocentricElements, c elements.Components) []float64 {
	v := []float64{t.RightAscension, t.Declination}
	if c&elements.HasRange != 0 {
		v = append(v, t.Range)
	}
	if c&elements.HasRangeRate != 0 {
		v = append(v, t.RangeRate)
	}
	if c&elements.HasRightAscensionRate != 0 {
		v = append(v, t.RightAscensionRate)
	}
	if c&elements.HasDeclinationRate != 0 {
		v = append(v, t.DeclinationRate)
	}
	return v
}

// MeasurementAndWeights returns the observed vector and its inverse-variance weights.
func (o Observation) MeasurementAndWeights() ([]float64, []float64) {
	c := o.Components()
	ang := 1 / (o.Sensor.AngularNoise * o.Sensor.AngularNoise)
	w := []float64{ang, ang}
	if c&elements.HasRange != 0 {
		w = append(w, 1/(*o.Sensor.RangeNoise**o.Sensor.RangeNoise))
	}
	if c&elements.HasRangeRate != 0 {
		w = append(w, 1/(*o.Sensor.RangeRateNoise**o.Sensor.RangeRateNoise))
	}
	rate := 0.0
	if o.Sensor.AngularRateNoise != nil {
		rate = 1 / (*o.Sensor.AngularRateNoise * *o.Sensor.AngularRateNoise)
	}
	if c&elements.HasRightAscensionRate != 0 {
		w = append(w, rate)
	}
	if c&elements.HasDeclinationRate != 0 {
		w = append(w, rate)
	}
	return vector(o.Observed, c), w
}

// Propagator is the part of a satellite an observation needs.
type Propagator interface {
	ID() int
	StateAt(epoch.Epoch) (elements.CartesianState, error)
}

// PredictedVector propagates sat to the observation epoch and returns what the
// sensor would have measured, laid out like MeasurementAndWeights.
func (o Observation) PredictedVector(sat Propagator) ([]float64, error) {
	s, err := sat.StateAt(o.Epoch)
	if err != nil {
		return nil, fmt.Errorf("predict satellite %d at %s: %w", sat.ID(), o.Epoch, err)
	}
	return vector(transform.TEMEToTopocentric(o.Observer, s), o.Components()), nil
}

// Residual compares sat's propagated state with the point on the observed line of
// sight at the propagated range, in the propagated state's RIC frame.
func (o Observation) Residual(sat Propagator) (Residual, error) {
	s, err := sat.StateAt(o.Epoch)
	if err != nil {
		return Residual{}, fmt.Errorf("residual for satellite %d at %s: %w", sat.ID(), o.Epoch, err)
	}
	rng := s.Position.Sub(o.Observer.Position).Magnitude()
	implied := s
	implied.Position = o.Observer.Position.Add(o.Observed.Direction().Scale(rng))

	return Residual{Epoch: o.Epoch, RelativeState: transform.Relative(s, implied)}, nil
}

// Residual is one observation's geometric miss.
type Residual struct {
	Epoch epoch.Epoch
	transform.RelativeState
}

// difference returns observed minus predicted, with the right ascension wrapped
// to (-180, 180].
func difference(observed, predicted []float64) []float64 {
	d := make([]float64, len(observed))
	for i := range observed {
		d[i] = observed[i] - predicted[i]
	}
	if len(d) > 0 {
		d[0] = elements.WrapDegrees180(d[0])
	}
	return d
}
