package propagation

import (
	"fmt"
	"math"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/transform"
)

// twoBodyEngine propagates osculating elements on an unperturbed Kepler orbit.
type twoBodyEngine struct {
	set ElementSet
	n   float64 // rad/s
}

func newTwoBodyEngine(set ElementSet) (*twoBodyEngine, error) {
	k := set.State.Elements
	if k.Eccentricity < 0 || k.Eccentricity >= 1 || k.SemiMajorAxis <= 0 {
		return nil, fmt.Errorf("satellite %d: a=%.3f km e=%.6f is not a closed orbit: %w",
			set.SatelliteID, k.SemiMajorAxis, k.Eccentricity, ErrPropagationFailure)
	}
	if rp := k.Periapsis(); rp < elements.EarthRadius {
		return nil, fmt.Errorf("satellite %d: periapsis %.1f km below the surface: %w",
			set.SatelliteID, rp, ErrPropagationFailure)
	}
	return &twoBodyEngine{
		set: set,
		n:   math.Sqrt(elements.EarthMu / (k.SemiMajorAxis * k.SemiMajorAxis * k.SemiMajorAxis)),
	}, nil
}

// Unperturbed motion ignores ForceProperties.
func (p *twoBodyEngine) capabilities() Capabilities {
	return Capabilities{Differentiable: true}
}

func (p *twoBodyEngine) elementsAt(e epoch.Epoch) (elements.KeplerianState, error) {
	s := p.set.State
	dt := e.Sub(s.Epoch).Seconds()
	s.Elements.MeanAnomaly = elements.WrapDegrees360(s.Elements.MeanAnomaly + p.n*dt*elements.RadToDeg)
	s.Epoch = e
	return s, nil
}

func (p *twoBodyEngine) stateAt(e epoch.Epoch) (elements.CartesianState, error) {
	s, _ := p.elementsAt(e)
	r, v := s.Elements.ToCartesian()
	state := elements.CartesianState{Epoch: e, Position: r, Velocity: v, Frame: s.Frame}
	if state.Frame == elements.TEME {
		return state, nil
	}
	return transform.ConvertFrame(state, elements.TEME)
}
