package propagation

import (
	"fmt"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/tle"
)

// ElementSet is everything an engine needs to produce states for one object.
type ElementSet struct {
	SatelliteID    int
	Name           string
	Classification byte
	Designator     string
	State          elements.KeplerianState
	Forces         ForceProperties
}

// ElementSetFromTLE builds a MeanKozaiGP element set in TEME from a parsed TLE.
func ElementSetFromTLE(e tle.Entry) ElementSet {
	a := elements.SemiMajorAxisFromMeanMotion(e.MeanMotion, elements.MeanKozaiGP, e.Eccentricity, e.Inclination)
	return ElementSet{
		SatelliteID:    e.SatelliteID,
		Name:           e.Name,
		Classification: e.Classification,
		Designator:     e.Designator,
		State: elements.KeplerianState{
			Epoch: e.Epoch,
			Elements: elements.KeplerianElements{
				SemiMajorAxis:     a,
				Eccentricity:      e.Eccentricity,
				Inclination:       e.Inclination,
				RAAN:              e.RAAN,
				ArgumentOfPerigee: e.ArgPerigee,
				MeanAnomaly:       e.MeanAnomaly,
			},
			Frame: elements.TEME,
			Type:  elements.MeanKozaiGP,
		},
		Forces: ForcePropertiesFromTLE(e.BStar, e.MeanMotionDot, e.MeanMotionDDot),
	}
}

// TLE renders a GP element set as a TLE entry with formatted lines. The mean motion
// is always written in the Kozai convention SGP4 expects.
func (s ElementSet) TLE() (tle.Entry, error) {
	switch s.State.Type {
	case elements.MeanKozaiGP, elements.MeanBrouwerGP:
	default:
		return tle.Entry{}, fmt.Errorf("satellite %d: %v has no TLE form: %w", s.SatelliteID, s.State.Type, ErrInvalidElementType)
	}

	k := s.State.Elements
	e := tle.Entry{
		SatelliteID:      s.SatelliteID,
		Name:             s.Name,
		Classification:   s.Classification,
		Designator:       s.Designator,
		Epoch:            s.State.Epoch,
		MeanMotionDot:    s.Forces.MeanMotionDot,
		MeanMotionDDot:   s.Forces.MeanMotionDDot,
		BStar:            s.Forces.BStar(),
		Inclination:      k.Inclination,
		RAAN:             k.RAAN,
		Eccentricity:     k.Eccentricity,
		ArgPerigee:       k.ArgumentOfPerigee,
		MeanAnomaly:      k.MeanAnomaly,
		MeanMotion:       k.MeanMotion(elements.MeanKozaiGP),
		ElementSetNumber: 999,
	}

	l1, l2, err := tle.Format(e)
	if err != nil {
		return tle.Entry{}, fmt.Errorf("satellite %d: %w: %w", s.SatelliteID, ErrPropagationFailure, err)
	}
	e.Line1, e.Line2 = l1, l2
	return e, nil
}
