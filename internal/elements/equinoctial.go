package elements

import (
	"fmt"
	"math"
)

// EquinoctialElements are the estimator's state: af, ag, chi, psi, mean longitude (deg)
// and mean motion (rev/day), in that index order.
type EquinoctialElements struct {
	Af            float64
	Ag            float64
	Chi           float64
	Psi           float64
	MeanLongitude float64
	MeanMotion    float64
}

// EquinoctialSize is the number of indexed equinoctial elements.
const EquinoctialSize = 6

// Get returns element i.
func (e EquinoctialElements) Get(i int) float64 {
	switch i {
	case 0:
		return e.Af
	case 1:
		return e.Ag
	case 2:
		return e.Chi
	case 3:
		return e.Psi
	case 4:
		return e.MeanLongitude
	case 5:
		return e.MeanMotion
	}
	panic(fmt.Sprintf("equinoctial index %d out of range", i))
}

// With returns a copy with element i set to v.
func (e EquinoctialElements) With(i int, v float64) EquinoctialElements {
	switch i {
	case 0:
		e.Af = v
	case 1:
		e.Ag = v
	case 2:
		e.Chi = v
	case 3:
		e.Psi = v
	case 4:
		e.MeanLongitude = v
	case 5:
		e.MeanMotion = v
	default:
		panic(fmt.Sprintf("equinoctial index %d out of range", i))
	}
	return e
}

// ToKeplerian converts back, reading MeanMotion with the convention of t.
func (e EquinoctialElements) ToKeplerian(t KeplerianType) KeplerianElements {
	ecc := math.Hypot(e.Af, e.Ag)
	incl := 2 * math.Atan(math.Hypot(e.Chi, e.Psi)) * RadToDeg
	raan := WrapDegrees360(math.Atan2(e.Chi, e.Psi) * RadToDeg)
	lp := math.Atan2(e.Ag, e.Af) * RadToDeg
	return KeplerianElements{
		SemiMajorAxis:     SemiMajorAxisFromMeanMotion(e.MeanMotion, t, ecc, incl),
		Eccentricity:      ecc,
		Inclination:       incl,
		RAAN:              raan,
		ArgumentOfPerigee: WrapDegrees360(lp - raan),
		MeanAnomaly:       WrapDegrees360(e.MeanLongitude - lp),
	}
}
