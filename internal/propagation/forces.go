package propagation

import "github.com/star/orbitscreen/internal/elements"

// ForceProperties holds the non-gravitational model parameters paired with an
// element set. Areas are m^2, mass kg.
type ForceProperties struct {
	SRPCoefficient  float64
	SRPArea         float64
	DragCoefficient float64
	DragArea        float64
	Mass            float64
	MeanMotionDot   float64 // rev/day^2, as printed in a TLE (ndot/2)
	MeanMotionDDot  float64 // rev/day^3, as printed in a TLE (nddot/6)
}

// DefaultForceProperties returns the seed values used when nothing better is known.
func DefaultForceProperties() ForceProperties {
	return ForceProperties{
		SRPCoefficient:  0.03,
		SRPArea:         1,
		DragCoefficient: 0.01,
		DragArea:        1,
		Mass:            1,
	}
}

// ForcePropertiesFromTLE maps the drag fields of a GP element set. The B* value is
// carried as a B-term in DragCoefficient and there is no SRP term.
func ForcePropertiesFromTLE(bstar, ndot, nddot float64) ForceProperties {
	return ForceProperties{
		DragCoefficient: bstar * elements.BStarToBTerm,
		DragArea:        1,
		SRPArea:         1,
		Mass:            1,
		MeanMotionDot:   ndot,
		MeanMotionDDot:  nddot,
	}
}

// SRPTerm returns coefficient * area / mass.
func (f ForceProperties) SRPTerm() float64 {
	if f.Mass == 0 {
		return 0
	}
	return f.SRPCoefficient * f.SRPArea / f.Mass
}

// DragTerm returns coefficient * area / mass, the B-term.
func (f ForceProperties) DragTerm() float64 {
	if f.Mass == 0 {
		return 0
	}
	return f.DragCoefficient * f.DragArea / f.Mass
}

// BStar converts the drag term to the SGP4 B* (1/earth radii).
func (f ForceProperties) BStar() float64 {
	return f.DragTerm() / elements.BStarToBTerm
}
