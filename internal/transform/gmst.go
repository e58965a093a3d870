package transform

import (
	"math"

	"github.com/soniakeys/meeus/v3/sidereal"

	"github.com/star/orbitscreen/internal/epoch"
)

// j2000 is the Julian date of J2000.0 (2000 Jan 1 12:00 TT).
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// GMST returns Greenwich mean sidereal time in radians, [0, 2π), using the
// IAU-82 expression evaluated on UT1.
func GMST(e epoch.Epoch) float64 {
	return sidereal.Mean(e.ToSystem(epoch.UT1).JulianDate()).Rad()
}

// GAST returns Greenwich apparent sidereal time: GMST plus the equation of the
// equinoxes. TEME is the frame whose x axis sits at GMST from EFG, so GAST only
// matters when comparing against true-of-date quantities.
func GAST(e epoch.Epoch) float64 {
	g := GMST(e) + anglesAt(e).equinoxEqn
	if g < 0 {
		g += 2 * math.Pi
	}
	return math.Mod(g, 2*math.Pi)
}
