package elements

import (
	"fmt"
	"math"
	"strings"
)

// KeplerianType identifies how an element set is to be interpreted by a propagator.
type KeplerianType int

const (
	MeanKozaiGP   KeplerianType = 0
	MeanBrouwerGP KeplerianType = 2
	MeanBrouwerXP KeplerianType = 4
	Osculating    KeplerianType = 6
)

func (t KeplerianType) String() string {
	switch t {
	case MeanKozaiGP:
		return "MeanKozaiGP"
	case MeanBrouwerGP:
		return "MeanBrouwerGP"
	case MeanBrouwerXP:
		return "MeanBrouwerXP"
	case Osculating:
		return "Osculating"
	default:
		return fmt.Sprintf("KeplerianType(%d)", int(t))
	}
}

// ParseKeplerianType accepts the type names (case-insensitive) or their short forms.
func ParseKeplerianType(s string) (KeplerianType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "meankozaigp", "kozai", "sgp4":
		return MeanKozaiGP, nil
	case "meanbrouwergp", "brouwer":
		return MeanBrouwerGP, nil
	case "meanbrouwerxp", "xp", "sgp4-xp":
		return MeanBrouwerXP, nil
	case "osculating", "osc", "twobody":
		return Osculating, nil
	}
	return Osculating, fmt.Errorf("unknown keplerian type %q", s)
}

// HasSRP reports whether the element type carries a native solar radiation pressure term.
func (t KeplerianType) HasSRP() bool {
	return t == MeanBrouwerXP || t == Osculating
}

// KeplerianElements holds classical elements: semi-major axis in km, angles in degrees.
type KeplerianElements struct {
	SemiMajorAxis     float64
	Eccentricity      float64
	Inclination       float64
	RAAN              float64
	ArgumentOfPerigee float64
	MeanAnomaly       float64
}

func (k KeplerianElements) Apoapsis() float64  { return k.SemiMajorAxis * (1 + k.Eccentricity) }
func (k KeplerianElements) Periapsis() float64 { return k.SemiMajorAxis * (1 - k.Eccentricity) }

// MeanMotion returns rev/day. Kozai mean motion is used for MeanKozaiGP.
func (k KeplerianElements) MeanMotion(t KeplerianType) float64 {
	n := meanMotionFromSMA(k.SemiMajorAxis)
	if t == MeanKozaiGP {
		return BrouwerToKozai(n, k.Eccentricity, k.Inclination)
	}
	return n
}

// SemiMajorAxisFromMeanMotion converts rev/day to km, treating n as Kozai for MeanKozaiGP.
func SemiMajorAxisFromMeanMotion(n float64, t KeplerianType, ecc, inclDeg float64) float64 {
	if t == MeanKozaiGP {
		n = KozaiToBrouwer(n, ecc, inclDeg)
	}
	w := n * 2 * math.Pi / SecondsPerDay
	return math.Cbrt(EarthMu / (w * w))
}

func meanMotionFromSMA(a float64) float64 {
	return math.Sqrt(EarthMu/(a*a*a)) * SecondsPerDay / (2 * math.Pi)
}

// xke is sqrt(mu) in earth radii^1.5 per minute.
var xke = 60 / math.Sqrt(EarthRadius*EarthRadius*EarthRadius/EarthMu)

// brouwerDelta returns the SGP4 un-Kozai correction for a Kozai mean motion in rev/day.
func brouwerDelta(nKozai, ecc, inclDeg float64) float64 {
	no := nKozai * 2 * math.Pi / MinutesPerDay
	cosio := math.Cos(inclDeg * DegToRad)
	omeosq := 1 - ecc*ecc
	rteosq := math.Sqrt(omeosq)
	ak := math.Pow(xke/no, 2.0/3.0)
	d1 := 0.75 * EarthJ2 * (3*cosio*cosio - 1) / (rteosq * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	return d1 / (adel * adel)
}

// KozaiToBrouwer converts a Kozai mean motion to Brouwer (both rev/day).
func KozaiToBrouwer(nKozai, ecc, inclDeg float64) float64 {
	return nKozai / (1 + brouwerDelta(nKozai, ecc, inclDeg))
}

// BrouwerToKozai inverts KozaiToBrouwer by fixed-point iteration.
func BrouwerToKozai(nBrouwer, ecc, inclDeg float64) float64 {
	nk := nBrouwer
	for i := 0; i < 20; i++ {
		next := nBrouwer * (1 + brouwerDelta(nk, ecc, inclDeg))
		if math.Abs(next-nk) < 1e-15*nBrouwer {
			return next
		}
		nk = next
	}
	return nk
}

// SolveKepler returns the eccentric anomaly (rad) for mean anomaly m (rad).
func SolveKepler(m, ecc float64) float64 {
	m = math.Remainder(m, 2*math.Pi)
	e := m
	if ecc > 0.8 {
		e = math.Pi
		if m < 0 {
			e = -math.Pi
		}
	}
	for i := 0; i < 50; i++ {
		f := e - ecc*math.Sin(e) - m
		de := f / (1 - ecc*math.Cos(e))
		e -= de
		if math.Abs(de) < 1e-14 {
			break
		}
	}
	return e
}

// ToCartesian returns the two-body position (km) and velocity (km/s).
func (k KeplerianElements) ToCartesian() (CartesianVector, CartesianVector) {
	a, ecc := k.SemiMajorAxis, k.Eccentricity
	E := SolveKepler(k.MeanAnomaly*DegToRad, ecc)
	cosE, sinE := math.Cos(E), math.Sin(E)
	sq := math.Sqrt(1 - ecc*ecc)

	// Perifocal frame.
	r := a * (1 - ecc*cosE)
	px, py := a*(cosE-ecc), a*sq*sinE
	f := math.Sqrt(EarthMu*a) / r
	vx, vy := -f*sinE, f*sq*cosE

	raan := k.RAAN * DegToRad
	argp := k.ArgumentOfPerigee * DegToRad
	inc := k.Inclination * DegToRad
	cO, sO := math.Cos(raan), math.Sin(raan)
	cw, sw := math.Cos(argp), math.Sin(argp)
	ci, si := math.Cos(inc), math.Sin(inc)

	p := CartesianVector{cO*cw - sO*sw*ci, sO*cw + cO*sw*ci, sw * si}
	q := CartesianVector{-cO*sw - sO*cw*ci, -sO*sw + cO*cw*ci, cw * si}

	return p.Scale(px).Add(q.Scale(py)), p.Scale(vx).Add(q.Scale(vy))
}

// ToEquinoctial converts using the mean motion convention of t.
func (k KeplerianElements) ToEquinoctial(t KeplerianType) EquinoctialElements {
	raan := k.RAAN * DegToRad
	lp := (k.ArgumentOfPerigee + k.RAAN) * DegToRad
	ti := math.Tan(k.Inclination * DegToRad / 2)
	return EquinoctialElements{
		Af:            k.Eccentricity * math.Cos(lp),
		Ag:            k.Eccentricity * math.Sin(lp),
		Chi:           ti * math.Sin(raan),
		Psi:           ti * math.Cos(raan),
		MeanLongitude: WrapDegrees360(k.MeanAnomaly + k.ArgumentOfPerigee + k.RAAN),
		MeanMotion:    k.MeanMotion(t),
	}
}

// OsculatingFromCartesian computes two-body elements from a position and velocity.
// The conversion passes through equinoctial elements so circular and equatorial
// orbits do not divide by zero.
func OsculatingFromCartesian(r, v CartesianVector) KeplerianElements {
	rm := r.Magnitude()
	a := 1 / (2/rm - v.Dot(v)/EarthMu)

	w := r.Cross(v).Unit()
	chi := w.X / (1 + w.Z)
	psi := -w.Y / (1 + w.Z)

	d := 1 + chi*chi + psi*psi
	fhat := CartesianVector{1 - chi*chi + psi*psi, 2 * chi * psi, -2 * chi}.Scale(1 / d)
	ghat := CartesianVector{2 * chi * psi, 1 + chi*chi - psi*psi, 2 * psi}.Scale(1 / d)

	evec := r.Scale(v.Dot(v) - EarthMu/rm).Sub(v.Scale(r.Dot(v))).Scale(1 / EarthMu)
	af, ag := evec.Dot(fhat), evec.Dot(ghat)

	// True longitude in the equinoctial frame, then Kepler's equation about the
	// longitude of periapsis.
	ecc := math.Hypot(af, ag)
	lp := math.Atan2(ag, af)
	nu := math.Atan2(r.Dot(ghat), r.Dot(fhat)) - lp
	E := math.Atan2(math.Sqrt(1-ecc*ecc)*math.Sin(nu), ecc+math.Cos(nu))
	lambda := E - ecc*math.Sin(E) + lp

	eq := EquinoctialElements{
		Af:            af,
		Ag:            ag,
		Chi:           chi,
		Psi:           psi,
		MeanLongitude: WrapDegrees360(lambda * RadToDeg),
		MeanMotion:    meanMotionFromSMA(a),
	}
	return eq.ToKeplerian(Osculating)
}
