package propagation

import (
	"errors"
	"fmt"
	"math"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/orbitscreen/internal/elements"
)

// Near-earth SGP4 evaluated directly from the float64 elements of a set.
//
// go-satellite can only be initialized from TLE text, which rounds angles to 1e-4
// degrees and mean motion to 1e-8 rev/day. Finite differences smaller than that
// vanish, so sets with a period under 225 minutes are run through this model
// instead. Deep-space sets still go through the library.

// deepSpacePeriod is the period (minutes) from which SGP4 switches to SDP4.
const deepSpacePeriod = 225.0

var errDeepSpace = errors.New("deep-space element set")

type gravityModel struct {
	radius, xke, j2, j3oj2, j4 float64
}

func gravityFor(g satellite.Gravity) gravityModel {
	var mu, re, j2, j3, j4 float64
	switch g {
	case satellite.GravityWGS84:
		mu, re = 398600.5, 6378.137
		j2, j3, j4 = 0.00108262998905, -0.00000253215306, -0.00000161098761
	case satellite.GravityWGS72Old:
		return gravityModel{radius: 6378.135, xke: 0.0743669161, j2: 0.001082616, j3oj2: -0.00000253881 / 0.001082616, j4: -0.00000165597}
	default:
		mu, re = 398600.8, 6378.135
		j2, j3, j4 = 0.001082616, -0.00000253881, -0.00000165597
	}
	return gravityModel{radius: re, xke: 60 / math.Sqrt(re*re*re/mu), j2: j2, j3oj2: j3 / j2, j4: j4}
}

// brouwerDelta is the un-Kozai correction for Kozai mean motion n (rad/min).
func (g gravityModel) brouwerDelta(n, ecc, cosio float64) float64 {
	omeosq := 1 - ecc*ecc
	ak := math.Pow(g.xke/n, 2.0/3.0)
	d1 := 0.75 * g.j2 * (3*cosio*cosio - 1) / (math.Sqrt(omeosq) * omeosq)
	del := d1 / (ak * ak)
	adel := ak * (1 - del*del - del*(1.0/3.0+134.0*del*del/81.0))
	return d1 / (adel * adel)
}

// kozai inverts the un-Kozai step: given Brouwer n it returns the Kozai n.
func (g gravityModel) kozai(n, ecc, cosio float64) float64 {
	nk := n
	for i := 0; i < 30; i++ {
		next := n * (1 + g.brouwerDelta(nk, ecc, cosio))
		if math.Abs(next-nk) < 1e-15*n {
			return next
		}
		nk = next
	}
	return nk
}

// nearEarth holds the SGP4 initialization for one element set. Angles are radians,
// times minutes, lengths earth radii.
type nearEarth struct {
	g gravityModel

	bstar, ecco, inclo, nodeo, argpo, mo, no float64

	cosio, sinio float64

	isimp bool

	con41, x1mth2, x7thm1 float64

	cc1, cc4, cc5, d2, d3, d4 float64

	delmo, eta, sinmao, omgcof, xmcof, nodecf float64

	mdot, argpdot, nodedot float64

	t2cof, t3cof, t4cof, t5cof, xlcof, aycof float64
}

// meanState is the secular part of the solution at some time since epoch.
type meanState struct {
	am, nm, em, inclm, nodem, argpm, mm float64
}

func newNearEarth(set ElementSet, g gravityModel) (*nearEarth, error) {
	k := set.State.Elements
	nKozai := k.MeanMotion(elements.MeanKozaiGP) * 2 * math.Pi / elements.MinutesPerDay
	if !(nKozai > 0) || math.IsInf(nKozai, 0) || k.Eccentricity < 0 || k.Eccentricity >= 1 {
		return nil, fmt.Errorf("n=%g rad/min e=%g: %w", nKozai, k.Eccentricity, ErrPropagationFailure)
	}

	m := &nearEarth{
		g:     g,
		bstar: set.Forces.BStar(),
		ecco:  k.Eccentricity,
		inclo: k.Inclination * elements.DegToRad,
		nodeo: k.RAAN * elements.DegToRad,
		argpo: k.ArgumentOfPerigee * elements.DegToRad,
		mo:    k.MeanAnomaly * elements.DegToRad,
	}

	const x2o3 = 2.0 / 3.0
	re := g.radius
	ss := 78/re + 1
	qzms2t := math.Pow((120-78)/re, 4)

	eccsq := m.ecco * m.ecco
	omeosq := 1 - eccsq
	rteosq := math.Sqrt(omeosq)
	m.cosio = math.Cos(m.inclo)
	m.sinio = math.Sin(m.inclo)
	cosio2 := m.cosio * m.cosio

	m.no = nKozai / (1 + g.brouwerDelta(nKozai, m.ecco, m.cosio))
	if 2*math.Pi/m.no >= deepSpacePeriod {
		return nil, errDeepSpace
	}

	ao := math.Pow(g.xke/m.no, x2o3)
	po := ao * omeosq
	posq := po * po
	rp := ao * (1 - m.ecco)
	con42 := 1 - 5*cosio2
	m.con41 = -con42 - cosio2 - cosio2

	m.isimp = rp < 220/re+1
	sfour := ss
	qzms24 := qzms2t
	if perige := (rp - 1) * re; perige < 156 {
		sfour = perige - 78
		if perige < 98 {
			sfour = 20
		}
		qzms24 = math.Pow((128-sfour)/re, 4)
		sfour = sfour/re + 1
	}

	pinvsq := 1 / posq
	tsi := 1 / (ao - sfour)
	m.eta = ao * m.ecco * tsi
	etasq := m.eta * m.eta
	eeta := m.ecco * m.eta
	psisq := math.Abs(1 - etasq)
	coef := qzms24 * math.Pow(tsi, 4)
	coef1 := coef / math.Pow(psisq, 3.5)
	cc2 := coef1 * m.no * (ao*(1+1.5*etasq+eeta*(4+etasq)) +
		0.375*g.j2*tsi/psisq*m.con41*(8+3*etasq*(8+etasq)))
	m.cc1 = m.bstar * cc2
	cc3 := 0.0
	if m.ecco > 1e-4 {
		cc3 = -2 * coef * tsi * g.j3oj2 * m.no * m.sinio / m.ecco
	}
	m.x1mth2 = 1 - cosio2
	m.cc4 = 2 * m.no * coef1 * ao * omeosq * (m.eta*(2+0.5*etasq) + m.ecco*(0.5+2*etasq) -
		g.j2*tsi/(ao*psisq)*(-3*m.con41*(1-2*eeta+etasq*(1.5-0.5*eeta))+
			0.75*m.x1mth2*(2*etasq-eeta*(1+etasq))*math.Cos(2*m.argpo)))
	m.cc5 = 2 * coef1 * ao * omeosq * (1 + 2.75*(etasq+eeta) + eeta*etasq)

	cosio4 := cosio2 * cosio2
	temp1 := 1.5 * g.j2 * pinvsq * m.no
	temp2 := 0.5 * temp1 * g.j2 * pinvsq
	temp3 := -0.46875 * g.j4 * pinvsq * pinvsq * m.no
	m.mdot = m.no + 0.5*temp1*rteosq*m.con41 + 0.0625*temp2*rteosq*(13-78*cosio2+137*cosio4)
	m.argpdot = -0.5*temp1*con42 + 0.0625*temp2*(7-114*cosio2+395*cosio4) + temp3*(3-36*cosio2+49*cosio4)
	xhdot1 := -temp1 * m.cosio
	m.nodedot = xhdot1 + (0.5*temp2*(4-19*cosio2)+2*temp3*(3-7*cosio2))*m.cosio

	m.omgcof = m.bstar * cc3 * math.Cos(m.argpo)
	if m.ecco > 1e-4 {
		m.xmcof = -x2o3 * coef * m.bstar / eeta
	}
	m.nodecf = 3.5 * omeosq * xhdot1 * m.cc1
	m.t2cof = 1.5 * m.cc1

	den := 1 + m.cosio
	if math.Abs(den) <= 1.5e-12 {
		den = 1.5e-12
	}
	m.xlcof = -0.25 * g.j3oj2 * m.sinio * (3 + 5*m.cosio) / den
	m.aycof = -0.5 * g.j3oj2 * m.sinio
	m.delmo = math.Pow(1+m.eta*math.Cos(m.mo), 3)
	m.sinmao = math.Sin(m.mo)
	m.x7thm1 = 7*cosio2 - 1

	if !m.isimp {
		cc1sq := m.cc1 * m.cc1
		m.d2 = 4 * ao * tsi * cc1sq
		temp := m.d2 * tsi * m.cc1 / 3
		m.d3 = (17*ao + sfour) * temp
		m.d4 = 0.5 * temp * ao * tsi * (221*ao + 31*sfour) * m.cc1
		m.t3cof = m.d2 + 2*cc1sq
		m.t4cof = 0.25 * (3*m.d3 + m.cc1*(12*m.d2+10*cc1sq))
		m.t5cof = 0.2 * (3*m.d4 + 12*m.cc1*m.d3 + 6*m.d2*m.d2 + 15*cc1sq*(2*m.d2+cc1sq))
	}
	return m, nil
}

// secular applies the secular gravity and drag terms t minutes after epoch.
func (m *nearEarth) secular(t float64) (meanState, error) {
	xmdf := m.mo + m.mdot*t
	argpdf := m.argpo + m.argpdot*t
	nodedf := m.nodeo + m.nodedot*t
	argpm, mm := argpdf, xmdf
	t2 := t * t
	nodem := nodedf + m.nodecf*t2
	tempa := 1 - m.cc1*t
	tempe := m.bstar * m.cc4 * t
	templ := m.t2cof * t2

	if !m.isimp {
		delomg := m.omgcof * t
		delm := m.xmcof * (math.Pow(1+m.eta*math.Cos(xmdf), 3) - m.delmo)
		temp := delomg + delm
		mm = xmdf + temp
		argpm = argpdf - temp
		t3 := t2 * t
		t4 := t3 * t
		tempa = tempa - m.d2*t2 - m.d3*t3 - m.d4*t4
		tempe = tempe + m.bstar*m.cc5*(math.Sin(mm)-m.sinmao)
		templ = templ + m.t3cof*t3 + t4*(m.t4cof+t*m.t5cof)
	}

	am := math.Pow(m.g.xke/m.no, 2.0/3.0) * tempa * tempa
	if !(am > 0) || math.IsInf(am, 0) {
		return meanState{}, fmt.Errorf("mean semi-major axis %g at %.1f min: %w", am, t, ErrPropagationFailure)
	}
	nm := m.g.xke / math.Pow(am, 1.5)
	em := m.ecco - tempe
	if em >= 1 || em < -0.001 {
		return meanState{}, fmt.Errorf("mean eccentricity %g at %.1f min: %w", em, t, ErrPropagationFailure)
	}
	if em < 1e-6 {
		em = 1e-6
	}

	mm += m.no * templ
	xlm := math.Mod(mm+argpm+nodem, 2*math.Pi)
	nodem = math.Mod(nodem, 2*math.Pi)
	argpm = math.Mod(argpm, 2*math.Pi)
	mm = math.Mod(xlm-argpm-nodem, 2*math.Pi)

	return meanState{am: am, nm: nm, em: em, inclm: m.inclo, nodem: nodem, argpm: argpm, mm: mm}, nil
}

// state returns TEME position (km) and velocity (km/s) t minutes after epoch.
func (m *nearEarth) state(t float64) (elements.CartesianVector, elements.CartesianVector, error) {
	var r, v elements.CartesianVector
	s, err := m.secular(t)
	if err != nil {
		return r, v, err
	}
	g := m.g
	am, ep, nodep, argpp := s.am, s.em, s.nodem, s.argpm

	axnl := ep * math.Cos(argpp)
	temp := 1 / (am * (1 - ep*ep))
	aynl := ep*math.Sin(argpp) + temp*m.aycof
	xl := s.mm + argpp + nodep + temp*m.xlcof*axnl

	// Kepler's equation in the equinoctial form, steps limited to 0.95 rad.
	u := math.Mod(xl-nodep, 2*math.Pi)
	eo1 := u
	tem5 := 9999.9
	var sineo1, coseo1 float64
	for ktr := 1; math.Abs(tem5) >= 1e-12 && ktr <= 10; ktr++ {
		sineo1, coseo1 = math.Sincos(eo1)
		tem5 = (u - aynl*coseo1 + axnl*sineo1 - eo1) / (1 - coseo1*axnl - sineo1*aynl)
		tem5 = math.Max(-0.95, math.Min(0.95, tem5))
		eo1 += tem5
	}

	ecose := axnl*coseo1 + aynl*sineo1
	esine := axnl*sineo1 - aynl*coseo1
	el2 := axnl*axnl + aynl*aynl
	pl := am * (1 - el2)
	if pl < 0 {
		return r, v, fmt.Errorf("semi-latus rectum %g at %.1f min: %w", pl, t, ErrPropagationFailure)
	}

	rl := am * (1 - ecose)
	rdotl := math.Sqrt(am) * esine / rl
	rvdotl := math.Sqrt(pl) / rl
	betal := math.Sqrt(1 - el2)
	temp = esine / (1 + betal)
	sinu := am / rl * (sineo1 - aynl - axnl*temp)
	cosu := am / rl * (coseo1 - axnl + aynl*temp)
	su := math.Atan2(sinu, cosu)
	sin2u := (cosu + cosu) * sinu
	cos2u := 1 - 2*sinu*sinu
	temp = 1 / pl
	temp1 := 0.5 * g.j2 * temp
	temp2 := temp1 * temp

	// Short-period corrections.
	mrt := rl*(1-1.5*temp2*betal*m.con41) + 0.5*temp1*m.x1mth2*cos2u
	if mrt < 1 {
		return r, v, fmt.Errorf("radius %.1f km at %.1f min: decayed: %w", mrt*g.radius, t, ErrPropagationFailure)
	}
	su -= 0.25 * temp2 * m.x7thm1 * sin2u
	xnode := nodep + 1.5*temp2*m.cosio*sin2u
	xinc := m.inclo + 1.5*temp2*m.cosio*m.sinio*cos2u
	mvt := rdotl - s.nm*temp1*m.x1mth2*sin2u/g.xke
	rvdot := rvdotl + s.nm*temp1*(m.x1mth2*cos2u+1.5*m.con41)/g.xke

	sinsu, cossu := math.Sincos(su)
	snod, cnod := math.Sincos(xnode)
	sini, cosi := math.Sincos(xinc)
	xmx := -snod * cosi
	xmy := cnod * cosi
	ux := elements.CartesianVector{X: xmx*sinsu + cnod*cossu, Y: xmy*sinsu + snod*cossu, Z: sini * sinsu}
	vx := elements.CartesianVector{X: xmx*cossu - cnod*sinsu, Y: xmy*cossu - snod*sinsu, Z: sini * cossu}

	vkmpersec := g.radius * g.xke / 60
	r = ux.Scale(mrt * g.radius)
	v = ux.Scale(mvt * vkmpersec).Add(vx.Scale(rvdot * vkmpersec))
	return r, v, nil
}

// meanElements returns the secular elements t minutes after epoch in the set's
// convention: the semi-major axis carries the Kozai mean motion like ElementSetFromTLE.
func (m *nearEarth) meanElements(t float64) (elements.KeplerianElements, error) {
	s, err := m.secular(t)
	if err != nil {
		return elements.KeplerianElements{}, err
	}
	incl := s.inclm * elements.RadToDeg
	nKozai := m.g.kozai(s.nm, s.em, math.Cos(s.inclm)) * elements.MinutesPerDay / (2 * math.Pi)
	return elements.KeplerianElements{
		SemiMajorAxis:     elements.SemiMajorAxisFromMeanMotion(nKozai, elements.MeanKozaiGP, s.em, incl),
		Eccentricity:      s.em,
		Inclination:       incl,
		RAAN:              elements.WrapDegrees360(s.nodem * elements.RadToDeg),
		ArgumentOfPerigee: elements.WrapDegrees360(s.argpm * elements.RadToDeg),
		MeanAnomaly:       elements.WrapDegrees360(s.mm * elements.RadToDeg),
	}, nil
}
