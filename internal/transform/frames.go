// Package transform converts Cartesian states between the TEME, J2000, ECR and EFG
// frames, and computes observer-relative geometry.
//
// TEME <-> EFG is a rotation by GMST (Vallado Ch. 3) that ignores polar motion, so
// ECR is treated as EFG. TEME <-> J2000 applies the IAU-76 precession and IAU-80
// nutation with the approximate equation of the equinoxes that defines TEME.
package transform

import (
	"fmt"
	"math"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/nutation"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
)

var (
	xAxis = r3.Vec{X: 1}
	yAxis = r3.Vec{Y: 1}
	zAxis = r3.Vec{Z: 1}
)

const arcsec = math.Pi / (180 * 3600)

// TEMEToEFG rotates a TEME state into the Earth-fixed Greenwich frame.
//
// Position transform: r_EFG = R3(θ) * r_TEME
// Velocity transform: v_EFG = R3(θ) * v_TEME - ω × r_EFG
func TEMEToEFG(s elements.CartesianState) elements.CartesianState {
	return temeToEFGWithGMST(s, GMST(s.Epoch))
}

func temeToEFGWithGMST(s elements.CartesianState, gmst float64) elements.CartesianState {
	pos := fromSat(satellite.ECIToECEF(toSat(s.Position), gmst))
	vel := fromSat(satellite.ECIToECEF(toSat(s.Velocity), gmst))

	// ω × r = [-ω*y, ω*x, 0]
	vel.X += OmegaEarth * pos.Y
	vel.Y -= OmegaEarth * pos.X

	return elements.CartesianState{Epoch: s.Epoch, Position: pos, Velocity: vel, Frame: elements.EFG}
}

// EFGToTEME is the inverse of TEMEToEFG.
func EFGToTEME(s elements.CartesianState) elements.CartesianState {
	gmst := GMST(s.Epoch)
	vel := s.Velocity
	vel.X -= OmegaEarth * s.Position.Y
	vel.Y += OmegaEarth * s.Position.X

	return elements.CartesianState{
		Epoch:    s.Epoch,
		Position: fromSat(satellite.ECIToECEF(toSat(s.Position), -gmst)),
		Velocity: fromSat(satellite.ECIToECEF(toSat(vel), -gmst)),
		Frame:    elements.TEME,
	}
}

// frameAngles holds the precession and nutation angles (radians) at an epoch.
type frameAngles struct {
	zeta, theta, z   float64
	meanObliquity    float64
	trueObliquity    float64
	dpsi, equinoxEqn float64
}

func anglesAt(e epoch.Epoch) frameAngles {
	jde := e.ToSystem(epoch.TT).JulianDate()
	t := (jde - j2000) / 36525.0

	// IAU-76 precession.
	zeta := (2306.2181*t + 0.30188*t*t + 0.017998*t*t*t) * arcsec
	theta := (2004.3109*t - 0.42665*t*t - 0.041833*t*t*t) * arcsec
	z := (2306.2181*t + 1.09468*t*t + 0.018203*t*t*t) * arcsec

	dpsi, deps := nutation.Nutation(jde)
	eps := nutation.MeanObliquity(jde).Rad()

	return frameAngles{
		zeta:          zeta,
		theta:         theta,
		z:             z,
		meanObliquity: eps,
		trueObliquity: eps + deps.Rad(),
		dpsi:          dpsi.Rad(),
		equinoxEqn:    dpsi.Rad() * math.Cos(eps),
	}
}

// rot applies the frame rotation ROTk(alpha) about axis.
func rot(axis r3.Vec, alpha float64, v r3.Vec) r3.Vec {
	return r3.NewRotation(-alpha, axis).Rotate(v)
}

func temeToJ2000Vec(a frameAngles, v r3.Vec) r3.Vec {
	v = rot(zAxis, -a.equinoxEqn, v) // TEME -> TOD
	v = rot(xAxis, a.trueObliquity, v)
	v = rot(zAxis, a.dpsi, v)
	v = rot(xAxis, -a.meanObliquity, v) // TOD -> MOD
	v = rot(zAxis, a.z, v)
	v = rot(yAxis, -a.theta, v)
	return rot(zAxis, a.zeta, v) // MOD -> J2000
}

func j2000ToTEMEVec(a frameAngles, v r3.Vec) r3.Vec {
	v = rot(zAxis, -a.zeta, v)
	v = rot(yAxis, a.theta, v)
	v = rot(zAxis, -a.z, v)
	v = rot(xAxis, a.meanObliquity, v)
	v = rot(zAxis, -a.dpsi, v)
	v = rot(xAxis, -a.trueObliquity, v)
	return rot(zAxis, a.equinoxEqn, v)
}

// TEMEToJ2000 rotates a TEME state into J2000 mean equator and equinox.
func TEMEToJ2000(s elements.CartesianState) elements.CartesianState {
	a := anglesAt(s.Epoch)
	return elements.CartesianState{
		Epoch:    s.Epoch,
		Position: fromR3(temeToJ2000Vec(a, toR3(s.Position))),
		Velocity: fromR3(temeToJ2000Vec(a, toR3(s.Velocity))),
		Frame:    elements.J2000,
	}
}

// J2000ToTEME is the inverse of TEMEToJ2000.
func J2000ToTEME(s elements.CartesianState) elements.CartesianState {
	a := anglesAt(s.Epoch)
	return elements.CartesianState{
		Epoch:    s.Epoch,
		Position: fromR3(j2000ToTEMEVec(a, toR3(s.Position))),
		Velocity: fromR3(j2000ToTEMEVec(a, toR3(s.Velocity))),
		Frame:    elements.TEME,
	}
}

// ConvertFrame re-expresses s in frame to, composing through TEME.
func ConvertFrame(s elements.CartesianState, to elements.ReferenceFrame) (elements.CartesianState, error) {
	if s.Frame == to {
		return s, nil
	}

	var teme elements.CartesianState
	switch s.Frame {
	case elements.TEME:
		teme = s
	case elements.J2000:
		teme = J2000ToTEME(s)
	case elements.ECR, elements.EFG:
		teme = EFGToTEME(s)
	default:
		return s, fmt.Errorf("convert from %v: unsupported frame", s.Frame)
	}

	switch to {
	case elements.TEME:
		return teme, nil
	case elements.J2000:
		return TEMEToJ2000(teme), nil
	case elements.ECR:
		out := TEMEToEFG(teme)
		out.Frame = elements.ECR
		return out, nil
	case elements.EFG:
		return TEMEToEFG(teme), nil
	}
	return s, fmt.Errorf("convert to %v: unsupported frame", to)
}

func toSat(v elements.CartesianVector) satellite.Vector3 {
	return satellite.Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

func fromSat(v satellite.Vector3) elements.CartesianVector {
	return elements.CartesianVector{X: v.X, Y: v.Y, Z: v.Z}
}

func toR3(v elements.CartesianVector) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromR3(v r3.Vec) elements.CartesianVector {
	return elements.CartesianVector{X: v.X, Y: v.Y, Z: v.Z}
}
