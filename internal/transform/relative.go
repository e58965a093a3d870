package transform

import "github.com/star/orbitscreen/internal/elements"

// RelativeState describes one state relative to a reference state, decomposed in
// the reference's radial / in-track / cross-track (RIC) frame.
type RelativeState struct {
	Range         float64                  // km
	InTrackTime   float64                  // s, in-track offset over reference speed
	Position      elements.CartesianVector // km, (radial, in-track, cross-track)
	Velocity      elements.CartesianVector // km/s, RIC components
	Speed         float64                  // km/s, relative velocity magnitude
	Beta          float64                  // deg, angle between orbit normals
	Height        float64                  // km, |r_b| - |r_a|
	MomentumDelta float64                  // km^2/s, |h_b| - |h_a|
}

// Relative returns b relative to a. Both states must share a frame and epoch.
func Relative(a, b elements.CartesianState) RelativeState {
	ha := a.Position.Cross(a.Velocity)
	hb := b.Position.Cross(b.Velocity)

	rHat := a.Position.Unit()
	cHat := ha.Unit()
	iHat := cHat.Cross(rHat)

	dr := b.Position.Sub(a.Position)
	dv := b.Velocity.Sub(a.Velocity)

	pos := elements.CartesianVector{X: dr.Dot(rHat), Y: dr.Dot(iHat), Z: dr.Dot(cHat)}
	vel := elements.CartesianVector{X: dv.Dot(rHat), Y: dv.Dot(iHat), Z: dv.Dot(cHat)}

	var t float64
	if speed := a.Velocity.Magnitude(); speed > 0 {
		t = pos.Y / speed
	}

	return RelativeState{
		Range:         dr.Magnitude(),
		InTrackTime:   t,
		Position:      pos,
		Velocity:      vel,
		Speed:         dv.Magnitude(),
		Beta:          ha.Angle(hb),
		Height:        b.Position.Magnitude() - a.Position.Magnitude(),
		MomentumDelta: hb.Magnitude() - ha.Magnitude(),
	}
}
