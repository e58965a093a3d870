package elements

import (
	"fmt"
	"strings"

	"github.com/star/orbitscreen/internal/epoch"
)

// ReferenceFrame is one of the four frames Cartesian states are expressed in.
type ReferenceFrame int

const (
	TEME ReferenceFrame = iota
	J2000
	ECR
	EFG
)

func (f ReferenceFrame) String() string {
	switch f {
	case TEME:
		return "TEME"
	case J2000:
		return "J2000"
	case ECR:
		return "ECR"
	case EFG:
		return "EFG"
	default:
		return fmt.Sprintf("ReferenceFrame(%d)", int(f))
	}
}

// ParseReferenceFrame maps a case-insensitive frame name.
func ParseReferenceFrame(s string) (ReferenceFrame, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TEME":
		return TEME, nil
	case "J2000":
		return J2000, nil
	case "ECR":
		return ECR, nil
	case "EFG":
		return EFG, nil
	}
	return TEME, fmt.Errorf("unknown reference frame %q", s)
}

// CartesianState is a position (km) and velocity (km/s) at an epoch.
type CartesianState struct {
	Epoch    epoch.Epoch
	Position CartesianVector
	Velocity CartesianVector
	Frame    ReferenceFrame
}

// IsFinite reports whether position and velocity are both finite.
func (s CartesianState) IsFinite() bool {
	return s.Position.IsFinite() && s.Velocity.IsFinite()
}

// KeplerianState is an element set tagged with an epoch, frame and element type.
// It is a value; updates produce a new KeplerianState.
type KeplerianState struct {
	Epoch    epoch.Epoch
	Elements KeplerianElements
	Frame    ReferenceFrame
	Type     KeplerianType
}

// Equinoctial returns the equinoctial form of the state's elements.
func (s KeplerianState) Equinoctial() EquinoctialElements {
	return s.Elements.ToEquinoctial(s.Type)
}

// MeanMotion returns the mean motion in rev/day for the state's element type.
func (s KeplerianState) MeanMotion() float64 {
	return s.Elements.MeanMotion(s.Type)
}

// WithEquinoctial returns a copy of the state whose elements come from eq.
func (s KeplerianState) WithEquinoctial(eq EquinoctialElements) KeplerianState {
	s.Elements = eq.ToKeplerian(s.Type)
	return s
}
