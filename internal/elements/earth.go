package elements

import "math"

// Earth model used by SGP4 (WGS-72).
const (
	EarthRadius = 6378.135    // km
	EarthMu     = 398600.8    // km^3/s^2
	EarthJ2     = 0.001082616 // unitless
)

// BStarToBTerm converts SGP4 B* (1/earth radii) to the B-term ballistic coefficient (m^2/kg).
const BStarToBTerm = 12.741621

const (
	DegToRad = math.Pi / 180
	RadToDeg = 180 / math.Pi

	SecondsPerDay = 86400.0
	MinutesPerDay = 1440.0
)

// WrapDegrees360 maps an angle into [0, 360).
func WrapDegrees360(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// WrapDegrees180 maps an angle into (-180, 180].
func WrapDegrees180(deg float64) float64 {
	deg = WrapDegrees360(deg)
	if deg > 180 {
		deg -= 360
	}
	return deg
}
