package transform

import (
	"math"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378.137              // semi-major axis (km)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ObserverPosition holds a ground site's location in both geodetic and EFG frames.
// The EFG position is precomputed once so it can be reused across many lookups.
type ObserverPosition struct {
	LatRad, LonRad, AltKm float64
	EFG                   elements.CartesianVector // km
}

// LookAngles holds azimuth, elevation, and range from observer to satellite.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserverPosition creates an ObserverPosition from geodetic coordinates.
// Latitude and longitude are in degrees, altitude in km above the WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altKm float64) ObserverPosition {
	lat := latDeg * elements.DegToRad
	lon := lonDeg * elements.DegToRad

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		AltKm:  altKm,
		EFG:    GeodeticToEFG(lat, lon, altKm),
	}
}

// GeodeticToEFG converts geodetic latitude/longitude (radians) and altitude (km).
func GeodeticToEFG(lat, lon, altKm float64) elements.CartesianVector {
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return elements.CartesianVector{
		X: (N + altKm) * cosLat * math.Cos(lon),
		Y: (N + altKm) * cosLat * math.Sin(lon),
		Z: (N*(1-wgs84E2) + altKm) * sinLat,
	}
}

// StateAt returns the site's TEME state; its velocity is Earth rotation, ω × r.
func (o ObserverPosition) StateAt(e epoch.Epoch) elements.CartesianState {
	return EFGToTEME(elements.CartesianState{Epoch: e, Position: o.EFG, Frame: elements.EFG})
}

// GeodeticPoint holds a geodetic position (latitude/longitude in degrees, altitude in km).
type GeodeticPoint struct {
	LatDeg, LonDeg, AltKm float64
}

// EFGToGeodetic converts an Earth-fixed position (km) using the iterative Bowring method.
// Converges in 2-3 iterations for Earth orbits.
func EFGToGeodetic(p elements.CartesianVector) GeodeticPoint {
	lon := math.Atan2(p.Y, p.X)
	rho := math.Hypot(p.X, p.Y)

	lat := math.Atan2(p.Z, rho*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(p.Z+wgs84E2*N*sinLat, rho)
	}

	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = rho/cosLat - N
	} else {
		alt = math.Abs(p.Z)/math.Abs(sinLat) - N*(1-wgs84E2)
	}

	return GeodeticPoint{
		LatDeg: lat * elements.RadToDeg,
		LonDeg: lon * elements.RadToDeg,
		AltKm:  alt,
	}
}

// LookAnglesTo computes azimuth, elevation, and range from the observer to an
// Earth-fixed satellite position (km).
//
// Uses the SEZ (South-East-Zenith) topocentric rotation per Vallado Section 4.4.
func (o ObserverPosition) LookAnglesTo(sat elements.CartesianVector) LookAngles {
	r := sat.Sub(o.EFG)

	sinLat, cosLat := math.Sin(o.LatRad), math.Cos(o.LatRad)
	sinLon, cosLon := math.Sin(o.LonRad), math.Cos(o.LonRad)

	south := sinLat*cosLon*r.X + sinLat*sinLon*r.Y - cosLat*r.Z
	east := -sinLon*r.X + cosLon*r.Y
	zenith := cosLat*cosLon*r.X + cosLat*sinLon*r.Y + sinLat*r.Z

	rangeMag := math.Sqrt(south*south + east*east + zenith*zenith)

	// In SEZ, North = -South direction, so az = atan2(east, -south).
	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * elements.RadToDeg,
		ElevationDeg: math.Asin(zenith/rangeMag) * elements.RadToDeg,
		RangeKm:      rangeMag,
	}
}

// TEMEToTopocentric returns the topocentric right ascension/declination (deg),
// range (km), range rate (km/s) and angular rates (deg/s) of sat seen from site.
// Both states must be TEME at the same epoch. All components are marked present.
func TEMEToTopocentric(site, sat elements.CartesianState) elements.TopocentricElements {
	rho := sat.Position.Sub(site.Position)
	rhoDot := sat.Velocity.Sub(site.Velocity)

	rng := rho.Magnitude()
	rngRate := rho.Dot(rhoDot) / rng
	xy2 := rho.X*rho.X + rho.Y*rho.Y
	xy := math.Sqrt(xy2)

	ra := elements.WrapDegrees360(math.Atan2(rho.Y, rho.X) * elements.RadToDeg)
	dec := math.Asin(rho.Z/rng) * elements.RadToDeg

	var raRate, decRate float64
	if xy2 > 0 {
		raRate = (rho.X*rhoDot.Y - rho.Y*rhoDot.X) / xy2 * elements.RadToDeg
		decRate = (rhoDot.Z - rngRate*rho.Z/rng) / xy * elements.RadToDeg
	}

	return elements.NewTopocentricElements(ra, dec).
		WithRange(rng).
		WithRangeRate(rngRate).
		WithRightAscensionRate(raRate).
		WithDeclinationRate(decRate)
}
