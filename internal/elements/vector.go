package elements

import "math"

// CartesianVector is a 3-vector; units depend on use (km, km/s).
type CartesianVector struct {
	X, Y, Z float64
}

func (v CartesianVector) Add(o CartesianVector) CartesianVector {
	return CartesianVector{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v CartesianVector) Sub(o CartesianVector) CartesianVector {
	return CartesianVector{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v CartesianVector) Scale(k float64) CartesianVector {
	return CartesianVector{v.X * k, v.Y * k, v.Z * k}
}

func (v CartesianVector) Dot(o CartesianVector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v CartesianVector) Cross(o CartesianVector) CartesianVector {
	return CartesianVector{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v CartesianVector) Magnitude() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns the direction of v, or the zero vector when v is zero.
func (v CartesianVector) Unit() CartesianVector {
	m := v.Magnitude()
	if m == 0 {
		return CartesianVector{}
	}
	return v.Scale(1 / m)
}

// Angle returns the angle between v and o in degrees.
func (v CartesianVector) Angle(o CartesianVector) float64 {
	d := v.Magnitude() * o.Magnitude()
	if d == 0 {
		return 0
	}
	c := math.Max(-1, math.Min(1, v.Dot(o)/d))
	return math.Acos(c) * RadToDeg
}

// IsFinite reports whether all components are finite numbers.
func (v CartesianVector) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Array returns the components as an array.
func (v CartesianVector) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// SphericalVector is a range and a pair of angles in degrees.
type SphericalVector struct {
	Range          float64
	RightAscension float64
	Declination    float64
}

// ToCartesian converts to a Cartesian vector in the same units as Range.
func (s SphericalVector) ToCartesian() CartesianVector {
	ra := s.RightAscension * DegToRad
	dec := s.Declination * DegToRad
	return CartesianVector{
		X: s.Range * math.Cos(dec) * math.Cos(ra),
		Y: s.Range * math.Cos(dec) * math.Sin(ra),
		Z: s.Range * math.Sin(dec),
	}
}

// SphericalFromCartesian converts a Cartesian vector. Right ascension is in [0, 360).
func SphericalFromCartesian(v CartesianVector) SphericalVector {
	r := v.Magnitude()
	if r == 0 {
		return SphericalVector{}
	}
	return SphericalVector{
		Range:          r,
		RightAscension: WrapDegrees360(math.Atan2(v.Y, v.X) * RadToDeg),
		Declination:    math.Asin(v.Z/r) * RadToDeg,
	}
}
