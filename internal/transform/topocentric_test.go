package transform

import (
	"math"
	"testing"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
)

func TestNewObserverPosition_EFGMagnitude(t *testing.T) {
	// WGS-84 equatorial radius is 6378.137 km.
	obs := NewObserverPosition(0, 0, 0)
	if mag := obs.EFG.Magnitude(); math.Abs(mag-6378.137) > 1e-6 {
		t.Errorf("equatorial observer magnitude = %.6f km, want 6378.137 km", mag)
	}

	// North pole: polar radius ~6356.752 km.
	obs2 := NewObserverPosition(90, 0, 0)
	if mag := obs2.EFG.Magnitude(); math.Abs(mag-6356.7523) > 1e-3 {
		t.Errorf("polar observer magnitude = %.4f km, want ~6356.752 km", mag)
	}
}

func TestGeodeticRoundTrip(t *testing.T) {
	tests := []GeodeticPoint{
		{LatDeg: 30, LonDeg: -97.7, AltKm: 0.2},
		{LatDeg: -45.5, LonDeg: 170, AltKm: 400},
		{LatDeg: 0, LonDeg: 0, AltKm: 35786},
	}
	for _, tt := range tests {
		p := NewObserverPosition(tt.LatDeg, tt.LonDeg, tt.AltKm)
		got := EFGToGeodetic(p.EFG)
		if math.Abs(got.LatDeg-tt.LatDeg) > 1e-8 || math.Abs(got.LonDeg-tt.LonDeg) > 1e-8 || math.Abs(got.AltKm-tt.AltKm) > 1e-6 {
			t.Errorf("round trip %+v -> %+v", tt, got)
		}
	}
}

func TestLookAngles(t *testing.T) {
	obs := NewObserverPosition(0, 0, 0)

	t.Run("overhead", func(t *testing.T) {
		la := obs.LookAnglesTo(elements.CartesianVector{X: 6378.137 + 400})
		if math.Abs(la.ElevationDeg-90) > 1e-6 {
			t.Errorf("elevation = %.4f, want 90", la.ElevationDeg)
		}
		if math.Abs(la.RangeKm-400) > 1e-6 {
			t.Errorf("range = %.4f km, want 400", la.RangeKm)
		}
	})

	tests := []struct {
		name     string
		lat, lon float64
		az       float64
	}{
		{"north", 10, 0, 0},
		{"east", 0, 10, 90},
		{"south", -10, 0, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sat := NewObserverPosition(tt.lat, tt.lon, 400)
			la := obs.LookAnglesTo(sat.EFG)
			if d := math.Abs(elements.WrapDegrees180(la.AzimuthDeg - tt.az)); d > 1 {
				t.Errorf("azimuth = %.2f, want %.0f", la.AzimuthDeg, tt.az)
			}
		})
	}
}

func TestObserverStateAt(t *testing.T) {
	obs := NewObserverPosition(30, -97.7, 0.2)
	st := obs.StateAt(epoch.FromComponents(2025, 4, 15, 12, 0, 0, epoch.UTC))

	if st.Frame != elements.TEME {
		t.Fatalf("frame = %v", st.Frame)
	}
	if math.Abs(st.Position.Magnitude()-obs.EFG.Magnitude()) > 1e-9 {
		t.Error("rotation changed site radius")
	}
	want := elements.CartesianVector{Z: OmegaEarth}.Cross(st.Position)
	if d := st.Velocity.Sub(want).Magnitude(); d > 1e-12 {
		t.Errorf("site velocity = %+v, want ω × r = %+v", st.Velocity, want)
	}
}

func TestTEMEToTopocentric(t *testing.T) {
	site := elements.CartesianState{Position: elements.CartesianVector{X: 6378}}
	at := func(rho, rhoDot elements.CartesianVector) elements.TopocentricElements {
		sat := elements.CartesianState{Position: site.Position.Add(rho), Velocity: rhoDot}
		return TEMEToTopocentric(site, sat)
	}
	radPerSec := elements.RadToDeg

	tests := []struct {
		name        string
		rho, rhoDot elements.CartesianVector
		want        elements.TopocentricElements
	}{
		{
			name:   "crossing in right ascension",
			rho:    elements.CartesianVector{X: 1000},
			rhoDot: elements.CartesianVector{Y: 1},
			want:   elements.TopocentricElements{RightAscension: 0, Declination: 0, Range: 1000, RightAscensionRate: 1e-3 * radPerSec},
		},
		{
			name:   "climbing in declination",
			rho:    elements.CartesianVector{Y: 1000},
			rhoDot: elements.CartesianVector{Z: 1},
			want:   elements.TopocentricElements{RightAscension: 90, Declination: 0, Range: 1000, DeclinationRate: 1e-3 * radPerSec},
		},
		{
			name:   "receding",
			rho:    elements.CartesianVector{X: -500, Z: 500},
			rhoDot: elements.CartesianVector{X: -1, Z: 1},
			want:   elements.TopocentricElements{RightAscension: 180, Declination: 45, Range: 500 * math.Sqrt2, RangeRate: math.Sqrt2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := at(tt.rho, tt.rhoDot)
			checks := []struct {
				name      string
				got, want float64
			}{
				{"ra", got.RightAscension, tt.want.RightAscension},
				{"dec", got.Declination, tt.want.Declination},
				{"range", got.Range, tt.want.Range},
				{"range rate", got.RangeRate, tt.want.RangeRate},
				{"ra rate", got.RightAscensionRate, tt.want.RightAscensionRate},
				{"dec rate", got.DeclinationRate, tt.want.DeclinationRate},
			}
			for _, c := range checks {
				if math.Abs(c.got-c.want) > 1e-9 {
					t.Errorf("%s = %.12f, want %.12f", c.name, c.got, c.want)
				}
			}
			all := elements.HasRange | elements.HasRangeRate | elements.HasRightAscensionRate | elements.HasDeclinationRate
			if got.Components != all {
				t.Errorf("components = %b", got.Components)
			}
		})
	}
}

func TestRelative(t *testing.T) {
	a := elements.CartesianState{
		Position: elements.CartesianVector{X: 7000},
		Velocity: elements.CartesianVector{Y: 7.5},
	}
	b := elements.CartesianState{
		Position: elements.CartesianVector{X: 7001, Y: 2, Z: 3},
		Velocity: elements.CartesianVector{Y: 7.5, Z: 0.1},
	}
	rel := Relative(a, b)

	if d := rel.Position.Sub(elements.CartesianVector{X: 1, Y: 2, Z: 3}).Magnitude(); d > 1e-12 {
		t.Errorf("RIC position = %+v", rel.Position)
	}
	if d := rel.Velocity.Sub(elements.CartesianVector{Z: 0.1}).Magnitude(); d > 1e-12 {
		t.Errorf("RIC velocity = %+v", rel.Velocity)
	}
	if math.Abs(rel.Range-math.Sqrt(14)) > 1e-12 {
		t.Errorf("range = %v", rel.Range)
	}
	if math.Abs(rel.InTrackTime-2/7.5) > 1e-12 {
		t.Errorf("in-track time = %v", rel.InTrackTime)
	}
	if want := math.Sqrt(7001*7001+13) - 7000; math.Abs(rel.Height-want) > 1e-9 {
		t.Errorf("height = %v, want %v", rel.Height, want)
	}
	if rel.Beta <= 0 || rel.Beta > 1 {
		t.Errorf("beta = %v deg", rel.Beta)
	}
}
