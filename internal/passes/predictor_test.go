package passes

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

// Real ISS TLE (epoch Feb 2025, valid for testing pass geometry).
const (
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9996"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495057"
)

var (
	nyc   = bodies.NewObservatory("NYC", 40.7128, -74.006, 0.01)
	start = epoch.FromComponents(2025, 2, 14, 12, 0, 0, epoch.UTC)
)

func TestMain(m *testing.M) {
	if err := propagation.Init(propagation.Config{Gravity: "wgs72", Workers: 4}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testPool() *propagation.WorkerPool {
	return propagation.NewWorkerPool(4, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func iss(t testing.TB) *bodies.Satellite {
	t.Helper()
	e, err := tle.ParseLines("ISS (ZARYA)", issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	s, err := bodies.FromTLE(e)
	if err != nil {
		t.Fatalf("FromTLE: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPredictISS(t *testing.T) {
	req := Request{
		Site:        nyc,
		Satellites:  []*bodies.Satellite{iss(t)},
		Start:       start,
		Horizon:     epoch.FromHours(24),
		MaxWindows:  10,
		GroundTrack: true,
	}

	results := Predict(context.Background(), testPool(), req)
	if len(results) != 1 {
		t.Fatalf("expected 1 satellite result, got %d", len(results))
	}

	sat := results[0]
	if sat.SatelliteID != 25544 {
		t.Errorf("satellite ID = %d, want 25544", sat.SatelliteID)
	}
	if sat.Error != "" {
		t.Fatalf("unexpected error: %s", sat.Error)
	}

	// ISS in LEO should have multiple passes over 24h from NYC.
	if len(sat.Windows) == 0 {
		t.Fatal("expected at least 1 ISS window over NYC in 24h")
	}

	for i, w := range sat.Windows {
		if w.DurationSeconds < minWindowSec {
			t.Errorf("window %d: duration %.1fs too short", i, w.DurationSeconds)
		}
		if w.MaxElevation <= 0 || w.MaxElevation > 90 {
			t.Errorf("window %d: max elevation %.2f out of range", i, w.MaxElevation)
		}
		for _, az := range []float64{w.AzimuthAtMax, w.RiseAzimuth, w.SetAzimuth} {
			if az < 0 || az >= 360 {
				t.Errorf("window %d: azimuth %.2f out of range", i, az)
			}
		}
		if w.MaxElevationEpoch.Before(w.Rise) || w.Set.Before(w.MaxElevationEpoch) {
			t.Errorf("window %d: time ordering violated: rise=%v max=%v set=%v", i, w.Rise, w.MaxElevationEpoch, w.Set)
		}

		if len(w.GroundTrack) == 0 {
			t.Errorf("window %d: expected ground track points, got none", i)
		}
		for j, gt := range w.GroundTrack {
			if gt.Latitude < -90 || gt.Latitude > 90 {
				t.Errorf("window %d gt %d: latitude %.2f out of range", i, j, gt.Latitude)
			}
			if gt.Longitude < -180 || gt.Longitude > 180 {
				t.Errorf("window %d gt %d: longitude %.2f out of range", i, j, gt.Longitude)
			}
			if gt.Altitude < 100 || gt.Altitude > 1000 {
				t.Errorf("window %d gt %d: altitude %.0f km out of LEO range", i, j, gt.Altitude)
			}
			if gt.Elevation < 0 || gt.Elevation > 90 {
				t.Errorf("window %d gt %d: elevation %.2f out of range (0-90)", i, j, gt.Elevation)
			}
		}

		t.Logf("window %d: rise=%v maxEl=%.1f° az=%.1f° dur=%.0fs groundTrack=%d pts",
			i, w.Rise, w.MaxElevation, w.AzimuthAtMax, w.DurationSeconds, len(w.GroundTrack))
	}
}

func TestRiseSetAtHorizon(t *testing.T) {
	sat := iss(t)
	pos := nyc.Position()
	f := lookFrom(pos, sat, 10)

	end := start.Add(epoch.FromHours(24))
	results := Predict(context.Background(), testPool(), Request{
		Site:         nyc,
		Satellites:   []*bodies.Satellite{sat},
		Start:        start,
		Horizon:      epoch.FromHours(24),
		MinElevation: 10,
	})
	if len(results[0].Windows) == 0 {
		t.Fatal("no windows above 10 degrees")
	}
	for i, w := range results[0].Windows {
		for _, e := range []epoch.Epoch{w.Rise, w.Set} {
			if e.Equal(start) || e.Equal(end) {
				continue
			}
			el, _, err := f(e)
			if err != nil {
				t.Fatal(err)
			}
			// ~0.07 deg/s near the horizon for ISS; bisection stops at 10 ms.
			if math.Abs(el) > 0.01 {
				t.Errorf("window %d: elevation at crossing is %.4f from the mask", i, el)
			}
		}
		if w.MaxElevation < 10 {
			t.Errorf("window %d: max elevation %.2f below mask", i, w.MaxElevation)
		}
	}
}

func TestPredictMinElevationFilter(t *testing.T) {
	sat := iss(t)
	base := Request{
		Site:       nyc,
		Satellites: []*bodies.Satellite{sat},
		Start:      start,
		Horizon:    epoch.FromHours(48),
		MaxWindows: 20,
	}
	high := base
	high.MinElevation = 45

	nLow := len(Predict(context.Background(), testPool(), base)[0].Windows)
	nHigh := len(Predict(context.Background(), testPool(), high)[0].Windows)

	if nLow == 0 {
		t.Fatal("expected windows with min_elevation=0")
	}
	if nHigh >= nLow {
		t.Errorf("min_elevation=45 windows (%d) should be fewer than min_elevation=0 windows (%d)", nHigh, nLow)
	}
}

func TestPredictCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Site:       nyc,
		Satellites: []*bodies.Satellite{iss(t)},
		Start:      start,
		Horizon:    epoch.FromHours(24),
	}

	// Should not panic and should return quickly.
	results := Predict(ctx, testPool(), req)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Error == "" {
		t.Error("cancelled prediction should report an error")
	}
}

func TestPredictUnboundSatellite(t *testing.T) {
	bad := bodies.New(99999)
	req := Request{
		Site:       nyc,
		Satellites: []*bodies.Satellite{iss(t), bad},
		Start:      start,
		Horizon:    epoch.FromHours(24),
	}

	results := Predict(context.Background(), testPool(), req)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Errorf("ISS should succeed, got error: %s", results[0].Error)
	}
	if results[1].Error == "" {
		t.Error("satellite without elements should report error")
	}
}

// haversineKm computes the great-circle distance (km) between two geodetic points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// maxGroundDistKm returns the maximum great-circle distance (km) between observer and
// sub-satellite point, given observed elevation (degrees) and satellite altitude (km).
// Uses the geometry: ρ = acos(R·cos(ε)/(R+h)) − ε.
func maxGroundDistKm(elevDeg, altKm float64) float64 {
	const R = 6371.0
	elevRad := elevDeg * math.Pi / 180
	arg := math.Min(1, R*math.Cos(elevRad)/(R+altKm))
	return R * math.Max(0, math.Acos(arg)-elevRad)
}

// TestGroundTrackPhysicalConsistency verifies that each ground-track point's
// geodetic lat/lon is physically consistent with its reported elevation angle.
func TestGroundTrackPhysicalConsistency(t *testing.T) {
	site := bodies.NewObservatory("Parrish FL", 27.5867, -82.4251, 0)
	results := Predict(context.Background(), testPool(), Request{
		Site:        site,
		Satellites:  []*bodies.Satellite{iss(t)},
		Start:       epoch.FromComponents(2025, 2, 14, 0, 0, 0, epoch.UTC),
		Horizon:     epoch.FromHours(24),
		MaxWindows:  20,
		GroundTrack: true,
	})
	sat := results[0]
	if sat.Error != "" {
		t.Fatalf("satellite error: %s", sat.Error)
	}
	if len(sat.Windows) == 0 {
		t.Fatal("no windows over Parrish FL in 24h")
	}

	for wi, w := range sat.Windows {
		for gi, gt := range w.GroundTrack {
			dist := haversineKm(site.Latitude, site.Longitude, gt.Latitude, gt.Longitude)
			maxPossible := maxGroundDistKm(gt.Elevation, gt.Altitude)
			// Allow 50% slack for the spherical approximation.
			if maxPossible > 0 && dist > maxPossible*1.5 {
				t.Errorf("window %d gt[%d]: dist %.0fkm exceeds max physical %.0fkm (el=%.1f° alt=%.0fkm)",
					wi, gi, dist, maxPossible, gt.Elevation, gt.Altitude)
			}
		}
	}
}

func TestSimulate(t *testing.T) {
	sat := iss(t)
	results := Predict(context.Background(), testPool(), Request{
		Site:       nyc,
		Satellites: []*bodies.Satellite{sat},
		Start:      start,
		Horizon:    epoch.FromHours(24),
		MaxWindows: 1,
	})
	windows := results[0].Windows
	if len(windows) != 1 {
		t.Fatalf("got %d windows, want 1", len(windows))
	}

	radar := bodies.NewSensor("radar", 0.01).WithRangeNoise(0.05)
	obs, err := Simulate(nyc, radar, sat, windows, epoch.FromSeconds(30))
	if err != nil {
		t.Fatal(err)
	}
	want := int(windows[0].DurationSeconds/30) + 1
	if len(obs) != want {
		t.Errorf("got %d observations, want %d", len(obs), want)
	}
	for i, ob := range obs {
		if ob.SatelliteID != 25544 {
			t.Errorf("obs %d: satellite %d", i, ob.SatelliteID)
		}
		if ob.Len() != 3 {
			t.Errorf("obs %d: measurement length %d, want 3", i, ob.Len())
		}
		// Noise-free observations match the prediction exactly.
		meas, _ := ob.MeasurementAndWeights()
		pred, err := ob.PredictedVector(sat)
		if err != nil {
			t.Fatal(err)
		}
		for k := range meas {
			if math.Abs(meas[k]-pred[k]) > 1e-9 {
				t.Errorf("obs %d component %d: %v vs %v", i, k, meas[k], pred[k])
			}
		}
	}

	if _, err := Simulate(nyc, radar, sat, windows, epoch.TimeSpan{}); err == nil {
		t.Error("zero cadence accepted")
	}
}

func BenchmarkPredict100Sats24h(b *testing.B) {
	sats := make([]*bodies.Satellite, 100)
	for i := range sats {
		sats[i] = iss(b)
	}
	req := Request{
		Site:         nyc,
		Satellites:   sats,
		Start:        start,
		Horizon:      epoch.FromHours(24),
		MinElevation: 10,
		MaxWindows:   10,
	}
	pool := testPool()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Predict(context.Background(), pool, req)
	}
}
