package passes

import (
	"fmt"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/estimation"
	"github.com/star/orbitscreen/internal/transform"
)

// Simulate returns the noise-free observations sensor at site would take of sat
// every cadence inside windows. Only the components the sensor measures are
// recorded.
func Simulate(site *bodies.Observatory, sensor bodies.Sensor, sat *bodies.Satellite, windows []Window, cadence epoch.TimeSpan) ([]estimation.Observation, error) {
	if cadence.Seconds() <= 0 {
		return nil, fmt.Errorf("simulate: cadence must be positive, got %v s", cadence.Seconds())
	}

	var obs []estimation.Observation
	for _, w := range windows {
		for at := w.Rise; !at.After(w.Set); at = at.Add(cadence) {
			s, err := sat.StateAt(at)
			if err != nil {
				return nil, fmt.Errorf("simulate satellite %d: %w", sat.ID(), err)
			}
			ob := estimation.NewObservation(site, sensor, at, measured(sensor, transform.TEMEToTopocentric(site.StateAt(at), s)))
			ob.SatelliteID = sat.ID()
			obs = append(obs, ob)
		}
	}
	return obs, nil
}

func measured(sensor bodies.Sensor, full elements.TopocentricElements) elements.TopocentricElements {
	t := elements.NewTopocentricElements(full.RightAscension, full.Declination)
	if sensor.RangeNoise != nil {
		t = t.WithRange(full.Range)
	}
	if sensor.RangeRateNoise != nil {
		t = t.WithRangeRate(full.RangeRate)
	}
	if sensor.AngularRateNoise != nil {
		t = t.WithRightAscensionRate(full.RightAscensionRate).WithDeclinationRate(full.DeclinationRate)
	}
	return t
}
