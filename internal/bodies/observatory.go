package bodies

import (
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/transform"
)

// Sensor describes measurement noise. Angular noise is in degrees and always
// present; the optional terms are nil when the sensor does not measure them.
type Sensor struct {
	ID               int      `json:"id,omitempty" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	AngularNoise     float64  `json:"angular_noise_deg" yaml:"angular_noise_deg"`
	RangeNoise       *float64 `json:"range_noise_km,omitempty" yaml:"range_noise_km"`
	RangeRateNoise   *float64 `json:"range_rate_noise_kms,omitempty" yaml:"range_rate_noise_kms"`
	AngularRateNoise *float64 `json:"angular_rate_noise_degs,omitempty" yaml:"angular_rate_noise_degs"`
}

// NewSensor returns an angles-only sensor.
func NewSensor(name string, angularNoise float64) Sensor {
	return Sensor{Name: name, AngularNoise: angularNoise}
}

func (s Sensor) WithRangeNoise(km float64) Sensor {
	s.RangeNoise = &km
	return s
}

func (s Sensor) WithRangeRateNoise(kms float64) Sensor {
	s.RangeRateNoise = &kms
	return s
}

func (s Sensor) WithAngularRateNoise(degs float64) Sensor {
	s.AngularRateNoise = &degs
	return s
}

// Observatory is a ground site hosting sensors. Latitude and longitude are
// geodetic degrees, altitude is km above the WGS-84 ellipsoid.
type Observatory struct {
	SiteID    int      `json:"site_id,omitempty"`
	Name      string   `json:"name"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  float64  `json:"altitude_km"`
	Sensors   []Sensor `json:"sensors,omitempty"`
}

// NewObservatory creates a site with no sensors.
func NewObservatory(name string, lat, lon, alt float64) *Observatory {
	return &Observatory{
		Name:      name,
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
	}
}

func (o *Observatory) AddSensor(s Sensor) {
	o.Sensors = append(o.Sensors, s)
}

// Position returns the site's Earth-fixed position.
func (o *Observatory) Position() transform.ObserverPosition {
	return transform.NewObserverPosition(o.Latitude, o.Longitude, o.Altitude)
}

// StateAt returns the site's TEME state at e, moving with the Earth's rotation.
func (o *Observatory) StateAt(e epoch.Epoch) elements.CartesianState {
	return o.Position().StateAt(e)
}
