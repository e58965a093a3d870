package elements

// Components records which optional topocentric measurements are present.
type Components uint8

const (
	HasRange Components = 1 << iota
	HasRangeRate
	HasRightAscensionRate
	HasDeclinationRate
)

// TopocentricElements is an observed or predicted line of sight from a site.
// Angles are degrees, rates deg/s, range km and range rate km/s.
type TopocentricElements struct {
	RightAscension     float64
	Declination        float64
	Range              float64
	RangeRate          float64
	RightAscensionRate float64
	DeclinationRate    float64
	Components         Components
}

// NewTopocentricElements returns an angles-only measurement.
func NewTopocentricElements(ra, dec float64) TopocentricElements {
	return TopocentricElements{RightAscension: ra, Declination: dec}
}

func (t TopocentricElements) Has(c Components) bool { return t.Components&c != 0 }

func (t TopocentricElements) WithRange(r float64) TopocentricElements {
	t.Range = r
	t.Components |= HasRange
	return t
}

func (t TopocentricElements) WithRangeRate(rr float64) TopocentricElements {
	t.RangeRate = rr
	t.Components |= HasRangeRate
	return t
}

func (t TopocentricElements) WithRightAscensionRate(r float64) TopocentricElements {
	t.RightAscensionRate = r
	t.Components |= HasRightAscensionRate
	return t
}

func (t TopocentricElements) WithDeclinationRate(r float64) TopocentricElements {
	t.DeclinationRate = r
	t.Components |= HasDeclinationRate
	return t
}

// Direction is the unit line-of-sight vector implied by the angles.
func (t TopocentricElements) Direction() CartesianVector {
	return SphericalVector{Range: 1, RightAscension: t.RightAscension, Declination: t.Declination}.ToCartesian()
}
