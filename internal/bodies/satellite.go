// Package bodies models the objects taking part in screening and orbit
// determination: satellites, constellations and ground observatories.
package bodies

import (
	"errors"
	"fmt"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/ephemeris"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/tle"
)

var (
	// ErrNoElements is returned by operations that need an orbit from a satellite
	// that has none yet.
	ErrNoElements = errors.New("satellite has no elements")

	// ErrNotFound is returned for ids that are not in a constellation.
	ErrNotFound = errors.New("satellite not found")
)

// Satellite pairs an identity with an orbit state, force properties and the
// propagator binding for them. The binding is replaced whenever the state or the
// forces change, and released by Close.
//
// Read-only methods are safe for concurrent use. Setters are not.
type Satellite struct {
	id             int
	name           string
	classification byte
	designator     string
	forces         propagation.ForceProperties
	state          *elements.KeplerianState
	binding        *propagation.Binding
}

// New returns a satellite with default force properties and no elements.
func New(id int) *Satellite {
	return &Satellite{
		id:             id,
		classification: 'U',
		forces:         propagation.DefaultForceProperties(),
	}
}

// FromElementSet builds and binds a satellite from a complete element set.
func FromElementSet(set propagation.ElementSet) (*Satellite, error) {
	b, err := propagation.Bind(set)
	if err != nil {
		return nil, err
	}
	state := set.State
	return &Satellite{
		id:             set.SatelliteID,
		name:           set.Name,
		classification: set.Classification,
		designator:     set.Designator,
		forces:         set.Forces,
		state:          &state,
		binding:        b,
	}, nil
}

// FromTLE builds a MeanKozaiGP satellite from a parsed TLE.
func FromTLE(e tle.Entry) (*Satellite, error) {
	return FromElementSet(propagation.ElementSetFromTLE(e))
}

func (s *Satellite) ID() int { return s.id }

func (s *Satellite) Name() string { return s.name }

func (s *Satellite) SetName(name string) { s.name = name }

// KeplerianState returns the current orbit state, if any.
func (s *Satellite) KeplerianState() (elements.KeplerianState, bool) {
	if s.state == nil {
		return elements.KeplerianState{}, false
	}
	return *s.state, true
}

// SetKeplerianState replaces the orbit state and rebinds. On failure the satellite
// keeps its previous state and binding.
func (s *Satellite) SetKeplerianState(state elements.KeplerianState) error {
	return s.rebind(state, s.forces)
}

// Forces returns the force properties.
func (s *Satellite) Forces() propagation.ForceProperties { return s.forces }

// SetForces replaces the force properties, rebinding when the satellite has an orbit.
func (s *Satellite) SetForces(f propagation.ForceProperties) error {
	if s.state == nil {
		s.forces = f
		return nil
	}
	return s.rebind(*s.state, f)
}

func (s *Satellite) rebind(state elements.KeplerianState, f propagation.ForceProperties) error {
	b, err := propagation.Bind(s.elementSet(state, f))
	if err != nil {
		return err
	}
	old := s.binding
	s.state, s.forces, s.binding = &state, f, b
	return old.Close()
}

func (s *Satellite) elementSet(state elements.KeplerianState, f propagation.ForceProperties) propagation.ElementSet {
	return propagation.ElementSet{
		SatelliteID:    s.id,
		Name:           s.name,
		Classification: s.classification,
		Designator:     s.designator,
		State:          state,
		Forces:         f,
	}
}

// Capabilities reports what the propagator bound to the satellite models.
func (s *Satellite) Capabilities() (propagation.Capabilities, error) {
	if s.binding == nil {
		return propagation.Capabilities{}, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return s.binding.Capabilities(), nil
}

// ElementSet returns the satellite's element set.
func (s *Satellite) ElementSet() (propagation.ElementSet, error) {
	if s.state == nil {
		return propagation.ElementSet{}, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return s.elementSet(*s.state, s.forces), nil
}

// TLE renders the satellite as a TLE. Only GP element types have one.
func (s *Satellite) TLE() (tle.Entry, error) {
	set, err := s.ElementSet()
	if err != nil {
		return tle.Entry{}, err
	}
	return set.TLE()
}

// Apoapsis returns the apoapsis radius (km), false without elements.
func (s *Satellite) Apoapsis() (float64, bool) {
	if s.state == nil {
		return 0, false
	}
	return s.state.Elements.Apoapsis(), true
}

// Periapsis returns the periapsis radius (km), false without elements.
func (s *Satellite) Periapsis() (float64, bool) {
	if s.state == nil {
		return 0, false
	}
	return s.state.Elements.Periapsis(), true
}

// StateAt returns the TEME state at e.
func (s *Satellite) StateAt(e epoch.Epoch) (elements.CartesianState, error) {
	if s.binding == nil {
		return elements.CartesianState{}, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return s.binding.StateAt(e)
}

// ElementsAt returns the orbit state advanced to e.
func (s *Satellite) ElementsAt(e epoch.Epoch) (elements.KeplerianState, error) {
	if s.binding == nil {
		return elements.KeplerianState{}, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return s.binding.ElementsAt(e)
}

// Ephemeris samples the satellite from start to end every step. It is all or
// nothing: a propagation failure at any sample returns no ephemeris.
func (s *Satellite) Ephemeris(start, end epoch.Epoch, step epoch.TimeSpan) (*ephemeris.Ephemeris, error) {
	if s.binding == nil {
		return nil, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return ephemeris.Generate(s.id, s.binding, start, end, step)
}

// EnvelopesOverlap reports whether the radial shells of a and b, widened by
// threshold (km), can intersect. Satellites without elements never overlap.
func EnvelopesOverlap(a, b *Satellite, threshold float64) bool {
	aApo, ok1 := a.Apoapsis()
	bApo, ok2 := b.Apoapsis()
	if !ok1 || !ok2 {
		return false
	}
	aPeri, _ := a.Periapsis()
	bPeri, _ := b.Periapsis()
	return aApo >= bPeri-threshold && bApo >= aPeri-threshold &&
		aPeri <= bApo+threshold && bPeri <= aApo+threshold
}

// CloseApproach screens s against other over [start, end]. Pairs whose envelopes
// cannot meet are rejected before any propagation. The bool is false when no
// approach closer than threshold (km) exists.
func (s *Satellite) CloseApproach(other *Satellite, start, end epoch.Epoch, threshold float64) (events.CloseApproach, bool, error) {
	if !EnvelopesOverlap(s, other, threshold) {
		return events.CloseApproach{}, false, nil
	}

	e1, err := s.Ephemeris(start, end, ephemeris.ConjunctionStep)
	if err != nil {
		return events.CloseApproach{}, false, err
	}
	defer e1.Close()

	e2, err := other.Ephemeris(start, end, ephemeris.ConjunctionStep)
	if err != nil {
		return events.CloseApproach{}, false, err
	}
	defer e2.Close()

	return e1.CloseApproach(e2, threshold)
}

// Clone returns a copy with its own binding.
func (s *Satellite) Clone() (*Satellite, error) {
	c := *s
	if s.binding != nil {
		b, err := s.binding.Clone()
		if err != nil {
			return nil, err
		}
		c.binding = b
	}
	if s.state != nil {
		st := *s.state
		c.state = &st
	}
	return &c, nil
}

// CloneAtEpoch returns a copy whose elements have been advanced to e. The copy
// follows the same trajectory; for GP sets its mean elements are re-derived at e.
func (s *Satellite) CloneAtEpoch(e epoch.Epoch) (*Satellite, error) {
	state, err := s.ElementsAt(e)
	if err != nil {
		return nil, err
	}
	return s.WithState(state, s.forces)
}

// WithState returns a new, separately bound satellite with the same identity.
func (s *Satellite) WithState(state elements.KeplerianState, f propagation.ForceProperties) (*Satellite, error) {
	return FromElementSet(s.elementSet(state, f))
}

// Equinoctial returns the equinoctial elements of the current state.
func (s *Satellite) Equinoctial() (elements.EquinoctialElements, error) {
	if s.state == nil {
		return elements.EquinoctialElements{}, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	return s.state.Equinoctial(), nil
}

// WithElements returns a new satellite at the same epoch, frame and type with the
// given equinoctial elements and forces.
func (s *Satellite) WithElements(eq elements.EquinoctialElements, f propagation.ForceProperties) (*Satellite, error) {
	if s.state == nil {
		return nil, fmt.Errorf("satellite %d: %w", s.id, ErrNoElements)
	}
	state := *s.state
	state.Elements = eq.ToKeplerian(state.Type)
	return s.WithState(state, f)
}

// WithDeltaX applies an additive update to the six equinoctial elements, followed
// by the drag coefficient when useDrag and the SRP coefficient (always last) when
// useSRP.
func (s *Satellite) WithDeltaX(dx []float64, useDrag, useSRP bool) (*Satellite, error) {
	n := elements.EquinoctialSize
	if useDrag {
		n++
	}
	if useSRP {
		n++
	}
	if len(dx) != n {
		return nil, fmt.Errorf("satellite %d: state update has %d elements, want %d", s.id, len(dx), n)
	}

	eq, err := s.Equinoctial()
	if err != nil {
		return nil, err
	}
	for i := 0; i < elements.EquinoctialSize; i++ {
		eq = eq.With(i, eq.Get(i)+dx[i])
	}

	f := s.forces
	if useDrag {
		f.DragCoefficient += dx[elements.EquinoctialSize]
	}
	if useSRP {
		f.SRPCoefficient += dx[len(dx)-1]
	}
	return s.WithElements(eq, f)
}

// Close releases the propagator binding. It is safe to call more than once.
func (s *Satellite) Close() error {
	if s == nil {
		return nil
	}
	return s.binding.Close()
}
