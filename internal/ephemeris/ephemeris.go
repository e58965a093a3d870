// Package ephemeris stores time-ordered state samples for one satellite, answers
// interpolated lookups and finds close approaches between two ephemerides.
package ephemeris

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/propagation"
	"github.com/star/orbitscreen/internal/transform"
)

var (
	// ErrOutOfOrder is returned when a sample precedes the last stored sample.
	ErrOutOfOrder = errors.New("ephemeris state out of order")

	// ErrOutsideRange is returned for lookups before the first or after the last sample.
	ErrOutsideRange = errors.New("epoch outside ephemeris range")
)

// Sample stores are process-wide resources keyed like propagator bindings.
var stores = propagation.NewRegistry[[]elements.CartesianState]()

// Count returns the number of live ephemerides.
func Count() int {
	return stores.Len()
}

// Ephemeris is a handle on one sample store. Close releases it exactly once.
type Ephemeris struct {
	satelliteID int
	key         propagation.Key
	released    atomic.Bool
}

// New starts an ephemeris at state. States are kept in TEME; other frames are converted.
func New(satelliteID int, state elements.CartesianState) (*Ephemeris, error) {
	s, err := toTEME(state)
	if err != nil {
		return nil, err
	}
	return &Ephemeris{
		satelliteID: satelliteID,
		key:         stores.Load([]elements.CartesianState{s}),
	}, nil
}

func toTEME(s elements.CartesianState) (elements.CartesianState, error) {
	if s.Frame == elements.TEME {
		return s, nil
	}
	return transform.ConvertFrame(s, elements.TEME)
}

// SatelliteID returns the owning satellite's id.
func (e *Ephemeris) SatelliteID() int { return e.satelliteID }

// Key returns the store's registry key.
func (e *Ephemeris) Key() propagation.Key { return e.key }

// AddState appends a sample. An epoch earlier than the last sample fails with
// ErrOutOfOrder; an equal epoch replaces the last sample.
func (e *Ephemeris) AddState(state elements.CartesianState) error {
	s, err := toTEME(state)
	if err != nil {
		return err
	}
	return stores.Update(e.key, func(samples []elements.CartesianState) ([]elements.CartesianState, error) {
		last := samples[len(samples)-1]
		switch last.Epoch.Compare(s.Epoch) {
		case 1:
			return nil, fmt.Errorf("satellite %d: %s after %s: %w", e.satelliteID, s.Epoch, last.Epoch, ErrOutOfOrder)
		case 0:
			out := make([]elements.CartesianState, len(samples))
			copy(out, samples)
			out[len(out)-1] = s
			return out, nil
		}
		return append(samples, s), nil
	})
}

func (e *Ephemeris) samples() ([]elements.CartesianState, error) {
	s, err := stores.Get(e.key)
	if err != nil {
		return nil, fmt.Errorf("ephemeris for satellite %d: %w", e.satelliteID, err)
	}
	return s, nil
}

// Len returns the number of samples, 0 once closed.
func (e *Ephemeris) Len() int {
	s, err := e.samples()
	if err != nil {
		return 0
	}
	return len(s)
}

// Range returns the first and last sample epochs.
func (e *Ephemeris) Range() (epoch.Epoch, epoch.Epoch, error) {
	s, err := e.samples()
	if err != nil {
		return epoch.Epoch{}, epoch.Epoch{}, err
	}
	return s[0].Epoch, s[len(s)-1].Epoch, nil
}

// StateAt returns the TEME state at at: an exact sample when one matches, otherwise
// the cubic Hermite interpolant of the neighbouring samples.
func (e *Ephemeris) StateAt(at epoch.Epoch) (elements.CartesianState, error) {
	s, err := e.samples()
	if err != nil {
		return elements.CartesianState{}, err
	}
	first, last := s[0].Epoch, s[len(s)-1].Epoch
	if at.Before(first) || at.After(last) {
		return elements.CartesianState{}, fmt.Errorf("satellite %d: %s not in [%s, %s]: %w",
			e.satelliteID, at, first, last, ErrOutsideRange)
	}

	// First sample strictly after at.
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid].Epoch.After(at) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == len(s) || s[lo-1].Epoch.Equal(at) {
		out := s[lo-1]
		out.Epoch = at
		return out, nil
	}

	a, b := s[lo-1], s[lo]
	h := b.Epoch.Sub(a.Epoch).Seconds()
	frac := at.Sub(a.Epoch).Seconds() / h
	pos, vel := elements.Hermite(a.Position, a.Velocity, b.Position, b.Velocity, h, frac)
	return elements.CartesianState{Epoch: at, Position: pos, Velocity: vel, Frame: elements.TEME}, nil
}

// Clone copies the samples into a new store under a new key.
func (e *Ephemeris) Clone() (*Ephemeris, error) {
	s, err := e.samples()
	if err != nil {
		return nil, err
	}
	cp := make([]elements.CartesianState, len(s))
	copy(cp, s)
	return &Ephemeris{satelliteID: e.satelliteID, key: stores.Load(cp)}, nil
}

// Close releases the store. Only the first call releases; later calls return nil.
func (e *Ephemeris) Close() error {
	if e == nil || !e.released.CompareAndSwap(false, true) {
		return nil
	}
	return stores.Release(e.key)
}

// StateSource produces states on demand, typically a propagator binding.
type StateSource interface {
	StateAt(epoch.Epoch) (elements.CartesianState, error)
}

// Generate samples src from start every step through end. The last sample is at end
// even when the span is not a whole number of steps. Any failed sample fails the
// whole ephemeris and nothing is returned.
func Generate(satelliteID int, src StateSource, start, end epoch.Epoch, step epoch.TimeSpan) (*Ephemeris, error) {
	if step.Seconds() <= 0 {
		return nil, fmt.Errorf("ephemeris step %v s must be positive", step.Seconds())
	}
	if end.Before(start) {
		return nil, fmt.Errorf("ephemeris end %s before start %s", end, start)
	}

	first, err := src.StateAt(start)
	if err != nil {
		return nil, err
	}
	eph, err := New(satelliteID, first)
	if err != nil {
		return nil, err
	}

	span := end.Sub(start).Seconds()
	n := int(math.Floor(span/step.Seconds() + 1e-9))
	for i := 1; i <= n+1; i++ {
		at := start.Add(step.Scale(float64(i)))
		if i > n {
			// Closing partial step.
			if end.Sub(start.Add(step.Scale(float64(n)))).Seconds() < 1e-3 {
				break
			}
			at = end
		}
		s, err := src.StateAt(at)
		if err == nil {
			err = eph.AddState(s)
		}
		if err != nil {
			eph.Close()
			return nil, err
		}
	}
	return eph, nil
}
