// Package propagation binds element sets to propagation engines and runs
// data-parallel work over them.
//
// Every Binding owns one key in a process-wide registry. Keys are released exactly
// once by Close; Clone acquires a new key rather than sharing the original's.
package propagation

import (
	"fmt"
	"sync/atomic"

	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
)

// engine produces states for one element set. Implementations are immutable and
// safe for concurrent use.
type engine interface {
	stateAt(e epoch.Epoch) (elements.CartesianState, error)
	elementsAt(e epoch.Epoch) (elements.KeplerianState, error)
	capabilities() Capabilities
}

// Capabilities describes which inputs of an element set an engine responds to.
type Capabilities struct {
	Drag bool // states depend on ForceProperties.DragTerm
	SRP  bool // states depend on ForceProperties.SRPTerm

	// Differentiable is false when the elements reach the model through TLE text,
	// so changes below the printed precision are lost.
	Differentiable bool
}

var engines = NewRegistry[engine]()

// Loaded returns the number of live bindings in the process.
func Loaded() int {
	return engines.Len()
}

// Binding is an element set loaded into an engine under its own key.
type Binding struct {
	key      Key
	set      ElementSet
	caps     Capabilities
	released atomic.Bool
}

// Bind loads set into the engine for its element type. MeanKozaiGP and
// MeanBrouwerGP use SGP4, Osculating uses two-body motion; MeanBrouwerXP has no
// engine and fails with ErrInvalidElementType. Only near-earth GP sets are
// Differentiable, and no engine models SRP.
func Bind(set ElementSet) (*Binding, error) {
	if !Initialized() {
		return nil, fmt.Errorf("bind satellite %d: propagation not initialized: %w", set.SatelliteID, ErrResourceBinding)
	}

	var (
		eng engine
		err error
	)
	switch set.State.Type {
	case elements.MeanKozaiGP, elements.MeanBrouwerGP:
		eng, err = newSGP4Engine(set, gravity)
	case elements.Osculating:
		eng, err = newTwoBodyEngine(set)
	default:
		return nil, fmt.Errorf("bind satellite %d: %v: %w", set.SatelliteID, set.State.Type, ErrInvalidElementType)
	}
	if err != nil {
		return nil, fmt.Errorf("bind satellite %d: %w", set.SatelliteID, err)
	}

	return &Binding{key: engines.Load(eng), set: set, caps: eng.capabilities()}, nil
}

// Capabilities reports what the bound engine models.
func (b *Binding) Capabilities() Capabilities { return b.caps }

// Key returns the registry key.
func (b *Binding) Key() Key { return b.key }

// ElementSet returns the bound element set.
func (b *Binding) ElementSet() ElementSet { return b.set }

// StateAt returns the TEME Cartesian state at e.
func (b *Binding) StateAt(e epoch.Epoch) (elements.CartesianState, error) {
	eng, err := engines.Get(b.key)
	if err != nil {
		return elements.CartesianState{}, fmt.Errorf("satellite %d: %w", b.set.SatelliteID, err)
	}
	return eng.stateAt(e)
}

// ElementsAt returns the bound element type advanced to e.
func (b *Binding) ElementsAt(e epoch.Epoch) (elements.KeplerianState, error) {
	eng, err := engines.Get(b.key)
	if err != nil {
		return elements.KeplerianState{}, fmt.Errorf("satellite %d: %w", b.set.SatelliteID, err)
	}
	return eng.elementsAt(e)
}

// Clone binds the same element set under a new key.
func (b *Binding) Clone() (*Binding, error) {
	if b.released.Load() {
		return nil, fmt.Errorf("clone satellite %d: key %d released: %w", b.set.SatelliteID, b.key, ErrResourceBinding)
	}
	return Bind(b.set)
}

// Close releases the key. Only the first call releases; later calls return nil.
func (b *Binding) Close() error {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return nil
	}
	return engines.Release(b.key)
}
