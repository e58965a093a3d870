package estimation

import (
	"gonum.org/v1/gonum/mat"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
)

// Finite-difference steps for af, ag, chi, psi, mean longitude (deg), mean motion
// (rev/day), drag and SRP.
var epsilons = [8]float64{1e-6, 1e-6, 1e-6, 1e-6, 1e-8, 1e-6, 1e-4, 1e-4}

// StateSize returns the number of estimated parameters.
func StateSize(useDrag, useSRP bool) int {
	n := elements.EquinoctialSize
	if useDrag {
		n++
	}
	if useSRP {
		n++
	}
	return n
}

// Jacobian returns d(predicted)/d(state) for one observation by one-sided
// differences. Rows follow the observation's measurement layout; columns are the
// six equinoctial elements, then drag and SRP when estimated.
func Jacobian(sat *bodies.Satellite, ob Observation, useDrag, useSRP bool) (*mat.Dense, error) {
	ref, err := ob.PredictedVector(sat)
	if err != nil {
		return nil, err
	}
	eq, err := sat.Equinoctial()
	if err != nil {
		return nil, err
	}
	state, _ := sat.KeplerianState()
	forces := sat.Forces()

	jac := mat.NewDense(len(ref), StateSize(useDrag, useSRP), nil)

	column := func(j int, eps float64, build func() (*bodies.Satellite, error)) error {
		p, err := build()
		if err != nil {
			return err
		}
		defer p.Close()

		h, err := ob.PredictedVector(p)
		if err != nil {
			return err
		}
		d := difference(h, ref)
		for i := range d {
			jac.Set(i, j, d[i]/eps)
		}
		return nil
	}

	for j := 0; j < elements.EquinoctialSize; j++ {
		eps := epsilons[j]
		err := column(j, eps, func() (*bodies.Satellite, error) {
			return sat.WithElements(eq.With(j, eq.Get(j)+eps), forces)
		})
		if err != nil {
			return nil, err
		}
	}

	col := elements.EquinoctialSize
	if useDrag {
		f := forces
		f.DragCoefficient += epsilons[6]
		if err := column(col, epsilons[6], func() (*bodies.Satellite, error) { return sat.WithState(state, f) }); err != nil {
			return nil, err
		}
		col++
	}
	if useSRP {
		f := forces
		f.SRPCoefficient += epsilons[7]
		if err := column(col, epsilons[7], func() (*bodies.Satellite, error) { return sat.WithState(state, f) }); err != nil {
			return nil, err
		}
	}
	return jac, nil
}
