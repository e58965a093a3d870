package estimation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/star/orbitscreen/internal/epoch"
)

// CovarianceType names the space a covariance is expressed in.
type CovarianceType int

const (
	CovarianceInertial CovarianceType = iota
	CovarianceRelative
	CovarianceEquinoctial
)

func (t CovarianceType) String() string {
	switch t {
	case CovarianceInertial:
		return "Inertial"
	case CovarianceRelative:
		return "Relative"
	case CovarianceEquinoctial:
		return "Equinoctial"
	}
	return fmt.Sprintf("CovarianceType(%d)", int(t))
}

// Covariance is a symmetric 6x6 matrix. For CovarianceRelative the order is
// radial, in-track, cross-track position (km) then velocity (km/s).
type Covariance struct {
	Type   CovarianceType
	Epoch  epoch.Epoch
	Matrix *mat.SymDense
}

// Sigmas returns the square roots of the diagonal.
func (c *Covariance) Sigmas() []float64 {
	n := c.Matrix.SymmetricDim()
	out := make([]float64, n)
	for i := range out {
		v := c.Matrix.At(i, i)
		if v > 0 {
			out[i] = math.Sqrt(v)
		}
	}
	return out
}
