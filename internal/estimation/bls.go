package estimation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/star/orbitscreen/internal/bodies"
	"github.com/star/orbitscreen/internal/elements"
	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/metrics"
	"github.com/star/orbitscreen/internal/propagation"
)

const (
	// DefaultMaxIterations caps Solve.
	DefaultMaxIterations = 20

	// DefaultSRPCoefficient and DefaultDragCoefficient seed estimated terms that
	// start at zero.
	DefaultSRPCoefficient  = 0.03
	DefaultDragCoefficient = 0.01

	convergenceTolerance = 1e-3 // change in weighted RMS
)

var (
	// ErrNoObservations is returned by Solve without observations.
	ErrNoObservations = errors.New("no observations")

	// ErrSingularSystem marks an iteration whose normal equations could not be
	// solved. It is logged; the iteration applies no update and cannot converge.
	ErrSingularSystem = errors.New("normal equations are singular")
)

// BatchLeastSquares fits an orbit to a set of observations. Changing the a priori,
// the observations, the estimated terms or the output type resets the fit.
//
// A BatchLeastSquares owns its satellites; Close releases them.
type BatchLeastSquares struct {
	obs           []Observation
	apriori       *bodies.Satellite
	useDrag       bool
	useSRP        bool
	maxIterations int
	outputType    elements.KeplerianType

	estimate    *bodies.Satellite
	deltaX      []float64
	iterations  int
	weightedRMS float64
	hasRMS      bool
	applied     bool // the last iteration updated the estimate
	converged   bool
	runID       uuid.UUID

	logger *slog.Logger
}

// NewBatchLeastSquares starts a fit from a clone of apriori. The output element
// type defaults to the a priori's.
func NewBatchLeastSquares(obs []Observation, apriori *bodies.Satellite, logger *slog.Logger) (*BatchLeastSquares, error) {
	state, ok := apriori.KeplerianState()
	if !ok {
		return nil, fmt.Errorf("a priori satellite %d: %w", apriori.ID(), bodies.ErrNoElements)
	}
	ap, err := apriori.Clone()
	if err != nil {
		return nil, err
	}
	b := &BatchLeastSquares{
		obs:           obs,
		apriori:       ap,
		maxIterations: DefaultMaxIterations,
		outputType:    state.Type,
		logger:        logger.With("component", "bls", "satellite_id", apriori.ID()),
	}
	if err := b.reset(); err != nil {
		ap.Close()
		return nil, err
	}
	return b, nil
}

// reset rebuilds the working estimate from the a priori and clears the iteration
// state.
func (b *BatchLeastSquares) reset() error {
	b.iterations = 0
	b.converged = false
	b.deltaX = nil
	b.hasRMS = false
	b.applied = false
	b.weightedRMS = 0

	f := b.apriori.Forces()
	if b.useSRP && f.SRPCoefficient == 0 {
		f.SRPCoefficient = DefaultSRPCoefficient
		f.SRPArea = 1
	}
	if b.useDrag && f.DragCoefficient == 0 {
		f.DragCoefficient = DefaultDragCoefficient
	}

	state, _ := b.apriori.KeplerianState()
	state.Type = b.outputType

	est := bodies.New(b.apriori.ID())
	est.SetName(b.apriori.Name())
	if err := est.SetForces(f); err != nil {
		return err
	}
	if err := est.SetKeplerianState(state); err != nil {
		return err
	}

	if b.useSRP && !b.outputType.HasSRP() {
		b.useSRP = false
	}

	old := b.estimate
	b.estimate = est
	return old.Close()
}

// SetAPriori replaces the a priori with a clone of sat and resets.
func (b *BatchLeastSquares) SetAPriori(sat *bodies.Satellite) error {
	if _, ok := sat.KeplerianState(); !ok {
		return fmt.Errorf("a priori satellite %d: %w", sat.ID(), bodies.ErrNoElements)
	}
	ap, err := sat.Clone()
	if err != nil {
		return err
	}
	old := b.apriori
	b.apriori = ap
	old.Close()
	return b.reset()
}

// SetObservations replaces the observations and resets.
func (b *BatchLeastSquares) SetObservations(obs []Observation) error {
	b.obs = obs
	return b.reset()
}

func (b *BatchLeastSquares) Observations() []Observation { return b.obs }

// SetEstimateDrag toggles estimation of the drag coefficient and resets. Turning
// it on fails with ErrInvalidElementType, leaving the setting unchanged, when the
// estimate's propagator has no drag term.
func (b *BatchLeastSquares) SetEstimateDrag(on bool) error {
	if on {
		if err := b.supports("drag", func(c propagation.Capabilities) bool { return c.Drag }); err != nil {
			return err
		}
	}
	b.useDrag = on
	return b.reset()
}

func (b *BatchLeastSquares) EstimateDrag() bool { return b.useDrag }

// SetEstimateSRP toggles estimation of the SRP coefficient and resets. It is
// switched back off for output types without an SRP term, and fails with
// ErrInvalidElementType for types that have one but whose propagator ignores it.
func (b *BatchLeastSquares) SetEstimateSRP(on bool) error {
	if on && b.outputType.HasSRP() {
		if err := b.supports("SRP", func(c propagation.Capabilities) bool { return c.SRP }); err != nil {
			return err
		}
	}
	b.useSRP = on
	return b.reset()
}

// supports checks a capability of the propagator the estimate is bound to.
func (b *BatchLeastSquares) supports(term string, has func(propagation.Capabilities) bool) error {
	caps, err := b.estimate.Capabilities()
	if err != nil {
		return err
	}
	if !has(caps) {
		return fmt.Errorf("estimate %s for %v elements: propagator has no %s term: %w",
			term, b.outputType, term, propagation.ErrInvalidElementType)
	}
	return nil
}

// checkModel verifies that every estimated parameter changes the predictions.
func (b *BatchLeastSquares) checkModel() error {
	caps, err := b.estimate.Capabilities()
	if err != nil {
		return err
	}
	if !caps.Differentiable {
		return fmt.Errorf("%v elements of satellite %d are propagated from TLE text and cannot be differentiated: %w",
			b.outputType, b.apriori.ID(), propagation.ErrInvalidElementType)
	}
	if b.useDrag && !caps.Drag {
		return b.supports("drag", func(c propagation.Capabilities) bool { return c.Drag })
	}
	if b.useSRP && !caps.SRP {
		return b.supports("SRP", func(c propagation.Capabilities) bool { return c.SRP })
	}
	return nil
}

func (b *BatchLeastSquares) EstimateSRP() bool { return b.useSRP }

// SetOutputType changes the element type of the estimate and resets.
func (b *BatchLeastSquares) SetOutputType(t elements.KeplerianType) error {
	b.outputType = t
	return b.reset()
}

func (b *BatchLeastSquares) OutputType() elements.KeplerianType { return b.outputType }

func (b *BatchLeastSquares) SetMaxIterations(n int) { b.maxIterations = n }

func (b *BatchLeastSquares) MaxIterations() int { return b.maxIterations }

func (b *BatchLeastSquares) Iterations() int { return b.iterations }

func (b *BatchLeastSquares) Converged() bool { return b.converged }

// RunID identifies the most recent Solve.
func (b *BatchLeastSquares) RunID() uuid.UUID { return b.runID }

// Estimate returns a clone of the current estimate, owned by the caller.
func (b *BatchLeastSquares) Estimate() (*bodies.Satellite, error) {
	return b.estimate.Clone()
}

// DeltaX returns the last state update, nil before the first iteration or after
// a singular one.
func (b *BatchLeastSquares) DeltaX() []float64 { return b.deltaX }

// WeightedRMS returns sqrt(r'Wr/m) from the last iteration.
func (b *BatchLeastSquares) WeightedRMS() (float64, bool) {
	return b.weightedRMS, b.hasRMS
}

// Solve moves the estimate to the latest observation epoch and iterates until the
// weighted RMS settles or MaxIterations is reached. Not converging is not an
// error; a propagation failure of the estimate is, and so is an estimate whose
// propagator cannot respond to every estimated parameter (ErrInvalidElementType).
func (b *BatchLeastSquares) Solve(ctx context.Context) error {
	if len(b.obs) == 0 {
		return ErrNoObservations
	}
	if err := b.checkModel(); err != nil {
		return err
	}
	b.iterations = 0
	b.converged = false
	b.deltaX = nil
	b.hasRMS = false
	b.applied = false
	b.runID = uuid.New()
	logger := b.logger.With("run_id", b.runID)

	last := b.obs[0].Epoch
	for _, ob := range b.obs[1:] {
		if ob.Epoch.After(last) {
			last = ob.Epoch
		}
	}
	est, err := b.estimate.CloneAtEpoch(last)
	if err != nil {
		return fmt.Errorf("move estimate to %s: %w", last, err)
	}
	b.estimate.Close()
	b.estimate = est

	start := time.Now()
	defer func() {
		metrics.RecordSolve(b.iterations, b.converged)
	}()

	for i := 0; i < b.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.iterate(); err != nil {
			logger.Warn("iteration failed", "iteration", b.iterations, "error", err)
			return err
		}
		logger.Debug("iteration complete",
			"iteration", b.iterations,
			"weighted_rms", b.weightedRMS,
			"converged", b.converged,
		)
		if b.converged {
			break
		}
	}

	logger.Info("solve complete",
		"iterations", b.iterations,
		"converged", b.converged,
		"weighted_rms", b.weightedRMS,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// iterate solves (H'WH) dx = H'Wr and applies dx to the estimate. Convergence is
// declared only when this iteration and the previous one both produced an update
// and the weighted RMS between them changed by less than the tolerance.
func (b *BatchLeastSquares) iterate() error {
	b.iterations++

	var r, w []float64
	var rows []*mat.Dense
	for _, ob := range b.obs {
		y, wt := ob.MeasurementAndWeights()
		yhat, err := ob.PredictedVector(b.estimate)
		if err != nil {
			return err
		}
		h, err := Jacobian(b.estimate, ob, b.useDrag, b.useSRP)
		if err != nil {
			return err
		}
		r = append(r, difference(y, yhat)...)
		w = append(w, wt...)
		rows = append(rows, h)
	}

	m, n := len(r), StateSize(b.useDrag, b.useSRP)
	H := mat.NewDense(m, n, nil)
	row := 0
	for _, h := range rows {
		hr, _ := h.Dims()
		H.Slice(row, row+hr, 0, n).(*mat.Dense).Copy(h)
		row += hr
	}

	// WH scales each row of H by its weight.
	var WH mat.Dense
	WH.Apply(func(i, _ int, v float64) float64 { return w[i] * v }, H)

	var N mat.Dense
	N.Mul(H.T(), &WH)
	var rhs mat.VecDense
	rhs.MulVec(WH.T(), mat.NewVecDense(m, r))

	wr := make([]float64, m)
	floats.MulTo(wr, w, r)
	rms := math.Sqrt(floats.Dot(wr, r) / float64(m))
	prev, settled := b.weightedRMS, b.hasRMS && b.applied
	b.weightedRMS, b.hasRMS = rms, true

	dx, err := solveNormal(&N, &rhs)
	if err != nil {
		b.logger.Warn("no state update", "iteration", b.iterations, "error", err)
		b.deltaX = nil
		b.applied = false
		return nil
	}
	if settled && math.Abs(rms-prev) < convergenceTolerance {
		b.converged = true
	}
	b.deltaX = dx
	b.applied = true

	next, err := b.estimate.WithDeltaX(dx, b.useDrag, b.useSRP)
	if err != nil {
		return fmt.Errorf("apply state update: %w", err)
	}
	b.estimate.Close()
	b.estimate = next
	return nil
}

// solveNormal solves N x = rhs by LU decomposition. An exactly singular or
// non-finite result is ErrSingularSystem.
func solveNormal(N *mat.Dense, rhs *mat.VecDense) ([]float64, error) {
	var lu mat.LU
	lu.Factorize(N)

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, rhs); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
		}
	}
	dx := x.RawVector().Data
	for _, v := range dx {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrSingularSystem
		}
	}
	return append([]float64(nil), dx...), nil
}

// Residuals returns each observation's residual against the current estimate.
func (b *BatchLeastSquares) Residuals() ([]Residual, error) {
	out := make([]Residual, 0, len(b.obs))
	for _, ob := range b.obs {
		r, err := ob.Residual(b.estimate)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RMS returns the root mean square of the residual ranges (km).
func (b *BatchLeastSquares) RMS() (float64, error) {
	res, err := b.Residuals()
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, ErrNoObservations
	}
	ranges := make([]float64, len(res))
	for i, r := range res {
		ranges[i] = r.Range
	}
	return math.Sqrt(floats.Dot(ranges, ranges) / float64(len(ranges))), nil
}

// Covariance returns the sample covariance of the residuals' RIC position and
// velocity components about zero. It describes the fit's dispersion, not the
// formal parameter covariance.
func (b *BatchLeastSquares) Covariance() (*Covariance, error) {
	res, err := b.Residuals()
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNoObservations
	}
	R := mat.NewDense(len(res), 6, nil)
	for i, r := range res {
		R.SetRow(i, []float64{
			r.Position.X, r.Position.Y, r.Position.Z,
			r.Velocity.X, r.Velocity.Y, r.Velocity.Z,
		})
	}
	cov := mat.NewSymDense(6, nil)
	cov.SymOuterK(1/float64(len(res)), R.T())
	return &Covariance{Type: CovarianceRelative, Epoch: b.lastEpoch(), Matrix: cov}, nil
}

func (b *BatchLeastSquares) lastEpoch() epoch.Epoch {
	state, _ := b.estimate.KeplerianState()
	return state.Epoch
}

// Close releases the a priori and estimate bindings.
func (b *BatchLeastSquares) Close() error {
	return errors.Join(b.apriori.Close(), b.estimate.Close())
}
