package activation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Bounds delimit the inactive region of a barrier activation. One-sided
// barriers use -Inf or +Inf entries.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NewBounds validates that the bounds agree in length and ordering.
func NewBounds(lower, upper []float64) (Bounds, error) {
	if len(lower) != len(upper) {
		return Bounds{}, errors.Errorf("barrier bounds disagree in length: %d vs %d", len(lower), len(upper))
	}
	if len(lower) == 0 {
		return Bounds{}, errors.New("barrier bounds need at least one entry")
	}
	for i := range lower {
		if lower[i] > upper[i] {
			return Bounds{}, errors.Errorf("barrier lower bound exceeds upper at index %d: %g > %g", i, lower[i], upper[i])
		}
	}
	return Bounds{Lower: lower, Upper: upper}, nil
}

// LowerOnly builds one-sided bounds [lb, +Inf).
func LowerOnly(lower []float64) (Bounds, error) {
	upper := make([]float64, len(lower))
	for i := range upper {
		upper[i] = math.Inf(1)
	}
	return NewBounds(lower, upper)
}

// UpperOnly builds one-sided bounds (-Inf, ub].
func UpperOnly(upper []float64) (Bounds, error) {
	lower := make([]float64, len(upper))
	for i := range lower {
		lower[i] = math.Inf(-1)
	}
	return NewBounds(lower, upper)
}

// QuadBarrier penalizes residual entries outside [lower, upper] with a
// one-sided quadratic; inside the bounds value, gradient and Hessian are all
// zero.
type QuadBarrier struct {
	bounds Bounds
}

// NewQuadBarrier returns a quadratic barrier over the given bounds.
func NewQuadBarrier(bounds Bounds) (*QuadBarrier, error) {
	if len(bounds.Lower) == 0 {
		return nil, errors.New("quadratic barrier needs non-empty bounds")
	}
	return &QuadBarrier{bounds: bounds}, nil
}

// NR returns the residual dimension.
func (a *QuadBarrier) NR() int { return len(a.bounds.Lower) }

func (a *QuadBarrier) violation(i int, ri float64) float64 {
	if ri < a.bounds.Lower[i] {
		return ri - a.bounds.Lower[i]
	}
	if ri > a.bounds.Upper[i] {
		return ri - a.bounds.Upper[i]
	}
	return 0
}

// Calc evaluates 0.5 * sum_i violation_i^2.
func (a *QuadBarrier) Calc(data *Data, r mat.Vector) {
	sum := 0.0
	for i := 0; i < a.NR(); i++ {
		vi := a.violation(i, r.AtVec(i))
		sum += vi * vi
	}
	data.Value = 0.5 * sum
}

// CalcDiff fills the piecewise gradient and Hessian.
func (a *QuadBarrier) CalcDiff(data *Data, r mat.Vector) {
	data.Arr.Zero()
	for i := 0; i < a.NR(); i++ {
		vi := a.violation(i, r.AtVec(i))
		data.Ar.SetVec(i, vi)
		if vi != 0 {
			data.Arr.Set(i, i, 1)
		} else {
			data.Arr.Set(i, i, 0)
		}
	}
}

// WeightedQuadBarrier is a quadratic barrier with per-entry weights.
type WeightedQuadBarrier struct {
	barrier *QuadBarrier
	weights []float64
}

// NewWeightedQuadBarrier returns a weighted quadratic barrier; weights must
// match the bounds in length.
func NewWeightedQuadBarrier(bounds Bounds, weights []float64) (*WeightedQuadBarrier, error) {
	inner, err := NewQuadBarrier(bounds)
	if err != nil {
		return nil, err
	}
	if len(weights) != inner.NR() {
		return nil, errors.Errorf("barrier weights disagree with bounds: %d vs %d", len(weights), inner.NR())
	}
	return &WeightedQuadBarrier{barrier: inner, weights: weights}, nil
}

// NR returns the residual dimension.
func (a *WeightedQuadBarrier) NR() int { return a.barrier.NR() }

// Calc evaluates 0.5 * sum_i w_i violation_i^2.
func (a *WeightedQuadBarrier) Calc(data *Data, r mat.Vector) {
	sum := 0.0
	for i := 0; i < a.NR(); i++ {
		vi := a.barrier.violation(i, r.AtVec(i))
		sum += a.weights[i] * vi * vi
	}
	data.Value = 0.5 * sum
}

// CalcDiff fills the weighted piecewise gradient and Hessian.
func (a *WeightedQuadBarrier) CalcDiff(data *Data, r mat.Vector) {
	data.Arr.Zero()
	for i := 0; i < a.NR(); i++ {
		vi := a.barrier.violation(i, r.AtVec(i))
		data.Ar.SetVec(i, a.weights[i]*vi)
		if vi != 0 {
			data.Arr.Set(i, i, a.weights[i])
		}
	}
}
