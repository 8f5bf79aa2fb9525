// Package activation provides the scalar shaping functions applied to cost
// residuals: value, gradient and Hessian over a residual vector of fixed
// dimension.
package activation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is a scalar shaping function a(r) over an nr-dimensional residual.
type Model interface {
	// NR returns the residual dimension the activation expects.
	NR() int
	// Calc evaluates a(r) into data.Value.
	Calc(data *Data, r mat.Vector)
	// CalcDiff fills data.Ar and data.Arr with the gradient and Hessian
	// of a at r. Calc must have run on the same r first.
	CalcDiff(data *Data, r mat.Vector)
}

// Data holds one node's activation evaluation.
type Data struct {
	Value float64
	// Ar is the nr gradient da/dr.
	Ar *mat.VecDense
	// Arr is the nr x nr Hessian d2a/dr2.
	Arr *mat.Dense
}

// NewData allocates zeroed activation data for a model.
func NewData(m Model) *Data {
	nr := m.NR()
	return &Data{
		Ar:  mat.NewVecDense(nr, nil),
		Arr: mat.NewDense(nr, nr, nil),
	}
}

// Quad is the plain quadratic activation 0.5 * ||r||^2.
type Quad struct {
	nr int
}

// NewQuad returns a quadratic activation over nr residuals.
func NewQuad(nr int) (*Quad, error) {
	if nr <= 0 {
		return nil, errors.Errorf("activation dimension must be positive, got %d", nr)
	}
	return &Quad{nr: nr}, nil
}

// NR returns the residual dimension.
func (a *Quad) NR() int { return a.nr }

// Calc evaluates 0.5 * r'r.
func (a *Quad) Calc(data *Data, r mat.Vector) {
	data.Value = 0.5 * mat.Dot(r, r)
}

// CalcDiff sets Ar = r and Arr = I.
func (a *Quad) CalcDiff(data *Data, r mat.Vector) {
	data.Ar.CopyVec(r)
	data.Arr.Zero()
	for i := 0; i < a.nr; i++ {
		data.Arr.Set(i, i, 1)
	}
}

// WeightedQuad is 0.5 * sum_i w_i r_i^2.
type WeightedQuad struct {
	weights *mat.VecDense
}

// NewWeightedQuad returns a weighted quadratic activation; the residual
// dimension is the length of weights.
func NewWeightedQuad(weights []float64) (*WeightedQuad, error) {
	if len(weights) == 0 {
		return nil, errors.New("weighted quadratic activation needs at least one weight")
	}
	return &WeightedQuad{weights: mat.NewVecDense(len(weights), weights)}, nil
}

// NR returns the residual dimension.
func (a *WeightedQuad) NR() int { return a.weights.Len() }

// Calc evaluates the weighted square.
func (a *WeightedQuad) Calc(data *Data, r mat.Vector) {
	sum := 0.0
	for i := 0; i < a.weights.Len(); i++ {
		ri := r.AtVec(i)
		sum += a.weights.AtVec(i) * ri * ri
	}
	data.Value = 0.5 * sum
}

// CalcDiff sets Ar = W r and Arr = diag(w).
func (a *WeightedQuad) CalcDiff(data *Data, r mat.Vector) {
	data.Arr.Zero()
	for i := 0; i < a.weights.Len(); i++ {
		wi := a.weights.AtVec(i)
		data.Ar.SetVec(i, wi*r.AtVec(i))
		data.Arr.Set(i, i, wi)
	}
}

// SmoothAbs is the smooth absolute value sum_i sqrt(eps^2 + r_i^2), a
// once-differentiable L1 surrogate.
type SmoothAbs struct {
	nr  int
	eps float64
}

// NewSmoothAbs returns a smooth-absolute activation with smoothing eps.
func NewSmoothAbs(nr int, eps float64) (*SmoothAbs, error) {
	if nr <= 0 {
		return nil, errors.Errorf("activation dimension must be positive, got %d", nr)
	}
	if eps <= 0 {
		return nil, errors.Errorf("smooth-abs smoothing must be positive, got %g", eps)
	}
	return &SmoothAbs{nr: nr, eps: eps}, nil
}

// NR returns the residual dimension.
func (a *SmoothAbs) NR() int { return a.nr }

// Calc evaluates the smoothed L1 norm.
func (a *SmoothAbs) Calc(data *Data, r mat.Vector) {
	sum := 0.0
	for i := 0; i < a.nr; i++ {
		ri := r.AtVec(i)
		sum += math.Sqrt(a.eps*a.eps + ri*ri)
	}
	data.Value = sum
}

// CalcDiff fills the elementwise gradient r_i/s_i and the Gauss-Newton
// curvature eps^2/s_i^3 with s_i = sqrt(eps^2 + r_i^2).
func (a *SmoothAbs) CalcDiff(data *Data, r mat.Vector) {
	data.Arr.Zero()
	for i := 0; i < a.nr; i++ {
		ri := r.AtVec(i)
		si := math.Sqrt(a.eps*a.eps + ri*ri)
		data.Ar.SetVec(i, ri/si)
		data.Arr.Set(i, i, a.eps*a.eps/(si*si*si))
	}
}
