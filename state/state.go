// Package state represents a system's configuration+velocity as a point on a
// manifold with a flat tangent space, exposing the difference and integrate
// operators (and their Jacobians) the rest of the evaluation layer is written
// against.
package state

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Side selects which argument of a two-argument manifold operator a Jacobian
// is taken with respect to.
type Side int

const (
	// First differentiates with respect to the first argument.
	First Side = iota
	// Second differentiates with respect to the second argument.
	Second
)

// State is a point space for system states. Implementations are immutable
// after construction and shared read-only across trajectory nodes.
type State interface {
	// NX returns the state dimension.
	NX() int
	// NDX returns the tangent dimension.
	NDX() int

	// Zero returns the reference state.
	Zero() *mat.VecDense
	// Rand returns a random valid state.
	Rand(r *rand.Rand) *mat.VecDense

	// Diff returns dx such that x0 [+] dx = x1.
	Diff(x0, x1 mat.Vector) *mat.VecDense
	// Integrate returns x [+] dx.
	Integrate(x, dx mat.Vector) *mat.VecDense
	// JDiff returns the ndx x ndx Jacobian of Diff with respect to the
	// chosen argument.
	JDiff(x0, x1 mat.Vector, side Side) *mat.Dense
	// JIntegrate returns the ndx x ndx Jacobian of Integrate with respect
	// to the chosen argument.
	JIntegrate(x, dx mat.Vector, side Side) *mat.Dense
}

// Vector is the flat Euclidean state: diff and integrate are plain vector
// subtraction and addition, and the tangent dimension equals the state
// dimension.
type Vector struct {
	nx int
}

// NewVector returns a flat state of dimension nx.
func NewVector(nx int) *Vector {
	return &Vector{nx: nx}
}

// NX returns the state dimension.
func (s *Vector) NX() int { return s.nx }

// NDX returns the tangent dimension.
func (s *Vector) NDX() int { return s.nx }

// Zero returns the origin.
func (s *Vector) Zero() *mat.VecDense {
	return mat.NewVecDense(s.nx, nil)
}

// Rand returns a uniform random state in [-1, 1)^nx.
func (s *Vector) Rand(r *rand.Rand) *mat.VecDense {
	x := mat.NewVecDense(s.nx, nil)
	for i := 0; i < s.nx; i++ {
		x.SetVec(i, 2*r.Float64()-1)
	}
	return x
}

// Diff returns x1 - x0.
func (s *Vector) Diff(x0, x1 mat.Vector) *mat.VecDense {
	dx := mat.NewVecDense(s.nx, nil)
	dx.SubVec(x1, x0)
	return dx
}

// Integrate returns x + dx.
func (s *Vector) Integrate(x, dx mat.Vector) *mat.VecDense {
	xn := mat.NewVecDense(s.nx, nil)
	xn.AddVec(x, dx)
	return xn
}

// JDiff is -I with respect to the first argument and +I with respect to the
// second.
func (s *Vector) JDiff(x0, x1 mat.Vector, side Side) *mat.Dense {
	j := eye(s.nx)
	if side == First {
		j.Scale(-1, j)
	}
	return j
}

// JIntegrate is the identity with respect to either argument.
func (s *Vector) JIntegrate(x, dx mat.Vector, side Side) *mat.Dense {
	return eye(s.nx)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
