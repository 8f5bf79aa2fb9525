// Package node evaluates one trajectory node: constrained forward dynamics
// under an active contact stack (or its impulsive counterpart at velocity
// level), followed by the node's cost sum. Each model owns the KKT assembly
// and factorization; the engine, constraint and cost layers never see the
// saddle-point system.
package node

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/state"
)

// DiffModel is a per-node evaluation model. Calc produces the node output
// (acceleration for differential models, next state for impulse models) and
// the cost value; CalcDiff the first-order output derivatives and the
// Gauss-Newton cost derivatives. CalcDiff requires a preceding Calc at the
// same point.
type DiffModel interface {
	// State returns the state space.
	State() state.State
	// NU returns the control dimension.
	NU() int
	// NOut returns the output dimension of Xout.
	NOut() int

	// CreateData allocates the node workspace: engine data, capability
	// blocks, the shared collector and every cost term's data bound to it.
	CreateData() (*Data, error)

	// Calc evaluates dynamics and cost at (x, u).
	Calc(data *Data, x, u mat.Vector) error
	// CalcDiff fills the output and cost derivatives at (x, u).
	CalcDiff(data *Data, x, u mat.Vector) error
}

// Data is one node's complete workspace. It is built once by CreateData and
// reused across iterations; nothing here is safe for concurrent use.
type Data struct {
	// Body is the engine's kinematics/dynamics cache.
	Body body.Data
	// Actuation holds tau and its control Jacobian.
	Actuation *actuation.Data
	// Constraints is the stacked contact (or impulse) workspace.
	Constraints *contact.SetData
	// Costs is the cost sum workspace.
	Costs *cost.SumData
	// Shared is the collector every cost term reads through.
	Shared *collector.Collector

	// Xout is the node output: the generalized acceleration for contact
	// dynamics, the next state for impulse dynamics.
	Xout *mat.VecDense
	// Cost is the node cost value.
	Cost float64

	// Fx and Fu are the output derivatives. Fu is nil for control-free
	// models.
	Fx *mat.Dense
	Fu *mat.Dense

	// Saddle-point workspaces, sized lazily to the active constraint
	// dimension.
	kkt  *mat.Dense
	rhs  *mat.VecDense
	sol  *mat.VecDense
	kinv *mat.Dense
	lu   mat.LU

	dfDx *mat.Dense
	dfDu *mat.Dense
}

// resizeKKT (re)shapes the saddle-point workspaces for an active constraint
// dimension nc over an nv-dimensional tangent.
func (d *Data) resizeKKT(nv, nc, ndx, nu int) {
	n := nv + nc
	d.kkt = mat.NewDense(n, n, nil)
	d.rhs = mat.NewVecDense(n, nil)
	d.sol = mat.NewVecDense(n, nil)
	d.kinv = mat.NewDense(n, n, nil)
	if nc > 0 {
		d.dfDx = mat.NewDense(nc, ndx, nil)
		if nu > 0 {
			d.dfDu = mat.NewDense(nc, nu, nil)
		} else {
			d.dfDu = nil
		}
	} else {
		d.dfDx = nil
		d.dfDu = nil
	}
}

// identity writes an n x n identity.
func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
