package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/state"
)

// StateResidual penalizes the manifold difference between the state and a
// reference: r = xref [-] x, expressed in the tangent space.
type StateResidual struct {
	st   state.State
	xref *mat.VecDense
	nu   int
}

// NewStateResidual builds a state-regularization residual around xref.
func NewStateResidual(st state.State, xref mat.Vector, nu int) (*StateResidual, error) {
	if xref.Len() != st.NX() {
		return nil, errors.Errorf("state reference has dimension %d, the state needs %d", xref.Len(), st.NX())
	}
	ref := mat.NewVecDense(st.NX(), nil)
	ref.CopyVec(xref)
	return &StateResidual{st: st, xref: ref, nu: nu}, nil
}

// NR returns the tangent dimension.
func (r *StateResidual) NR() int { return r.st.NDX() }

// NU returns the control dimension.
func (r *StateResidual) NU() int { return r.nu }

// State returns the state space.
func (r *StateResidual) State() state.State { return r.st }

// CreateData allocates residual data; no capability is needed.
func (r *StateResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	return newResidualData(r, shared), nil
}

// Calc evaluates the tangent difference to the reference.
func (r *StateResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	d.R.CopyVec(r.st.Diff(r.xref, x))
	return nil
}

// CalcDiff fills Rx with the difference Jacobian; the residual never depends
// on the control.
func (r *StateResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Copy(r.st.JDiff(r.xref, x, state.Second))
	if d.Ru != nil {
		d.Ru.Zero()
	}
	return nil
}
