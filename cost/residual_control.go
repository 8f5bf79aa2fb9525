package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/state"
)

// ControlResidual penalizes the control against a reference: r = u - uref.
type ControlResidual struct {
	st   state.State
	uref *mat.VecDense
}

// NewControlResidual builds a control-regularization residual around uref.
func NewControlResidual(st state.State, uref mat.Vector) (*ControlResidual, error) {
	if uref.Len() == 0 {
		return nil, errors.New("control reference must not be empty")
	}
	ref := mat.NewVecDense(uref.Len(), nil)
	ref.CopyVec(uref)
	return &ControlResidual{st: st, uref: ref}, nil
}

// NewZeroControlResidual penalizes the control itself.
func NewZeroControlResidual(st state.State, nu int) (*ControlResidual, error) {
	if nu <= 0 {
		return nil, errors.Errorf("control dimension must be positive, got %d", nu)
	}
	return &ControlResidual{st: st, uref: mat.NewVecDense(nu, nil)}, nil
}

// NR returns the control dimension.
func (r *ControlResidual) NR() int { return r.uref.Len() }

// NU returns the control dimension.
func (r *ControlResidual) NU() int { return r.uref.Len() }

// State returns the state space.
func (r *ControlResidual) State() state.State { return r.st }

// CreateData allocates residual data; no capability is needed.
func (r *ControlResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	return newResidualData(r, shared), nil
}

// Calc evaluates u - uref.
func (r *ControlResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	if u.Len() != r.uref.Len() {
		return errors.Errorf("control has dimension %d, the residual expects %d", u.Len(), r.uref.Len())
	}
	d.R.SubVec(u, r.uref)
	return nil
}

// CalcDiff sets Ru to the identity; the residual never depends on the state.
func (r *ControlResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Zero()
	d.Ru.Zero()
	for i := 0; i < r.uref.Len(); i++ {
		d.Ru.Set(i, i, 1)
	}
	return nil
}
