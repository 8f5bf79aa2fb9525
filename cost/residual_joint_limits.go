package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/state"
)

// JointLimitsResidual exposes the state in its tangent parameterization,
// r = zero-state [-] x, meant to be paired with a barrier activation built
// from the collector's joint-limit bounds.
type JointLimitsResidual struct {
	st   state.State
	zero *mat.VecDense
	nu   int
}

// NewJointLimitsResidual builds a joint-limit residual.
func NewJointLimitsResidual(st state.State, nu int) *JointLimitsResidual {
	return &JointLimitsResidual{st: st, zero: st.Zero(), nu: nu}
}

// NR returns the tangent dimension.
func (r *JointLimitsResidual) NR() int { return r.st.NDX() }

// NU returns the control dimension.
func (r *JointLimitsResidual) NU() int { return r.nu }

// State returns the state space.
func (r *JointLimitsResidual) State() state.State { return r.st }

// CreateData requires the joint-limit capability and checks its bound
// dimensions against the tangent space.
func (r *JointLimitsResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	jl, err := shared.JointLimits()
	if err != nil {
		return nil, errors.Wrap(err, "joint-limit residual")
	}
	if len(jl.Lower) != r.NR() || len(jl.Upper) != r.NR() {
		return nil, errors.Errorf("joint-limit bounds have dimensions %d/%d, the tangent space needs %d",
			len(jl.Lower), len(jl.Upper), r.NR())
	}
	return newResidualData(r, shared), nil
}

// Calc evaluates the tangent coordinates of x.
func (r *JointLimitsResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	d.R.CopyVec(r.st.Diff(r.zero, x))
	return nil
}

// CalcDiff fills Rx with the difference Jacobian.
func (r *JointLimitsResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Copy(r.st.JDiff(r.zero, x, state.Second))
	if d.Ru != nil {
		d.Ru.Zero()
	}
	return nil
}
