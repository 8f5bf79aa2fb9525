package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/state"
)

// GravityResidual penalizes the distance of the applied torque from static
// equilibrium: r = tau(u) - g(q) + Jc' f, where the last term credits the
// active contact forces. Without a contact stack in the collector the residual
// reduces to plain gravity compensation.
type GravityResidual struct {
	st *state.Multibody
	nu int
}

// NewGravityResidual builds a gravity-compensation residual.
func NewGravityResidual(st *state.Multibody, nu int) *GravityResidual {
	return &GravityResidual{st: st, nu: nu}
}

// NR returns the generalized-velocity dimension.
func (r *GravityResidual) NR() int { return r.st.NV() }

// NU returns the control dimension.
func (r *GravityResidual) NU() int { return r.nu }

// State returns the state space.
func (r *GravityResidual) State() state.State { return r.st }

// CreateData requires the kinematics and actuation capabilities; the contact
// stack stays optional.
func (r *GravityResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	if _, err := shared.Kinematics(); err != nil {
		return nil, errors.Wrap(err, "gravity residual")
	}
	if _, err := shared.Actuation(); err != nil {
		return nil, errors.Wrap(err, "gravity residual")
	}
	return newResidualData(r, shared), nil
}

// Calc evaluates tau - g plus the contact-force credit.
func (r *GravityResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	bd, err := d.Shared.Kinematics()
	if err != nil {
		return err
	}
	ad, err := d.Shared.Actuation()
	if err != nil {
		return err
	}
	d.R.SubVec(ad.Tau, bd.Gravity())
	if sd, err := d.Shared.Contacts(); err == nil && sd.Active > 0 {
		nv := r.st.NV()
		jc := sd.Jc.Slice(0, sd.Active, 0, nv)
		f := sd.FStack.SliceVec(0, sd.Active)
		var jtf mat.VecDense
		jtf.MulVec(jc.T(), f)
		d.R.AddVec(d.R, &jtf)
	}
	return nil
}

// CalcDiff assembles the partials: -dg/dq in the configuration block, the
// actuation Jacobian in the control, and the solved-force variation chained
// through the constraint Jacobian. The variation of the Jacobian itself under
// a fixed force is dropped.
func (r *GravityResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	bd, err := d.Shared.Kinematics()
	if err != nil {
		return err
	}
	ad, err := d.Shared.Actuation()
	if err != nil {
		return err
	}
	nv := r.st.NV()
	d.Rx.Zero()
	var negDg mat.Dense
	negDg.Scale(-1, bd.GravityDerivative())
	d.Rx.Slice(0, nv, 0, nv).(*mat.Dense).Copy(&negDg)
	if d.Ru != nil {
		d.Ru.Copy(ad.DTauDu)
	}
	if sd, err := d.Shared.Contacts(); err == nil && sd.Active > 0 {
		jc := sd.Jc.Slice(0, sd.Active, 0, nv)
		if sd.DfDx != nil {
			var jdf mat.Dense
			jdf.Mul(jc.T(), sd.DfDx.Slice(0, sd.Active, 0, r.st.NDX()))
			d.Rx.Add(d.Rx, &jdf)
		}
		if d.Ru != nil && sd.DfDu != nil {
			var jdf mat.Dense
			jdf.Mul(jc.T(), sd.DfDu.Slice(0, sd.Active, 0, r.nu))
			d.Ru.Add(d.Ru, &jdf)
		}
	}
	return nil
}
