package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/state"
)

// FrictionConeResidual maps the linear part of a solved contact force through
// the facets of a linearized friction cone: r = A f_lin. Rows stay
// non-positive inside the cone; the trailing row is the normal force.
type FrictionConeResidual struct {
	st    *state.Multibody
	frame body.FrameID
	cone  *FrictionCone
	nu    int
}

// NewFrictionConeResidual binds a cone to a frame. Both 3-D and 6-D
// constraints serve; only the linear force rows are read.
func NewFrictionConeResidual(st *state.Multibody, frame body.FrameID, cone *FrictionCone, nu int) (*FrictionConeResidual, error) {
	if cone == nil {
		return nil, errors.New("a friction cone is required")
	}
	return &FrictionConeResidual{st: st, frame: frame, cone: cone, nu: nu}, nil
}

// NR returns the cone row count.
func (r *FrictionConeResidual) NR() int { return r.cone.NR() }

// NU returns the control dimension.
func (r *FrictionConeResidual) NU() int { return r.nu }

// State returns the state space.
func (r *FrictionConeResidual) State() state.State { return r.st }

// Cone returns the bound cone.
func (r *FrictionConeResidual) Cone() *FrictionCone { return r.cone }

// CreateData locates the constraint at the bound frame.
func (r *FrictionConeResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	cd, err := lookupConstraint(shared, r.frame)
	if err != nil {
		return nil, err
	}
	d := newResidualData(r, shared)
	d.Contact = cd
	return d, nil
}

// Calc evaluates A f_lin on the solved force.
func (r *FrictionConeResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	f := d.Contact.F.Vector().SliceVec(0, 3)
	d.R.MulVec(r.cone.Matrix(), f)
	return nil
}

// CalcDiff chains the cone matrix through the linear rows of the force
// partials.
func (r *FrictionConeResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	ndx := r.st.NDX()
	d.Rx.Mul(r.cone.Matrix(), d.Contact.DfDx.Slice(0, 3, 0, ndx))
	if d.Ru != nil {
		if d.Contact.DfDu != nil {
			d.Ru.Mul(r.cone.Matrix(), d.Contact.DfDu.Slice(0, 3, 0, r.nu))
		} else {
			d.Ru.Zero()
		}
	}
	return nil
}

// WrenchConeResidual maps the full solved contact wrench through a linearized
// wrench cone: r = A f, seventeen rows combining friction, center-of-pressure
// and yaw-torque conditions.
type WrenchConeResidual struct {
	st    *state.Multibody
	frame body.FrameID
	cone  *WrenchCone
	nu    int
}

// NewWrenchConeResidual binds a wrench cone to a frame.
func NewWrenchConeResidual(st *state.Multibody, frame body.FrameID, cone *WrenchCone, nu int) (*WrenchConeResidual, error) {
	if cone == nil {
		return nil, errors.New("a wrench cone is required")
	}
	return &WrenchConeResidual{st: st, frame: frame, cone: cone, nu: nu}, nil
}

// NR returns the cone row count.
func (r *WrenchConeResidual) NR() int { return WrenchConeRows }

// NU returns the control dimension.
func (r *WrenchConeResidual) NU() int { return r.nu }

// State returns the state space.
func (r *WrenchConeResidual) State() state.State { return r.st }

// Cone returns the bound cone.
func (r *WrenchConeResidual) Cone() *WrenchCone { return r.cone }

// CreateData locates the constraint at the bound frame and rejects anything
// but a 6-D one.
func (r *WrenchConeResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	cd, err := lookupConstraint(shared, r.frame)
	if err != nil {
		return nil, err
	}
	if cd.Kind != contact.Spatial6D {
		return nil, errors.Errorf("constraint at frame %d is %s; the wrench-cone residual needs the full wrench of a 6d constraint",
			r.frame, cd.Kind)
	}
	d := newResidualData(r, shared)
	d.Contact = cd
	return d, nil
}

// Calc evaluates A f on the solved wrench.
func (r *WrenchConeResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	d.R.MulVec(r.cone.Matrix(), d.Contact.F.Vector())
	return nil
}

// CalcDiff chains the cone matrix through the force partials.
func (r *WrenchConeResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Mul(r.cone.Matrix(), d.Contact.DfDx)
	if d.Ru != nil {
		if d.Contact.DfDu != nil {
			d.Ru.Mul(r.cone.Matrix(), d.Contact.DfDu)
		} else {
			d.Ru.Zero()
		}
	}
	return nil
}
