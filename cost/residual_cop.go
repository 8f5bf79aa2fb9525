package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/state"
)

// CoPResidual maps the solved contact wrench through a rectangular support
// region: r = A f, four rows that stay non-positive while the center of
// pressure is inside the region. Only a 6-D constraint carries the torque
// components the mapping needs.
type CoPResidual struct {
	st      *state.Multibody
	frame   body.FrameID
	support *CoPSupport
	nu      int
}

// NewCoPResidual binds a support region to a frame.
func NewCoPResidual(st *state.Multibody, frame body.FrameID, support *CoPSupport, nu int) (*CoPResidual, error) {
	if support == nil {
		return nil, errors.New("a support region is required")
	}
	return &CoPResidual{st: st, frame: frame, support: support, nu: nu}, nil
}

// NR returns the four support rows.
func (r *CoPResidual) NR() int { return 4 }

// NU returns the control dimension.
func (r *CoPResidual) NU() int { return r.nu }

// State returns the state space.
func (r *CoPResidual) State() state.State { return r.st }

// Support returns the support region.
func (r *CoPResidual) Support() *CoPSupport { return r.support }

// CreateData locates the constraint at the bound frame and rejects anything
// but a 6-D one.
func (r *CoPResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	cd, err := lookupConstraint(shared, r.frame)
	if err != nil {
		return nil, err
	}
	if cd.Kind != contact.Spatial6D {
		return nil, errors.Errorf("constraint at frame %d is %s; the center-of-pressure residual needs the full wrench of a 6d constraint",
			r.frame, cd.Kind)
	}
	d := newResidualData(r, shared)
	d.Contact = cd
	return d, nil
}

// Calc evaluates A f on the solved wrench.
func (r *CoPResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	d.R.MulVec(r.support.Matrix(), d.Contact.F.Vector())
	return nil
}

// CalcDiff chains the support matrix through the force partials.
func (r *CoPResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Mul(r.support.Matrix(), d.Contact.DfDx)
	if d.Ru != nil {
		if d.Contact.DfDu != nil {
			d.Ru.Mul(r.support.Matrix(), d.Contact.DfDu)
		} else {
			d.Ru.Zero()
		}
	}
	return nil
}
