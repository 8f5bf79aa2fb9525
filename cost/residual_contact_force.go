package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// ContactForceResidual penalizes the deviation of a solved contact force from
// a reference wrench, expressed in the constraint's reporting convention. The
// force is read from the shared collector; the residual never recomputes it.
type ContactForceResidual struct {
	st    *state.Multibody
	frame body.FrameID
	fref  spatial.Force
	kind  contact.Kind
	nu    int
}

// NewContactForceResidual binds the residual to a frame. The kind must match
// the constraint active at that frame when data is created.
func NewContactForceResidual(st *state.Multibody, frame body.FrameID, fref spatial.Force, kind contact.Kind, nu int) (*ContactForceResidual, error) {
	if kind.Dim() == 0 {
		return nil, errors.Errorf("unknown constraint kind %d", kind)
	}
	return &ContactForceResidual{st: st, frame: frame, fref: fref, kind: kind, nu: nu}, nil
}

// NR returns the constraint dimension of the bound kind.
func (r *ContactForceResidual) NR() int { return r.kind.Dim() }

// NU returns the control dimension.
func (r *ContactForceResidual) NU() int { return r.nu }

// State returns the state space.
func (r *ContactForceResidual) State() state.State { return r.st }

// CreateData locates the constraint at the bound frame in the shared
// collector, trying the contact stack first and the impulse stack second, and
// fails if none is there or its dimensionality disagrees.
func (r *ContactForceResidual) CreateData(shared *collector.Collector) (*ResidualData, error) {
	cd, err := lookupConstraint(shared, r.frame)
	if err != nil {
		return nil, err
	}
	if cd.Kind != r.kind {
		return nil, errors.Errorf("constraint at frame %d is %s, the force residual expects %s",
			r.frame, cd.Kind, r.kind)
	}
	d := newResidualData(r, shared)
	d.Contact = cd
	return d, nil
}

// Calc evaluates f - fref on the solved wrench, truncated to the constraint
// dimension.
func (r *ContactForceResidual) Calc(d *ResidualData, x, u mat.Vector) error {
	f := d.Contact.F.Vector()
	ref := r.fref.Vector()
	for i := 0; i < r.NR(); i++ {
		d.R.SetVec(i, f.AtVec(i)-ref.AtVec(i))
	}
	return nil
}

// CalcDiff copies the force partials distributed by the constrained solve.
func (r *ContactForceResidual) CalcDiff(d *ResidualData, x, u mat.Vector) error {
	d.Rx.Copy(d.Contact.DfDx)
	if d.Ru != nil {
		if d.Contact.DfDu != nil {
			d.Ru.Copy(d.Contact.DfDu)
		} else {
			d.Ru.Zero()
		}
	}
	return nil
}

// lookupConstraint finds the constraint data bound to a frame, preferring the
// contact stack over the impulse stack.
func lookupConstraint(shared *collector.Collector, frame body.FrameID) (*contact.Data, error) {
	cd, err := shared.ContactAt(frame, false)
	if err == nil {
		return cd, nil
	}
	cd, ierr := shared.ContactAt(frame, true)
	if ierr == nil {
		return cd, nil
	}
	return nil, errors.Wrapf(err, "no constraint available at frame %d", frame)
}
