package contact

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Impulse6D is the velocity-level counterpart of Contact6D: it constrains the
// frame's post-impact spatial velocity, reporting the pre-impulse velocity v0
// as the drift consumed by the impulse dynamics linear solve.
type Impulse6D struct {
	st    *state.Multibody
	frame body.FrameID
	rf    body.ReferenceFrame
}

// NewImpulse6D builds a 6-D impulse model at the given frame.
func NewImpulse6D(st *state.Multibody, frame body.FrameID, rf body.ReferenceFrame) (*Impulse6D, error) {
	if !rf.Valid() {
		return nil, errors.Errorf("unsupported reference frame convention %d for impulse at %q", rf, st.Model().FrameName(frame))
	}
	return &Impulse6D{st: st, frame: frame, rf: rf}, nil
}

// Kind returns Spatial6D.
func (m *Impulse6D) Kind() Kind { return Spatial6D }

// NC returns 6.
func (m *Impulse6D) NC() int { return 6 }

// NU returns zero: impulses carry no control.
func (m *Impulse6D) NU() int { return 0 }

// Frame returns the bound frame.
func (m *Impulse6D) Frame() body.FrameID { return m.frame }

// Convention returns the reference-frame convention.
func (m *Impulse6D) Convention() body.ReferenceFrame { return m.rf }

// State returns the multibody state.
func (m *Impulse6D) State() *state.Multibody { return m.st }

// CreateData allocates the per-node workspace.
func (m *Impulse6D) CreateData(bd body.Data) *Data {
	return newData(m, bd)
}

// Calc computes the 6-row impulse Jacobian and the pre-impulse frame
// velocity v0.
func (m *Impulse6D) Calc(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	v := d.Body.FrameVelocity(m.frame)
	d.driftLocal.CopyVec(v.Vector())

	if m.rf == body.Local {
		d.Jc.Copy(fJf)
		d.Drift.CopyVec(d.driftLocal)
		return
	}
	lwa := conventionPlacement(m.rf, d)
	lwa.RotateJacobian(d.Jc, fJf)
	d.Drift.CopyVec(lwa.ActMotion(v).Vector())
}

// CalcDiff computes dv0/dq (and dv0/dv, the frame Jacobian) with the
// world-convention skew corrections.
func (m *Impulse6D) CalcDiff(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	vdq, vdv := d.Body.FrameVelocityDerivatives(m.frame)
	d.vdq.Copy(vdq)
	d.vdv.Copy(vdv)
	jw := sliceRows(fJf, 3, 6)

	d.DriftDq.Zero()
	d.DriftDv.Zero()
	d.DriftDq.Copy(d.vdq)
	d.DriftDv.Copy(d.vdv)

	if m.rf == body.Local {
		return
	}
	v := spatial.MotionFromVec(d.driftLocal)
	d.vvSkew.Copy(spatial.Skew(v.Linear))
	d.vwSkew.Copy(spatial.Skew(v.Angular))
	worldDriftCorrection(sliceRows(d.DriftDq, 0, 3), v.Linear, jw)
	worldDriftCorrection(sliceRows(d.DriftDq, 3, 6), v.Angular, jw)
	lwa := conventionPlacement(m.rf, d)
	lwa.RotateJacobian(d.DriftDq, d.DriftDq)
	lwa.RotateJacobian(d.DriftDv, d.DriftDv)
}

// UpdateForce re-expresses a 6-D impulse in the LOCAL frame and at the
// supporting joint.
func (m *Impulse6D) UpdateForce(d *Data, force mat.Vector) error {
	if force.Len() != 6 {
		return errors.Wrapf(errForceDim, "impulse at %q expects 6, got %d", m.st.Model().FrameName(m.frame), force.Len())
	}
	d.F = spatial.ForceFromVec(force)
	if m.rf == body.Local {
		d.FLocal = d.F
	} else {
		d.FLocal = conventionPlacement(m.rf, d).ActInvForce(d.F)
	}
	d.FExt = d.JMF.ActForce(d.FLocal)
	return nil
}
