package contact

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Impulse3D constrains the frame's post-impact linear velocity.
type Impulse3D struct {
	st    *state.Multibody
	frame body.FrameID
	rf    body.ReferenceFrame
}

// NewImpulse3D builds a 3-D impulse model at the given frame.
func NewImpulse3D(st *state.Multibody, frame body.FrameID, rf body.ReferenceFrame) (*Impulse3D, error) {
	if !rf.Valid() {
		return nil, errors.Errorf("unsupported reference frame convention %d for impulse at %q", rf, st.Model().FrameName(frame))
	}
	return &Impulse3D{st: st, frame: frame, rf: rf}, nil
}

// Kind returns Point3D.
func (m *Impulse3D) Kind() Kind { return Point3D }

// NC returns 3.
func (m *Impulse3D) NC() int { return 3 }

// NU returns zero: impulses carry no control.
func (m *Impulse3D) NU() int { return 0 }

// Frame returns the bound frame.
func (m *Impulse3D) Frame() body.FrameID { return m.frame }

// Convention returns the reference-frame convention.
func (m *Impulse3D) Convention() body.ReferenceFrame { return m.rf }

// State returns the multibody state.
func (m *Impulse3D) State() *state.Multibody { return m.st }

// CreateData allocates the per-node workspace.
func (m *Impulse3D) CreateData(bd body.Data) *Data {
	return newData(m, bd)
}

// Calc computes the 3-row impulse Jacobian and the linear pre-impulse
// velocity.
func (m *Impulse3D) Calc(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	v := d.Body.FrameVelocity(m.frame)
	d.driftLocal.SetVec(0, v.Linear.X)
	d.driftLocal.SetVec(1, v.Linear.Y)
	d.driftLocal.SetVec(2, v.Linear.Z)

	if m.rf == body.Local {
		d.Jc.Copy(sliceRows(fJf, 0, 3))
		d.Drift.CopyVec(d.driftLocal)
		return
	}
	p := conventionPlacement(m.rf, d)
	d.Jc.Mul(p.Rotation(), sliceRows(fJf, 0, 3))
	w := p.RotateVec(v.Linear)
	d.Drift.SetVec(0, w.X)
	d.Drift.SetVec(1, w.Y)
	d.Drift.SetVec(2, w.Z)
}

// CalcDiff computes dv0/dq and dv0/dv with the world-convention skew
// correction.
func (m *Impulse3D) CalcDiff(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	vdq, vdv := d.Body.FrameVelocityDerivatives(m.frame)
	d.vdq.Copy(vdq)
	d.vdv.Copy(vdv)
	jw := sliceRows(fJf, 3, 6)

	d.DriftDq.Zero()
	d.DriftDv.Zero()
	d.DriftDq.Copy(sliceRows(d.vdq, 0, 3))
	d.DriftDv.Copy(sliceRows(d.vdv, 0, 3))

	if m.rf == body.Local {
		return
	}
	vLin := r3.Vector{X: d.driftLocal.AtVec(0), Y: d.driftLocal.AtVec(1), Z: d.driftLocal.AtVec(2)}
	d.vvSkew.Copy(spatial.Skew(vLin))
	worldDriftCorrection(d.DriftDq, vLin, jw)
	rot := conventionPlacement(m.rf, d).Rotation()
	var rotated mat.Dense
	rotated.Mul(rot, d.DriftDq)
	d.DriftDq.Copy(&rotated)
	rotated.Mul(rot, d.DriftDv)
	d.DriftDv.Copy(&rotated)
}

// UpdateForce re-expresses a 3-D impulse in the LOCAL frame (with zero
// torque) and at the supporting joint.
func (m *Impulse3D) UpdateForce(d *Data, force mat.Vector) error {
	if force.Len() != 3 {
		return errors.Wrapf(errForceDim, "impulse at %q expects 3, got %d", m.st.Model().FrameName(m.frame), force.Len())
	}
	lin := r3.Vector{X: force.AtVec(0), Y: force.AtVec(1), Z: force.AtVec(2)}
	d.F = spatial.Force{Linear: lin}
	if m.rf == body.Local {
		d.FLocal = d.F
	} else {
		d.FLocal = spatial.Force{Linear: conventionPlacement(m.rf, d).RotateVecInv(lin)}
	}
	d.FExt = d.JMF.ActForce(d.FLocal)
	return nil
}
