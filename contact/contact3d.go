package contact

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Contact3D constrains the linear motion of a frame (point contact). The
// drift is the frame's classical linear acceleration, which couples the
// angular and linear spatial velocities.
type Contact3D struct {
	st     *state.Multibody
	frame  body.FrameID
	rf     body.ReferenceFrame
	nu     int
	gains  Gains
	ref    r3.Vector
	hasRef bool
}

// NewContact3D builds a point contact at the given frame. ref is the world
// reference point for the position gain; it may be nil when Kp is zero.
func NewContact3D(
	st *state.Multibody,
	frame body.FrameID,
	rf body.ReferenceFrame,
	nu int,
	gains Gains,
	ref *r3.Vector,
) (*Contact3D, error) {
	if !rf.Valid() {
		return nil, errors.Errorf("unsupported reference frame convention %d for contact at %q", rf, st.Model().FrameName(frame))
	}
	if nu < 0 {
		return nil, errors.Errorf("control dimension must be non-negative, got %d", nu)
	}
	m := &Contact3D{st: st, frame: frame, rf: rf, nu: nu, gains: gains}
	if ref != nil {
		m.ref = *ref
		m.hasRef = true
	} else if gains.Kp != 0 {
		return nil, errors.Errorf("position gain on contact at %q requires a reference point", st.Model().FrameName(frame))
	}
	return m, nil
}

// Kind returns Point3D.
func (m *Contact3D) Kind() Kind { return Point3D }

// NC returns 3.
func (m *Contact3D) NC() int { return 3 }

// NU returns the control dimension.
func (m *Contact3D) NU() int { return m.nu }

// Frame returns the bound frame.
func (m *Contact3D) Frame() body.FrameID { return m.frame }

// Convention returns the reference-frame convention.
func (m *Contact3D) Convention() body.ReferenceFrame { return m.rf }

// State returns the multibody state.
func (m *Contact3D) State() *state.Multibody { return m.st }

// CreateData allocates the per-node workspace.
func (m *Contact3D) CreateData(bd body.Data) *Data {
	return newData(m, bd)
}

func (m *Contact3D) positionError(d *Data) r3.Vector {
	oMf := d.Body.FramePlacement(m.frame)
	return oMf.RotateVecInv(oMf.Translation().Sub(m.ref))
}

func (m *Contact3D) localDrift(d *Data) r3.Vector {
	v := d.Body.FrameVelocity(m.frame)
	a := d.Body.FrameAcceleration(m.frame)
	drift := a.Linear.Add(v.Angular.Cross(v.Linear))
	if m.gains.Kv != 0 {
		drift = drift.Add(v.Linear.Mul(m.gains.Kv))
	}
	if m.gains.Kp != 0 {
		drift = drift.Add(m.positionError(d).Mul(m.gains.Kp))
	}
	return drift
}

// Calc computes the 3-row constraint Jacobian and classical-acceleration
// drift at x.
func (m *Contact3D) Calc(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	drift := m.localDrift(d)
	d.driftLocal.SetVec(0, drift.X)
	d.driftLocal.SetVec(1, drift.Y)
	d.driftLocal.SetVec(2, drift.Z)

	if m.rf == body.Local {
		d.Jc.Copy(sliceRows(fJf, 0, 3))
		d.Drift.CopyVec(d.driftLocal)
		return
	}
	rot := conventionPlacement(m.rf, d).Rotation()
	d.Jc.Mul(rot, sliceRows(fJf, 0, 3))
	w := conventionPlacement(m.rf, d).RotateVec(drift)
	d.Drift.SetVec(0, w.X)
	d.Drift.SetVec(1, w.Y)
	d.Drift.SetVec(2, w.Z)
}

// CalcDiff computes the drift partials, including the cross-product terms of
// the classical acceleration and the world-convention skew corrections.
func (m *Contact3D) CalcDiff(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	vdq, adq, adv := d.Body.FrameAccelerationDerivatives(m.frame)
	d.vdq.Copy(vdq)
	d.adq.Copy(adq)
	d.adv.Copy(adv)

	v := d.Body.FrameVelocity(m.frame)
	d.vvSkew.Copy(spatial.Skew(v.Linear))
	d.vwSkew.Copy(spatial.Skew(v.Angular))
	jv := sliceRows(fJf, 0, 3)
	jw := sliceRows(fJf, 3, 6)

	d.DriftDq.Zero()
	d.DriftDv.Zero()

	// d(a_lin + w x v)/dq = adq_lin + S(w) vdq_lin - S(v) vdq_ang.
	d.DriftDq.Copy(sliceRows(d.adq, 0, 3))
	var t mat.Dense
	t.Mul(d.vwSkew, sliceRows(d.vdq, 0, 3))
	d.DriftDq.Add(d.DriftDq, &t)
	t.Mul(d.vvSkew, sliceRows(d.vdq, 3, 6))
	d.DriftDq.Sub(d.DriftDq, &t)

	// d(a_lin + w x v)/dv = adv_lin + S(w) Jv - S(v) Jw.
	d.DriftDv.Copy(sliceRows(d.adv, 0, 3))
	t.Mul(d.vwSkew, jv)
	d.DriftDv.Add(d.DriftDv, &t)
	t.Mul(d.vvSkew, jw)
	d.DriftDv.Sub(d.DriftDv, &t)

	if m.gains.Kv != 0 {
		t.Scale(m.gains.Kv, sliceRows(d.vdq, 0, 3))
		d.DriftDq.Add(d.DriftDq, &t)
		t.Scale(m.gains.Kv, jv)
		d.DriftDv.Add(d.DriftDv, &t)
	}
	if m.gains.Kp != 0 {
		// de/dq = Jv + S(e) Jw for e in the frame's axes.
		e := m.positionError(d)
		t.Mul(spatial.Skew(e), jw)
		t.Add(&t, jv)
		t.Scale(m.gains.Kp, &t)
		d.DriftDq.Add(d.DriftDq, &t)
	}

	if m.rf == body.Local {
		return
	}
	drift := r3.Vector{X: d.driftLocal.AtVec(0), Y: d.driftLocal.AtVec(1), Z: d.driftLocal.AtVec(2)}
	worldDriftCorrection(d.DriftDq, drift, jw)
	rot := conventionPlacement(m.rf, d).Rotation()
	var rotated mat.Dense
	rotated.Mul(rot, d.DriftDq)
	d.DriftDq.Copy(&rotated)
	rotated.Mul(rot, d.DriftDv)
	d.DriftDv.Copy(&rotated)
}

// UpdateForce re-expresses a 3-D constraint force in the LOCAL frame (with
// zero torque) and at the supporting joint.
func (m *Contact3D) UpdateForce(d *Data, force mat.Vector) error {
	if force.Len() != 3 {
		return errors.Wrapf(errForceDim, "contact at %q expects 3, got %d", m.st.Model().FrameName(m.frame), force.Len())
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
