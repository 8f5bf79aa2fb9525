package contact

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Gains are the Baumgarte stabilization gains of a contact: Kp weighs the
// placement error, Kv the frame velocity. Both default to zero, leaving the
// drift equal to the raw frame acceleration terms.
type Gains struct {
	Kp float64
	Kv float64
}

// Contact6D constrains the full spatial motion of a frame.
type Contact6D struct {
	st     *state.Multibody
	frame  body.FrameID
	rf     body.ReferenceFrame
	nu     int
	gains  Gains
	ref    spatial.Placement
	hasRef bool
}

// NewContact6D builds a 6-D holonomic contact at the given frame. ref is the
// reference placement for the position gain; it may be nil when Kp is zero.
func NewContact6D(
	st *state.Multibody,
	frame body.FrameID,
	rf body.ReferenceFrame,
	nu int,
	gains Gains,
	ref *spatial.Placement,
) (*Contact6D, error) {
	if !rf.Valid() {
		return nil, errors.Errorf("unsupported reference frame convention %d for contact at %q", rf, st.Model().FrameName(frame))
	}
	if nu < 0 {
		return nil, errors.Errorf("control dimension must be non-negative, got %d", nu)
	}
	m := &Contact6D{st: st, frame: frame, rf: rf, nu: nu, gains: gains}
	if ref != nil {
		m.ref = *ref
		m.hasRef = true
	} else if gains.Kp != 0 {
		return nil, errors.Errorf("position gain on contact at %q requires a reference placement", st.Model().FrameName(frame))
	}
	return m, nil
}

// Kind returns Spatial6D.
func (m *Contact6D) Kind() Kind { return Spatial6D }

// NC returns 6.
func (m *Contact6D) NC() int { return 6 }

// NU returns the control dimension.
func (m *Contact6D) NU() int { return m.nu }

// Frame returns the bound frame.
func (m *Contact6D) Frame() body.FrameID { return m.frame }

// Convention returns the reference-frame convention.
func (m *Contact6D) Convention() body.ReferenceFrame { return m.rf }

// State returns the multibody state.
func (m *Contact6D) State() *state.Multibody { return m.st }

// CreateData allocates the per-node workspace.
func (m *Contact6D) CreateData(bd body.Data) *Data {
	return newData(m, bd)
}

// placementError returns the LOCAL-frame placement error against the
// reference: translation in the frame's axes, rotation as a log vector.
func (m *Contact6D) placementError(d *Data) (eLin, eRot r3.Vector) {
	oMf := d.Body.FramePlacement(m.frame)
	eLin = oMf.RotateVecInv(oMf.Translation().Sub(m.ref.Translation()))
	var rErr mat.Dense
	rErr.Mul(m.ref.Rotation().T(), oMf.Rotation())
	eRot = spatial.LogRotation(&rErr)
	return eLin, eRot
}

// Calc computes the 6-row constraint Jacobian and drift at x.
func (m *Contact6D) Calc(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)

	drift := d.Body.FrameAcceleration(m.frame)
	if m.gains.Kv != 0 {
		v := d.Body.FrameVelocity(m.frame)
		drift.Linear = drift.Linear.Add(v.Linear.Mul(m.gains.Kv))
		drift.Angular = drift.Angular.Add(v.Angular.Mul(m.gains.Kv))
	}
	if m.gains.Kp != 0 {
		eLin, eRot := m.placementError(d)
		drift.Linear = drift.Linear.Add(eLin.Mul(m.gains.Kp))
		drift.Angular = drift.Angular.Add(eRot.Mul(m.gains.Kp))
	}
	d.driftLocal.CopyVec(drift.Vector())

	if m.rf == body.Local {
		d.Jc.Copy(fJf)
		d.Drift.CopyVec(d.driftLocal)
		return
	}
	lwa := conventionPlacement(m.rf, d)
	lwa.RotateJacobian(d.Jc, fJf)
	d.Drift.CopyVec(lwa.ActMotion(drift).Vector())
}

// CalcDiff computes the drift partials with respect to configuration and
// velocity, injecting the skew corrections required by the world-aligned
// conventions.
func (m *Contact6D) CalcDiff(d *Data, x mat.Vector) {
	fJf := d.Body.FrameJacobian(m.frame)
	vdq, adq, adv := d.Body.FrameAccelerationDerivatives(m.frame)
	d.vdq.Copy(vdq)
	d.adq.Copy(adq)
	d.adv.Copy(adv)
	jw := sliceRows(fJf, 3, 6)

	d.DriftDq.Zero()
	d.DriftDv.Zero()
	d.DriftDq.Copy(d.adq)
	d.DriftDv.Copy(d.adv)
	if m.gains.Kv != 0 {
		var t mat.Dense
		t.Scale(m.gains.Kv, d.vdq)
		d.DriftDq.Add(d.DriftDq, &t)
		t.Scale(m.gains.Kv, fJf)
		d.DriftDv.Add(d.DriftDv, &t)
	}
	if m.gains.Kp != 0 {
		eLin, eRot := m.placementError(d)
		// de_lin/dq = Jv + S(e_lin) Jw, de_rot/dq = Jlog(e_rot) Jw.
		var deLin mat.Dense
		deLin.Mul(spatial.Skew(eLin), jw)
		deLin.Add(&deLin, sliceRows(fJf, 0, 3))
		deLin.Scale(m.gains.Kp, &deLin)
		top := sliceRows(d.DriftDq, 0, 3)
		top.Add(top, &deLin)

		var deRot mat.Dense
		deRot.Mul(spatial.JLogRotation(eRot), jw)
		deRot.Scale(m.gains.Kp, &deRot)
		bottom := sliceRows(d.DriftDq, 3, 6)
		bottom.Add(bottom, &deRot)
	}

	if m.rf == body.Local {
		return
	}
	driftLocal := spatial.MotionFromVec(d.driftLocal)
	worldDriftCorrection(sliceRows(d.DriftDq, 0, 3), driftLocal.Linear, jw)
	worldDriftCorrection(sliceRows(d.DriftDq, 3, 6), driftLocal.Angular, jw)
	lwa := conventionPlacement(m.rf, d)
	lwa.RotateJacobian(d.DriftDq, d.DriftDq)
	lwa.RotateJacobian(d.DriftDv, d.DriftDv)
}

// UpdateForce re-expresses a 6-D constraint force in the LOCAL frame and at
// the supporting joint, regardless of the reporting convention.
func (m *Contact6D) UpdateForce(d *Data, force mat.Vector) error {
	if force.Len() != 6 {
		return errors.Wrapf(errForceDim, "contact at %q expects 6, got %d", m.st.Model().FrameName(m.frame), force.Len())
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
