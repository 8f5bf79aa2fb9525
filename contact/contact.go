// Package contact implements the holonomic contact and impulsive collision
// constraint models of the evaluation layer. Each model binds one frame of
// the kinematic model and computes the constraint Jacobian (with drift for
// contacts and pre-impulse velocity for impulses) and its derivatives in a
// configurable reference-frame convention, and the package's aggregates stack
// the active models into the system-level constraint consumed by constrained
// forward dynamics.
package contact

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Kind is the closed set of constraint geometries, carrying the constraint
// dimension as data so consumers match on the tag instead of casting.
type Kind int

const (
	// Point3D constrains the frame's linear motion.
	Point3D Kind = iota
	// Spatial6D constrains the frame's full spatial motion.
	Spatial6D
)

// Dim returns the constraint dimension of the kind.
func (k Kind) Dim() int {
	switch k {
	case Point3D:
		return 3
	case Spatial6D:
		return 6
	default:
		return 0
	}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Point3D:
		return "3d"
	case Spatial6D:
		return "6d"
	default:
		return "unknown"
	}
}

// Model is a frame-bound constraint: a holonomic contact (acceleration-level
// drift) or an impulse (velocity-level jump). Models are immutable after
// construction; all per-node mutation happens through the paired Data.
type Model interface {
	// Kind reports whether the constraint is 3-D or 6-D.
	Kind() Kind
	// NC returns the constraint dimension.
	NC() int
	// NU returns the control dimension the force Jacobians are sized for.
	NU() int
	// Frame returns the bound frame.
	Frame() body.FrameID
	// Convention returns the reference-frame convention of the constraint
	// rows and reported forces.
	Convention() body.ReferenceFrame
	// State returns the multibody state the model was built over.
	State() *state.Multibody

	// CreateData allocates the per-node workspace bound to a kinematics
	// cache, precomputing the fixed joint-to-frame placement and its
	// inverse action.
	CreateData(bd body.Data) *Data

	// Calc fills data.Jc and data.Drift at the state x.
	Calc(data *Data, x mat.Vector)
	// CalcDiff fills data.DriftDq and data.DriftDv; Calc must have run at
	// the same x.
	CalcDiff(data *Data, x mat.Vector)
	// UpdateForce re-expresses a constraint-space force (in the model's
	// convention) in the LOCAL frame and at the supporting joint.
	UpdateForce(data *Data, force mat.Vector) error
}

// Data is the per-node constraint workspace. It is owned exclusively by one
// node's evaluation and rebuilt or reset every iteration.
type Data struct {
	// Kind and Frame identify the producing model for consumers that look
	// contacts up through the shared data collector.
	Kind  Kind
	Frame body.FrameID

	// Body is the kinematics cache the constraint reads from.
	Body body.Data

	// JMF is the fixed joint-to-frame placement; FXJ its inverse 6x6
	// action. Both are precomputed at construction, never per evaluation.
	JMF spatial.Placement
	FXJ *mat.Dense

	// Jc is the nc x nv constraint Jacobian in the model's convention.
	Jc *mat.Dense
	// Drift is the nc drift: frame acceleration terms for contacts, the
	// pre-impulse frame velocity v0 for impulses.
	Drift *mat.VecDense
	// DriftDq and DriftDv are the nc x nv partials of Drift.
	DriftDq *mat.Dense
	DriftDv *mat.Dense

	// F is the constraint force in the model's reporting convention;
	// FLocal its LOCAL re-expression and FExt its action at the
	// supporting joint.
	F      spatial.Force
	FLocal spatial.Force
	FExt   spatial.Force
	// DfDx and DfDu are the force partials distributed by the node layer
	// after the constrained solve (nc x ndx and nc x nu).
	DfDx *mat.Dense
	DfDu *mat.Dense

	// Cached frame-level partials and skew blocks, zeroed at construction.
	vdq, vdv   *mat.Dense
	adq, adv   *mat.Dense
	vvSkew     *mat.Dense
	vwSkew     *mat.Dense
	driftLocal *mat.VecDense
}

func newData(m Model, bd body.Data) *Data {
	nc := m.NC()
	nv := m.State().NV()
	jmf := m.State().Model().FramePlacementOffset(m.Frame())
	d := &Data{
		Kind:       m.Kind(),
		Frame:      m.Frame(),
		Body:       bd,
		JMF:        jmf,
		FXJ:        jmf.Inverse().ActionMatrix(),
		Jc:         mat.NewDense(nc, nv, nil),
		Drift:      mat.NewVecDense(nc, nil),
		DriftDq:    mat.NewDense(nc, nv, nil),
		DriftDv:    mat.NewDense(nc, nv, nil),
		DfDx:       mat.NewDense(nc, m.State().NDX(), nil),
		vdq:        mat.NewDense(6, nv, nil),
		vdv:        mat.NewDense(6, nv, nil),
		adq:        mat.NewDense(6, nv, nil),
		adv:        mat.NewDense(6, nv, nil),
		vvSkew:     mat.NewDense(3, 3, nil),
		vwSkew:     mat.NewDense(3, 3, nil),
		driftLocal: mat.NewVecDense(nc, nil),
	}
	// Impulse models carry no control, hence no DfDu block.
	if m.NU() > 0 {
		d.DfDu = mat.NewDense(nc, m.NU(), nil)
	}
	return d
}

// conventionPlacement returns the rotation-only placement converting LOCAL
// quantities into the model's convention. Both WORLD and LOCAL_WORLD_ALIGNED
// express the constraint with world-aligned axes at the frame origin, so the
// translation offset drops out of the constraint rows.
func conventionPlacement(rf body.ReferenceFrame, d *Data) spatial.Placement {
	if rf == body.Local {
		return spatial.IdentityPlacement()
	}
	return d.Body.FramePlacement(d.Frame).RotationOnly()
}

// worldDriftCorrection applies, in place on a local 3-row derivative block,
// the skew correction -S(b) * Jw accounting for the frame's own rotation when
// the local quantity b is re-expressed along world axes.
func worldDriftCorrection(block *mat.Dense, b r3.Vector, jwLocal mat.Matrix) {
	s := spatial.Skew(b)
	var corr mat.Dense
	corr.Mul(s, jwLocal)
	block.Sub(block, &corr)
}

// sliceRows views rows [i, j) of a 6 x nv matrix.
func sliceRows(m *mat.Dense, i, j int) *mat.Dense {
	_, n := m.Dims()
	return m.Slice(i, j, 0, n).(*mat.Dense)
}

var errForceDim = errors.New("constraint force has the wrong dimension")
