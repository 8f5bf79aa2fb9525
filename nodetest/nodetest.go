// Package nodetest provides a deterministic stub of the external kinematics
// engine: prescribed frame placements, Jacobians and partials over a flat
// configuration space with nq = nv. Package tests across the evaluation layer
// share it so every expected value can be computed by hand.
package nodetest

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// FrameSpec prescribes one frame's kinematic quantities at the evaluation
// point. The frame's spatial velocity is derived as J v, so velocity-level
// quantities stay consistent with the Jacobian by construction. Nil partials
// default to zero.
type FrameSpec struct {
	Name string
	// Placement is the frame's world placement.
	Placement spatial.Placement
	// Acceleration is the LOCAL drift acceleration.
	Acceleration spatial.Motion
	// Jacobian is the 6 x nv LOCAL frame Jacobian.
	Jacobian *mat.Dense
	// VdQ is the configuration partial of the frame velocity; the velocity
	// partial is the Jacobian itself.
	VdQ *mat.Dense
	// AdQ and AdV are the drift-acceleration partials.
	AdQ *mat.Dense
	AdV *mat.Dense
	// Offset is the fixed joint-to-frame placement.
	Offset spatial.Placement
}

// Model is a stub body.Model over a flat configuration space.
type Model struct {
	nv      int
	frames  []FrameSpec
	mass    []float64
	gravity []float64
}

// Option adjusts a stub model.
type Option func(*Model)

// WithMassDiagonal prescribes the diagonal of the mass matrix.
func WithMassDiagonal(d []float64) Option {
	return func(m *Model) { m.mass = d }
}

// WithGravity prescribes the constant generalized gravity torque.
func WithGravity(g []float64) Option {
	return func(m *Model) { m.gravity = g }
}

// NewModel builds a stub model. The mass matrix defaults to identity and the
// gravity torque to zero.
func NewModel(nv int, frames []FrameSpec, opts ...Option) *Model {
	m := &Model{nv: nv, frames: frames}
	for _, opt := range opts {
		opt(m)
	}
	if m.mass == nil {
		m.mass = make([]float64, nv)
		for i := range m.mass {
			m.mass[i] = 1
		}
	}
	if m.gravity == nil {
		m.gravity = make([]float64, nv)
	}
	for i := range m.frames {
		f := &m.frames[i]
		if f.Placement.Rotation() == nil {
			f.Placement = spatial.IdentityPlacement()
		}
		if f.Jacobian == nil {
			f.Jacobian = mat.NewDense(6, nv, nil)
		}
		if f.Offset.Rotation() == nil {
			f.Offset = spatial.IdentityPlacement()
		}
	}
	return m
}

// NQ returns the configuration dimension.
func (m *Model) NQ() int { return m.nv }

// NV returns the velocity dimension.
func (m *Model) NV() int { return m.nv }

// Neutral returns the zero configuration.
func (m *Model) Neutral() *mat.VecDense { return mat.NewVecDense(m.nv, nil) }

// Random returns a fixed, repeatable configuration.
func (m *Model) Random() *mat.VecDense {
	q := mat.NewVecDense(m.nv, nil)
	for i := 0; i < m.nv; i++ {
		q.SetVec(i, 0.1*float64(i+1))
	}
	return q
}

// Integrate adds on the flat space.
func (m *Model) Integrate(q, dq mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(m.nv, nil)
	for i := 0; i < m.nv; i++ {
		out.SetVec(i, q.AtVec(i)+dq.AtVec(i))
	}
	return out
}

// Difference subtracts on the flat space.
func (m *Model) Difference(q0, q1 mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(m.nv, nil)
	for i := 0; i < m.nv; i++ {
		out.SetVec(i, q1.AtVec(i)-q0.AtVec(i))
	}
	return out
}

// DIntegrate returns identity Jacobians.
func (m *Model) DIntegrate(q, dq mat.Vector) (*mat.Dense, *mat.Dense) {
	return eye(m.nv), eye(m.nv)
}

// FrameName resolves a frame id.
func (m *Model) FrameName(id body.FrameID) string {
	if int(id) < 0 || int(id) >= len(m.frames) {
		return "unknown"
	}
	return m.frames[id].Name
}

// FrameByName resolves a frame name.
func (m *Model) FrameByName(name string) (body.FrameID, bool) {
	for i, f := range m.frames {
		if f.Name == name {
			return body.FrameID(i), true
		}
	}
	return 0, false
}

// FramePlacementOffset returns the prescribed joint-to-frame offset.
func (m *Model) FramePlacementOffset(id body.FrameID) spatial.Placement {
	return m.frames[id].Offset
}

// NewData allocates a stub data cache.
func (m *Model) NewData() body.Data {
	return &data{model: m, v: mat.NewVecDense(m.nv, nil)}
}

type data struct {
	model *Model
	v     *mat.VecDense
}

func (d *data) ComputeAllTerms(q, v mat.Vector) {
	d.v.CopyVec(v)
}

func (d *data) FramePlacement(id body.FrameID) spatial.Placement {
	return d.model.frames[id].Placement
}

func (d *data) FrameVelocity(id body.FrameID) spatial.Motion {
	var out mat.VecDense
	out.MulVec(d.model.frames[id].Jacobian, d.v)
	return spatial.MotionFromVec(&out)
}

func (d *data) FrameAcceleration(id body.FrameID) spatial.Motion {
	return d.model.frames[id].Acceleration
}

func (d *data) FrameJacobian(id body.FrameID) *mat.Dense {
	return d.model.frames[id].Jacobian
}

func (d *data) FrameVelocityDerivatives(id body.FrameID) (*mat.Dense, *mat.Dense) {
	f := d.model.frames[id]
	return orZero(f.VdQ, d.model.nv), f.Jacobian
}

func (d *data) FrameAccelerationDerivatives(id body.FrameID) (*mat.Dense, *mat.Dense, *mat.Dense) {
	f := d.model.frames[id]
	return orZero(f.VdQ, d.model.nv), orZero(f.AdQ, d.model.nv), orZero(f.AdV, d.model.nv)
}

func (d *data) Mass() *mat.Dense {
	nv := d.model.nv
	m := mat.NewDense(nv, nv, nil)
	for i := 0; i < nv; i++ {
		m.Set(i, i, d.model.mass[i])
	}
	return m
}

func (d *data) Nonlinear() *mat.VecDense {
	return d.Gravity()
}

func (d *data) Gravity() *mat.VecDense {
	return mat.NewVecDense(d.model.nv, append([]float64{}, d.model.gravity...))
}

func (d *data) GravityDerivative() *mat.Dense {
	return mat.NewDense(d.model.nv, d.model.nv, nil)
}

func (d *data) RNEADerivatives(q, v, a mat.Vector, fext map[body.FrameID]spatial.Force) (*mat.Dense, *mat.Dense) {
	nv := d.model.nv
	return mat.NewDense(nv, nv, nil), mat.NewDense(nv, nv, nil)
}

// NewState builds a multibody state over a stub model.
func NewState(m *Model) *state.Multibody {
	return state.NewMultibody(m)
}

// NewCollector runs the stub kinematics at (q, v) and wraps the data in a
// collector, applying any extra capability blocks.
func NewCollector(m *Model, q, v mat.Vector, opts ...collector.Option) (*collector.Collector, body.Data) {
	bd := m.NewData()
	bd.ComputeAllTerms(q, v)
	all := append([]collector.Option{collector.WithKinematics(bd)}, opts...)
	return collector.New(all...), bd
}

func orZero(m *mat.Dense, nv int) *mat.Dense {
	if m == nil {
		return mat.NewDense(6, nv, nil)
	}
	return m
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
