package state

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
)

// Multibody is the state of an articulated system: the configuration lives on
// the model's Lie-group-like manifold, the velocity in its tangent space. The
// state vector stacks [q; v] and the tangent stacks [dq; dv].
type Multibody struct {
	model body.Model
	nq    int
	nv    int
}

// NewMultibody builds a multibody state over the given model.
func NewMultibody(model body.Model) *Multibody {
	return &Multibody{model: model, nq: model.NQ(), nv: model.NV()}
}

// Model returns the underlying kinematic model.
func (s *Multibody) Model() body.Model { return s.model }

// NX returns nq + nv.
func (s *Multibody) NX() int { return s.nq + s.nv }

// NDX returns 2 * nv.
func (s *Multibody) NDX() int { return 2 * s.nv }

// NQ returns the configuration dimension.
func (s *Multibody) NQ() int { return s.nq }

// NV returns the velocity dimension.
func (s *Multibody) NV() int { return s.nv }

// Zero returns the neutral configuration with zero velocity.
func (s *Multibody) Zero() *mat.VecDense {
	x := mat.NewVecDense(s.NX(), nil)
	x.SliceVec(0, s.nq).(*mat.VecDense).CopyVec(s.model.Neutral())
	return x
}

// Rand returns a random configuration with velocity in [-1, 1)^nv.
func (s *Multibody) Rand(r *rand.Rand) *mat.VecDense {
	x := mat.NewVecDense(s.NX(), nil)
	x.SliceVec(0, s.nq).(*mat.VecDense).CopyVec(s.model.Random())
	for i := 0; i < s.nv; i++ {
		x.SetVec(s.nq+i, 2*r.Float64()-1)
	}
	return x
}

// Split views x as its configuration and velocity parts. Dense vectors are
// sliced without copying; any other mat.Vector implementation is copied
// first.
func (s *Multibody) Split(x mat.Vector) (q, v mat.Vector) {
	xd := asVecDense(x)
	return xd.SliceVec(0, s.nq), xd.SliceVec(s.nq, s.NX())
}

// Diff returns [q0 [-] q1; v1 - v0] in the tangent space.
func (s *Multibody) Diff(x0, x1 mat.Vector) *mat.VecDense {
	q0, v0 := s.Split(x0)
	q1, v1 := s.Split(x1)
	dx := mat.NewVecDense(s.NDX(), nil)
	dx.SliceVec(0, s.nv).(*mat.VecDense).CopyVec(s.model.Difference(q0, q1))
	dv := dx.SliceVec(s.nv, s.NDX()).(*mat.VecDense)
	dv.SubVec(v1, v0)
	return dx
}

// Integrate returns [q [+] dq; v + dv].
func (s *Multibody) Integrate(x, dx mat.Vector) *mat.VecDense {
	q, v := s.Split(x)
	dxd := asVecDense(dx)
	dq, dv := dxd.SliceVec(0, s.nv), dxd.SliceVec(s.nv, s.NDX())
	xn := mat.NewVecDense(s.NX(), nil)
	xn.SliceVec(0, s.nq).(*mat.VecDense).CopyVec(s.model.Integrate(q, dq))
	vn := xn.SliceVec(s.nq, s.NX()).(*mat.VecDense)
	vn.AddVec(v, dv)
	return xn
}

// JDiff returns the tangent-space Jacobian of Diff. With respect to the
// second argument it is blockdiag(inv(dIntegrate/ddq), I); with respect to
// the first it is the negated counterpart evaluated at the reversed
// difference.
func (s *Multibody) JDiff(x0, x1 mat.Vector, side Side) *mat.Dense {
	j := mat.NewDense(s.NDX(), s.NDX(), nil)
	if side == Second {
		q0, _ := s.Split(x0)
		q1, _ := s.Split(x1)
		dq := s.model.Difference(q0, q1)
		_, jdq := s.model.DIntegrate(q0, dq)
		setConfBlock(j, invOf(jdq), s.nv, 1)
		setVelIdentity(j, s.nv, 1)
		return j
	}
	q1, _ := s.Split(x1)
	q0, _ := s.Split(x0)
	dq := s.model.Difference(q1, q0)
	_, jdq := s.model.DIntegrate(q1, dq)
	setConfBlock(j, invOf(jdq), s.nv, -1)
	setVelIdentity(j, s.nv, -1)
	return j
}

// JIntegrate returns the tangent-space Jacobian of Integrate with respect to
// the chosen argument.
func (s *Multibody) JIntegrate(x, dx mat.Vector, side Side) *mat.Dense {
	q, _ := s.Split(x)
	dq := asVecDense(dx).SliceVec(0, s.nv)
	jq, jdq := s.model.DIntegrate(q, dq)
	j := mat.NewDense(s.NDX(), s.NDX(), nil)
	if side == First {
		setConfBlock(j, jq, s.nv, 1)
	} else {
		setConfBlock(j, jdq, s.nv, 1)
	}
	setVelIdentity(j, s.nv, 1)
	return j
}

func asVecDense(v mat.Vector) *mat.VecDense {
	if vd, ok := v.(*mat.VecDense); ok {
		return vd
	}
	vd := mat.NewVecDense(v.Len(), nil)
	vd.CopyVec(v)
	return vd
}

func invOf(m *mat.Dense) *mat.Dense {
	inv := mat.NewDense(m.RawMatrix().Rows, m.RawMatrix().Cols, nil)
	// A valid configuration keeps dIntegrate invertible; a singular block
	// indicates a structurally invalid state and surfaces as NaNs.
	_ = inv.Inverse(m)
	return inv
}

func setConfBlock(j, b *mat.Dense, nv int, sign float64) {
	dst := j.Slice(0, nv, 0, nv).(*mat.Dense)
	dst.Copy(b)
	if sign < 0 {
		dst.Scale(-1, dst)
	}
}

func setVelIdentity(j *mat.Dense, nv int, sign float64) {
	for i := 0; i < nv; i++ {
		j.Set(nv+i, nv+i, sign)
	}
}
