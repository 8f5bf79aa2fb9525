package spatial

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Placement is a rigid-body transform (rotation + translation) between two
// frames. The rotation is stored as a dense 3x3 so it can feed Jacobian block
// algebra directly.
type Placement struct {
	rot *mat.Dense
	tr  r3.Vector
}

// NewPlacement builds a placement from a 3x3 rotation and a translation. The
// rotation matrix is copied.
func NewPlacement(rot mat.Matrix, tr r3.Vector) Placement {
	r := mat.NewDense(3, 3, nil)
	r.Copy(rot)
	return Placement{rot: r, tr: tr}
}

// IdentityPlacement returns the identity transform.
func IdentityPlacement() Placement {
	return Placement{rot: identity3(), tr: r3.Vector{}}
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Rotation returns the placement's rotation matrix. Callers must not mutate it.
func (p Placement) Rotation() *mat.Dense {
	if p.rot == nil {
		return identity3()
	}
	return p.rot
}

// Translation returns the placement's translation.
func (p Placement) Translation() r3.Vector {
	return p.tr
}

// RotationOnly drops the translation, keeping the orientation. This is the
// placement used by the LOCAL_WORLD_ALIGNED convention.
func (p Placement) RotationOnly() Placement {
	return Placement{rot: p.Rotation(), tr: r3.Vector{}}
}

// Compose returns p * q, the transform mapping q's child frame through p.
func (p Placement) Compose(q Placement) Placement {
	rot := mat.NewDense(3, 3, nil)
	rot.Mul(p.Rotation(), q.Rotation())
	return Placement{rot: rot, tr: p.RotateVec(q.tr).Add(p.tr)}
}

// Inverse returns the transform in the opposite direction.
func (p Placement) Inverse() Placement {
	rot := mat.NewDense(3, 3, nil)
	rot.CloneFrom(p.Rotation().T())
	inv := Placement{rot: rot}
	inv.tr = inv.RotateVec(p.tr).Mul(-1)
	return inv
}

// RotateVec applies only the rotation to a 3-vector.
func (p Placement) RotateVec(v r3.Vector) r3.Vector {
	return mulVec3(p.Rotation(), v)
}

// RotateVecInv applies the inverse rotation to a 3-vector.
func (p Placement) RotateVecInv(v r3.Vector) r3.Vector {
	r := p.Rotation()
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(1, 0)*v.Y + r.At(2, 0)*v.Z,
		Y: r.At(0, 1)*v.X + r.At(1, 1)*v.Y + r.At(2, 1)*v.Z,
		Z: r.At(0, 2)*v.X + r.At(1, 2)*v.Y + r.At(2, 2)*v.Z,
	}
}

func mulVec3(r *mat.Dense, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.At(0, 0)*v.X + r.At(0, 1)*v.Y + r.At(0, 2)*v.Z,
		Y: r.At(1, 0)*v.X + r.At(1, 1)*v.Y + r.At(1, 2)*v.Z,
		Z: r.At(2, 0)*v.X + r.At(2, 1)*v.Y + r.At(2, 2)*v.Z,
	}
}

// ActMotion maps a spatial motion expressed in the child frame into the
// parent frame: v' = R v + t x (R w), w' = R w.
func (p Placement) ActMotion(m Motion) Motion {
	w := p.RotateVec(m.Angular)
	return Motion{
		Linear:  p.RotateVec(m.Linear).Add(p.tr.Cross(w)),
		Angular: w,
	}
}

// ActInvMotion maps a spatial motion from the parent frame into the child.
func (p Placement) ActInvMotion(m Motion) Motion {
	return Motion{
		Linear:  p.RotateVecInv(m.Linear.Sub(p.tr.Cross(m.Angular))),
		Angular: p.RotateVecInv(m.Angular),
	}
}

// ActForce maps a spatial force expressed in the child frame into the parent
// frame: f' = R f, tau' = R tau + t x (R f).
func (p Placement) ActForce(f Force) Force {
	lin := p.RotateVec(f.Linear)
	return Force{
		Linear:  lin,
		Angular: p.RotateVec(f.Angular).Add(p.tr.Cross(lin)),
	}
}

// ActInvForce maps a spatial force from the parent frame into the child.
func (p Placement) ActInvForce(f Force) Force {
	return Force{
		Linear:  p.RotateVecInv(f.Linear),
		Angular: p.RotateVecInv(f.Angular.Sub(p.tr.Cross(f.Linear))),
	}
}

// ActionMatrix returns the 6x6 motion action [R S(t)R; 0 R].
func (p Placement) ActionMatrix() *mat.Dense {
	x := mat.NewDense(6, 6, nil)
	r := p.Rotation()
	x.Slice(0, 3, 0, 3).(*mat.Dense).Copy(r)
	x.Slice(3, 6, 3, 6).(*mat.Dense).Copy(r)
	sr := mat.NewDense(3, 3, nil)
	sr.Mul(Skew(p.tr), r)
	x.Slice(0, 3, 3, 6).(*mat.Dense).Copy(sr)
	return x
}

// RotateJacobian writes blockdiag(R, R) * src into dst, both 6 x n. dst and
// src may alias.
func (p Placement) RotateJacobian(dst, src *mat.Dense) {
	r, n := src.Dims()
	if r != 6 {
		panic("spatial: jacobian must have six rows")
	}
	var out *mat.Dense
	if dst == src {
		out = mat.NewDense(6, n, nil)
	} else {
		out = dst
	}
	out.Slice(0, 3, 0, n).(*mat.Dense).Mul(p.Rotation(), src.Slice(0, 3, 0, n))
	out.Slice(3, 6, 0, n).(*mat.Dense).Mul(p.Rotation(), src.Slice(3, 6, 0, n))
	if dst == src {
		dst.Copy(out)
	}
}
