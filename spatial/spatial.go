// Package spatial implements the small slice of 6-D spatial algebra needed by
// the contact and impulse constraint layer: motion/force pairs, SE(3)
// placements with their motion and force actions, and skew-symmetric helpers
// for differentiating world-referenced quantities.
package spatial

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Motion is a spatial velocity or acceleration, linear part first.
type Motion struct {
	Linear  r3.Vector
	Angular r3.Vector
}

// Force is a spatial force (force, torque), dual to Motion.
type Force struct {
	Linear  r3.Vector
	Angular r3.Vector
}

// ZeroMotion returns the zero spatial motion.
func ZeroMotion() Motion {
	return Motion{}
}

// ZeroForce returns the zero spatial force.
func ZeroForce() Force {
	return Force{}
}

// Vector flattens the motion into a 6-vector, linear rows first.
func (m Motion) Vector() *mat.VecDense {
	return mat.NewVecDense(6, []float64{
		m.Linear.X, m.Linear.Y, m.Linear.Z,
		m.Angular.X, m.Angular.Y, m.Angular.Z,
	})
}

// MotionFromVec builds a Motion from the first six entries of v.
func MotionFromVec(v mat.Vector) Motion {
	return Motion{
		Linear:  r3.Vector{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)},
		Angular: r3.Vector{X: v.AtVec(3), Y: v.AtVec(4), Z: v.AtVec(5)},
	}
}

// Vector flattens the force into a 6-vector, linear rows first.
func (f Force) Vector() *mat.VecDense {
	return mat.NewVecDense(6, []float64{
		f.Linear.X, f.Linear.Y, f.Linear.Z,
		f.Angular.X, f.Angular.Y, f.Angular.Z,
	})
}

// ForceFromVec builds a Force from the first six entries of v.
func ForceFromVec(v mat.Vector) Force {
	return Force{
		Linear:  r3.Vector{X: v.AtVec(0), Y: v.AtVec(1), Z: v.AtVec(2)},
		Angular: r3.Vector{X: v.AtVec(3), Y: v.AtVec(4), Z: v.AtVec(5)},
	}
}

// Skew returns the skew-symmetric cross-product matrix S such that
// S*w == v x w.
func Skew(v r3.Vector) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}
