package spatial

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// LogRotation returns the rotation vector (axis * angle) of a rotation
// matrix.
func LogRotation(rot mat.Matrix) r3.Vector {
	tr := rot.At(0, 0) + rot.At(1, 1) + rot.At(2, 2)
	c := math.Max(-1, math.Min(1, (tr-1)/2))
	theta := math.Acos(c)
	vee := r3.Vector{
		X: rot.At(2, 1) - rot.At(1, 2),
		Y: rot.At(0, 2) - rot.At(2, 0),
		Z: rot.At(1, 0) - rot.At(0, 1),
	}
	if theta < 1e-8 {
		return vee.Mul(0.5)
	}
	return vee.Mul(theta / (2 * math.Sin(theta)))
}

// JLogRotation returns the Jacobian of LogRotation with respect to a
// body-frame angular perturbation, evaluated at the rotation vector phi.
func JLogRotation(phi r3.Vector) *mat.Dense {
	theta := phi.Norm()
	s := Skew(phi)
	s2 := mat.NewDense(3, 3, nil)
	s2.Mul(s, s)

	var c float64
	if theta < 1e-5 {
		c = 1.0 / 12
	} else {
		c = 1/(theta*theta) - (1+math.Cos(theta))/(2*theta*math.Sin(theta))
	}

	j := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		j.Set(i, i, 1)
	}
	half := mat.NewDense(3, 3, nil)
	half.Scale(0.5, s)
	j.Add(j, half)
	s2.Scale(c, s2)
	j.Add(j, s2)
	return j
}
