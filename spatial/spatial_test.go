package spatial_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/spatial"
)

func rotZ(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

func TestSkewMatchesCrossProduct(t *testing.T) {
	v := r3.Vector{X: 1, Y: -2, Z: 3}
	w := r3.Vector{X: 0.5, Y: 4, Z: -1}
	s := spatial.Skew(v)

	var got mat.VecDense
	got.MulVec(s, mat.NewVecDense(3, []float64{w.X, w.Y, w.Z}))
	want := v.Cross(w)

	test.That(t, got.AtVec(0), test.ShouldAlmostEqual, want.X)
	test.That(t, got.AtVec(1), test.ShouldAlmostEqual, want.Y)
	test.That(t, got.AtVec(2), test.ShouldAlmostEqual, want.Z)
}

func TestActMotionMatchesActionMatrix(t *testing.T) {
	p := spatial.NewPlacement(rotZ(0.7), r3.Vector{X: 0.1, Y: -0.3, Z: 0.8})
	m := spatial.Motion{
		Linear:  r3.Vector{X: 1, Y: 2, Z: 3},
		Angular: r3.Vector{X: -0.5, Y: 0.25, Z: 1},
	}

	direct := p.ActMotion(m).Vector()
	var viaMatrix mat.VecDense
	viaMatrix.MulVec(p.ActionMatrix(), m.Vector())

	for i := 0; i < 6; i++ {
		test.That(t, direct.AtVec(i), test.ShouldAlmostEqual, viaMatrix.AtVec(i), 1e-12)
	}
}

func TestActInvMotionRoundTrip(t *testing.T) {
	p := spatial.NewPlacement(rotZ(-1.2), r3.Vector{X: 2, Y: 0, Z: -1})
	m := spatial.Motion{
		Linear:  r3.Vector{X: 0.3, Y: -0.4, Z: 0.5},
		Angular: r3.Vector{X: 1, Y: 1, Z: -2},
	}

	back := p.ActInvMotion(p.ActMotion(m)).Vector()
	orig := m.Vector()
	for i := 0; i < 6; i++ {
		test.That(t, back.AtVec(i), test.ShouldAlmostEqual, orig.AtVec(i), 1e-12)
	}
}

func TestForceMotionPowerInvariance(t *testing.T) {
	// The dual force action preserves the power pairing <f, v>.
	p := spatial.NewPlacement(rotZ(0.4), r3.Vector{X: -1, Y: 0.5, Z: 2})
	m := spatial.Motion{
		Linear:  r3.Vector{X: 0.1, Y: 0.2, Z: 0.3},
		Angular: r3.Vector{X: -0.2, Y: 0.6, Z: 0.9},
	}
	f := spatial.Force{
		Linear:  r3.Vector{X: 3, Y: -1, Z: 2},
		Angular: r3.Vector{X: 0.5, Y: 0.5, Z: -0.5},
	}

	before := mat.Dot(f.Vector(), m.Vector())
	after := mat.Dot(p.ActForce(f).Vector(), p.ActMotion(m).Vector())
	test.That(t, after, test.ShouldAlmostEqual, before, 1e-12)
}

func TestComposeInverseIsIdentity(t *testing.T) {
	p := spatial.NewPlacement(rotZ(2.1), r3.Vector{X: 0.4, Y: -1.5, Z: 0.2})
	id := p.Compose(p.Inverse())

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, id.Rotation().At(i, j), test.ShouldAlmostEqual, want, 1e-12)
		}
	}
	test.That(t, id.Translation().Norm(), test.ShouldAlmostEqual, 0, 1e-12)
}

func TestLogRotationAboutZ(t *testing.T) {
	theta := 0.9
	phi := spatial.LogRotation(rotZ(theta))
	test.That(t, phi.X, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, phi.Y, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, phi.Z, test.ShouldAlmostEqual, theta, 1e-12)
}

func TestLogRotationIdentity(t *testing.T) {
	phi := spatial.LogRotation(rotZ(0))
	test.That(t, phi.Norm(), test.ShouldAlmostEqual, 0, 1e-12)
}

func TestJLogRotationAtZeroIsIdentity(t *testing.T) {
	j := spatial.JLogRotation(r3.Vector{})
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			want := 0.0
			if i == k {
				want = 1
			}
			test.That(t, j.At(i, k), test.ShouldAlmostEqual, want, 1e-12)
		}
	}
}

func TestRotateJacobianAliasing(t *testing.T) {
	p := spatial.NewPlacement(rotZ(0.3), r3.Vector{})
	src := mat.NewDense(6, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, 0,
		0, 2,
		1, -1,
	})
	want := mat.NewDense(6, 2, nil)
	p.RotateJacobian(want, src)

	// In-place application must match the out-of-place result.
	p.RotateJacobian(src, src)
	for i := 0; i < 6; i++ {
		for j := 0; j < 2; j++ {
			test.That(t, src.At(i, j), test.ShouldAlmostEqual, want.At(i, j), 1e-12)
		}
	}
}
