package node_test

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/activation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/node"
	"github.com/mechsys/optctrl/nodetest"
	"github.com/mechsys/optctrl/state"
)

func impulseFixture(t *testing.T) (*nodetest.Model, *state.Multibody, *contact.Set, *cost.Sum) {
	t.Helper()
	logger := golog.NewTestLogger(t)
	jac := mat.NewDense(6, 3, nil)
	for i := 0; i < 3; i++ {
		jac.Set(i, i, 1)
	}
	m := nodetest.NewModel(3, []nodetest.FrameSpec{{Name: "foot", Jacobian: jac}},
		nodetest.WithMassDiagonal([]float64{2, 3, 4}),
	)
	st := state.NewMultibody(m)
	frame, ok := m.FrameByName("foot")
	test.That(t, ok, test.ShouldBeTrue)

	set := contact.NewSet(st, 0, logger)
	imp, err := contact.NewImpulse(contact.Point3D, st, contact.Options{Frame: frame, Convention: body.Local})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add("foot", imp), test.ShouldBeNil)

	sum := cost.NewSum(st, 0, logger)
	res, err := cost.NewStateResidual(st, st.Zero(), 0)
	test.That(t, err, test.ShouldBeNil)
	act, err := activation.NewQuad(res.NR())
	test.That(t, err, test.ShouldBeNil)
	term, err := cost.NewTerm(act, res)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.AddCost("reg", term, 1), test.ShouldBeNil)
	return m, st, set, sum
}

func TestImpulseDynamicsMomentumAndRestitution(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, st, set, sum := impulseFixture(t)
	e := 0.5

	dyn, err := node.NewImpulseDynamics(st, set, sum, e, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dyn.NU(), test.ShouldEqual, 0)
	test.That(t, dyn.NOut(), test.ShouldEqual, st.NX())

	d, err := dyn.CreateData()
	test.That(t, err, test.ShouldBeNil)

	q := mat.NewVecDense(3, []float64{0.7, -0.1, 0.4})
	v := mat.NewVecDense(3, []float64{1, -2, 0.5})
	x := mat.NewVecDense(st.NX(), nil)
	x.SliceVec(0, 3).(*mat.VecDense).CopyVec(q)
	x.SliceVec(3, 6).(*mat.VecDense).CopyVec(v)

	test.That(t, dyn.Calc(d, x, nil), test.ShouldBeNil)

	// The configuration passes through unchanged.
	for i := 0; i < 3; i++ {
		test.That(t, d.Xout.AtVec(i), test.ShouldAlmostEqual, q.AtVec(i), 1e-12)
	}
	// With the frame fully pinned, Jc v+ = -e Jc v reduces to v+ = -e v.
	for i := 0; i < 3; i++ {
		test.That(t, d.Xout.AtVec(3+i), test.ShouldAlmostEqual, -e*v.AtVec(i), 1e-10)
	}

	// Momentum balance: M (v+ - v) = Jc' L, i.e. L = -(1+e) M v here.
	sd := d.Constraints
	test.That(t, sd.Active, test.ShouldEqual, 3)
	mass := []float64{2, 3, 4}
	for i := 0; i < 3; i++ {
		test.That(t, sd.FStack.AtVec(i), test.ShouldAlmostEqual, -(1+e)*mass[i]*v.AtVec(i), 1e-10)
	}
}

func TestImpulseDynamicsDerivatives(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, st, set, sum := impulseFixture(t)
	e := 0.3

	dyn, err := node.NewImpulseDynamics(st, set, sum, e, logger)
	test.That(t, err, test.ShouldBeNil)
	d, err := dyn.CreateData()
	test.That(t, err, test.ShouldBeNil)

	x := mat.NewVecDense(st.NX(), []float64{0.1, 0.2, 0.3, 1, -1, 2})
	test.That(t, dyn.Calc(d, x, nil), test.ShouldBeNil)
	test.That(t, dyn.CalcDiff(d, x, nil), test.ShouldBeNil)

	// Fx = [I 0; 0 -e I] on the pinned stub: the configuration block is the
	// identity and the velocity map is the pure restitution reflection.
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, d.Fx.At(i, j), test.ShouldAlmostEqual, want, 1e-10)
			test.That(t, d.Fx.At(i, 3+j), test.ShouldAlmostEqual, 0, 1e-10)
			test.That(t, d.Fx.At(3+i, j), test.ShouldAlmostEqual, 0, 1e-10)
			test.That(t, d.Fx.At(3+i, 3+j), test.ShouldAlmostEqual, -e*want, 1e-10)
		}
	}

	// dL/dv = -(1+e) M, distributed back onto the impulse data.
	dx := d.Constraints.Contacts["foot"].DfDx
	mass := []float64{2, 3, 4}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, dx.At(i, j), test.ShouldAlmostEqual, 0, 1e-10)
			want := 0.0
			if i == j {
				want = -(1 + e) * mass[i]
			}
			test.That(t, dx.At(i, 3+j), test.ShouldAlmostEqual, want, 1e-10)
		}
	}
}

func TestImpulseDynamicsConstructorValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, st, set, sum := impulseFixture(t)

	_, err := node.NewImpulseDynamics(st, set, sum, -0.1, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "restitution")

	_, err = node.NewImpulseDynamics(st, set, sum, 1.5, logger)
	test.That(t, err, test.ShouldNotBeNil)

	controlled := contact.NewSet(st, 2, logger)
	_, err = node.NewImpulseDynamics(st, controlled, sum, 0, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "control-free")
}
