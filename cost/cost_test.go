package cost_test

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/activation"
	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/nodetest"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

func flatFixture() (*nodetest.Model, *state.Multibody) {
	m := nodetest.NewModel(2, []nodetest.FrameSpec{
		{Name: "foot", Jacobian: mat.NewDense(6, 2, nil)},
	})
	return m, state.NewMultibody(m)
}

// contactCollector wires a single contact of the requested kind at "foot"
// into a fresh collector.
func contactCollector(t *testing.T, m *nodetest.Model, st *state.Multibody, kind contact.Kind) (*collector.Collector, *contact.SetData) {
	t.Helper()
	logger := golog.NewTestLogger(t)
	frame, ok := m.FrameByName("foot")
	test.That(t, ok, test.ShouldBeTrue)

	set := contact.NewSet(st, st.NV(), logger)
	cm, err := contact.NewContact(kind, st, contact.Options{Frame: frame, Convention: body.Local, NU: st.NV()})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add("foot", cm), test.ShouldBeNil)

	bd := m.NewData()
	x := st.Zero()
	q, v := st.Split(x)
	bd.ComputeAllTerms(q, v)
	sd := set.CreateData(bd)
	test.That(t, set.Calc(sd, x), test.ShouldBeNil)
	return collector.New(collector.WithKinematics(bd), collector.WithContacts(sd)), sd
}

func TestTermRejectsDimensionMismatch(t *testing.T) {
	_, st := flatFixture()
	res, err := cost.NewStateResidual(st, st.Zero(), st.NV())
	test.That(t, err, test.ShouldBeNil)

	act, err := activation.NewQuad(res.NR() + 1)
	test.That(t, err, test.ShouldBeNil)
	_, err = cost.NewTerm(act, res)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "residual")
}

func TestStateCostGaussNewton(t *testing.T) {
	_, st := flatFixture()
	res, err := cost.NewStateResidual(st, st.Zero(), st.NV())
	test.That(t, err, test.ShouldBeNil)
	act, err := activation.NewQuad(res.NR())
	test.That(t, err, test.ShouldBeNil)
	term, err := cost.NewTerm(act, res)
	test.That(t, err, test.ShouldBeNil)

	d, err := term.CreateData(collector.New())
	test.That(t, err, test.ShouldBeNil)

	dx := mat.NewVecDense(st.NDX(), []float64{0.5, -0.25, 1, 2})
	x := st.Integrate(st.Zero(), dx)
	u := mat.NewVecDense(st.NV(), nil)

	test.That(t, term.Calc(d, x, u), test.ShouldBeNil)
	test.That(t, d.Value, test.ShouldAlmostEqual, 0.5*mat.Dot(dx, dx), 1e-12)

	test.That(t, term.CalcDiff(d, x, u), test.ShouldBeNil)
	ndx := st.NDX()
	for i := 0; i < ndx; i++ {
		test.That(t, d.Lx.AtVec(i), test.ShouldAlmostEqual, dx.AtVec(i), 1e-12)
		for j := 0; j < ndx; j++ {
			// Gauss-Newton Hessian: symmetric, identity on the flat space.
			test.That(t, d.Lxx.At(i, j), test.ShouldAlmostEqual, d.Lxx.At(j, i), 1e-12)
			want := 0.0
			if i == j {
				want = 1
			}
			test.That(t, d.Lxx.At(i, j), test.ShouldAlmostEqual, want, 1e-12)
		}
	}
}

func TestSumRemoveReAddReproduces(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, st := flatFixture()
	nu := st.NV()
	sum := cost.NewSum(st, nu, logger)

	mkTerm := func() *cost.Term {
		res, err := cost.NewStateResidual(st, st.Zero(), nu)
		test.That(t, err, test.ShouldBeNil)
		act, err := activation.NewQuad(res.NR())
		test.That(t, err, test.ShouldBeNil)
		term, err := cost.NewTerm(act, res)
		test.That(t, err, test.ShouldBeNil)
		return term
	}
	ctrl := func() *cost.Term {
		res, err := cost.NewZeroControlResidual(st, nu)
		test.That(t, err, test.ShouldBeNil)
		act, err := activation.NewQuad(nu)
		test.That(t, err, test.ShouldBeNil)
		term, err := cost.NewTerm(act, res)
		test.That(t, err, test.ShouldBeNil)
		return term
	}

	test.That(t, sum.AddCost("track", mkTerm(), 2), test.ShouldBeNil)
	test.That(t, sum.AddCost("effort", ctrl(), 0.5), test.ShouldBeNil)

	x := st.Integrate(st.Zero(), mat.NewVecDense(st.NDX(), []float64{1, 0, -1, 0.5}))
	u := mat.NewVecDense(nu, []float64{0.3, -0.7})

	d, err := sum.CreateData(collector.New())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.Calc(d, x, u), test.ShouldBeNil)
	before := d.Value

	test.That(t, sum.RemoveCost("track"), test.ShouldBeNil)
	test.That(t, sum.AddCost("track", mkTerm(), 2), test.ShouldBeNil)
	d2, err := sum.CreateData(collector.New())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sum.Calc(d2, x, u), test.ShouldBeNil)
	test.That(t, d2.Value, test.ShouldAlmostEqual, before, 1e-12)
}

func TestSumRegistrationErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	_, st := flatFixture()
	nu := st.NV()
	sum := cost.NewSum(st, nu, logger)

	res, err := cost.NewStateResidual(st, st.Zero(), nu)
	test.That(t, err, test.ShouldBeNil)
	act, err := activation.NewQuad(res.NR())
	test.That(t, err, test.ShouldBeNil)
	term, err := cost.NewTerm(act, res)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, sum.AddCost("a", term, 1), test.ShouldBeNil)
	err = sum.AddCost("a", term, 1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already registered")

	err = sum.AddCost("b", term, -1)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "negative weight")

	err = sum.RemoveCost("missing")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCoPResidualRejectsPointContact(t *testing.T) {
	m, st := flatFixture()
	shared, _ := contactCollector(t, m, st, contact.Point3D)
	frame, _ := m.FrameByName("foot")

	support, err := cost.NewCoPSupport(eye3(), 0.2, 0.1)
	test.That(t, err, test.ShouldBeNil)
	res, err := cost.NewCoPResidual(st, frame, support, st.NV())
	test.That(t, err, test.ShouldBeNil)

	_, err = res.CreateData(shared)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "6d")
}

func TestCoPResidualAcceptsSpatialContact(t *testing.T) {
	m, st := flatFixture()
	shared, sd := contactCollector(t, m, st, contact.Spatial6D)
	frame, _ := m.FrameByName("foot")

	support, err := cost.NewCoPSupport(eye3(), 0.2, 0.1)
	test.That(t, err, test.ShouldBeNil)
	res, err := cost.NewCoPResidual(st, frame, support, st.NV())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.NR(), test.ShouldEqual, 4)

	d, err := res.CreateData(shared)
	test.That(t, err, test.ShouldBeNil)

	// A centered vertical push keeps every support row strictly negative.
	sd.Contacts["foot"].F = spatial.ForceFromVec(mat.NewVecDense(6, []float64{0, 0, 10, 0, 0, 0}))
	x := st.Zero()
	u := mat.NewVecDense(st.NV(), nil)
	test.That(t, res.Calc(d, x, u), test.ShouldBeNil)
	for i := 0; i < 4; i++ {
		test.That(t, d.R.AtVec(i), test.ShouldBeLessThan, 0.0)
	}
}

func TestContactForceResidual(t *testing.T) {
	m, st := flatFixture()
	shared, sd := contactCollector(t, m, st, contact.Point3D)
	frame, _ := m.FrameByName("foot")

	// The declared kind must match the active constraint.
	res6, err := cost.NewContactForceResidual(st, frame, spatial.Force{}, contact.Spatial6D, st.NV())
	test.That(t, err, test.ShouldBeNil)
	_, err = res6.CreateData(shared)
	test.That(t, err, test.ShouldNotBeNil)

	fref := spatial.ForceFromVec(mat.NewVecDense(6, []float64{1, 0, 5, 0, 0, 0}))
	res, err := cost.NewContactForceResidual(st, frame, fref, contact.Point3D, st.NV())
	test.That(t, err, test.ShouldBeNil)
	d, err := res.CreateData(shared)
	test.That(t, err, test.ShouldBeNil)

	sd.Contacts["foot"].F = spatial.ForceFromVec(mat.NewVecDense(6, []float64{1.5, -1, 5, 0, 0, 0}))
	x := st.Zero()
	u := mat.NewVecDense(st.NV(), nil)
	test.That(t, res.Calc(d, x, u), test.ShouldBeNil)
	test.That(t, d.R.AtVec(0), test.ShouldAlmostEqual, 0.5)
	test.That(t, d.R.AtVec(1), test.ShouldAlmostEqual, -1)
	test.That(t, d.R.AtVec(2), test.ShouldAlmostEqual, 0)
}

func TestContactResidualNeedsConstraintAtFrame(t *testing.T) {
	_, st := flatFixture()
	frame := body.FrameID(0)
	res, err := cost.NewContactForceResidual(st, frame, spatial.Force{}, contact.Point3D, st.NV())
	test.That(t, err, test.ShouldBeNil)

	_, err = res.CreateData(collector.New())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no constraint available")
}

func TestFrictionConeGeometry(t *testing.T) {
	cone, err := cost.NewFrictionCone(eye3(), 0.7, 4, false, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cone.NR(), test.ShouldEqual, 5)

	// A vertical force lies strictly inside the cone.
	vertical := mat.NewVecDense(3, []float64{0, 0, 10})
	var r mat.VecDense
	r.MulVec(cone.Matrix(), vertical)
	for i := 0; i < 4; i++ {
		test.That(t, r.AtVec(i), test.ShouldBeLessThan, 0.0)
	}
	test.That(t, r.AtVec(4), test.ShouldAlmostEqual, 10)

	// A strongly tangential force violates at least one facet.
	sliding := mat.NewVecDense(3, []float64{20, 0, 1})
	r.MulVec(cone.Matrix(), sliding)
	violated := false
	for i := 0; i < 4; i++ {
		if r.AtVec(i) > 0 {
			violated = true
		}
	}
	test.That(t, violated, test.ShouldBeTrue)
}

func TestFrictionConeValidation(t *testing.T) {
	_, err := cost.NewFrictionCone(eye3(), -1, 4, false, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = cost.NewFrictionCone(eye3(), 0.5, 3, false, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = cost.NewFrictionCone(eye3(), 0.5, 4, false, -2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestWrenchConeGeometry(t *testing.T) {
	cone, err := cost.NewWrenchCone(eye3(), 0.6, 0.2, 0.1, false, 0)
	test.That(t, err, test.ShouldBeNil)

	rows, cols := cone.Matrix().Dims()
	test.That(t, rows, test.ShouldEqual, cost.WrenchConeRows)
	test.That(t, cols, test.ShouldEqual, 6)

	// A centered vertical wrench satisfies every inequality row.
	wrench := mat.NewVecDense(6, []float64{0, 0, 10, 0, 0, 0})
	var r mat.VecDense
	r.MulVec(cone.Matrix(), wrench)
	for i := 0; i < cost.WrenchConeRows-1; i++ {
		test.That(t, r.AtVec(i), test.ShouldBeLessThan, 0.0)
	}
	test.That(t, r.AtVec(cost.WrenchConeRows-1), test.ShouldAlmostEqual, 10)
}

func TestGravityResidualWithoutContacts(t *testing.T) {
	m := nodetest.NewModel(2, nil, nodetest.WithGravity([]float64{1, -2}))
	st := state.NewMultibody(m)

	act, err := actuation.NewFull(st.NV())
	test.That(t, err, test.ShouldBeNil)
	ad := actuation.NewData(act)
	u := mat.NewVecDense(2, []float64{3, 4})
	act.Calc(ad, u)

	bd := m.NewData()
	x := st.Zero()
	q, v := st.Split(x)
	bd.ComputeAllTerms(q, v)
	shared := collector.New(collector.WithKinematics(bd), collector.WithActuation(ad))

	res := cost.NewGravityResidual(st, st.NV())
	d, err := res.CreateData(shared)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, res.Calc(d, x, u), test.ShouldBeNil)
	test.That(t, d.R.AtVec(0), test.ShouldAlmostEqual, 2)
	test.That(t, d.R.AtVec(1), test.ShouldAlmostEqual, 6)

	act.CalcDiff(ad, u)
	test.That(t, res.CalcDiff(d, x, u), test.ShouldBeNil)
	test.That(t, d.Ru.At(0, 0), test.ShouldAlmostEqual, 1)
}

func TestGravityResidualRequiresActuation(t *testing.T) {
	m, st := flatFixture()
	bd := m.NewData()
	shared := collector.New(collector.WithKinematics(bd))

	res := cost.NewGravityResidual(st, st.NV())
	_, err := res.CreateData(shared)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "actuation")
}

func TestJointLimitsResidual(t *testing.T) {
	_, st := flatFixture()
	res := cost.NewJointLimitsResidual(st, st.NV())

	_, err := res.CreateData(collector.New())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "joint-limit")

	short := collector.New(collector.WithJointLimits(&collector.JointLimits{
		Lower: []float64{-1},
		Upper: []float64{1},
	}))
	_, err = res.CreateData(short)
	test.That(t, err, test.ShouldNotBeNil)

	nd := st.NDX()
	lower := make([]float64, nd)
	upper := make([]float64, nd)
	for i := range lower {
		lower[i], upper[i] = -1, 1
	}
	shared := collector.New(collector.WithJointLimits(&collector.JointLimits{Lower: lower, Upper: upper}))
	d, err := res.CreateData(shared)
	test.That(t, err, test.ShouldBeNil)

	dx := mat.NewVecDense(nd, []float64{0.1, 0.2, 0.3, 0.4})
	x := st.Integrate(st.Zero(), dx)
	test.That(t, res.Calc(d, x, nil), test.ShouldBeNil)
	for i := 0; i < nd; i++ {
		test.That(t, d.R.AtVec(i), test.ShouldAlmostEqual, dx.AtVec(i), 1e-12)
	}
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
