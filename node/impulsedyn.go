package node

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/state"
)

// ImpulseDynamics evaluates an impulsive collision node: the post-impact
// velocity and contact impulses solving
//
//	[M  Jc'] [ v+]   [   M v   ]
//	[Jc  0 ] [-L ] = [ -e * v0 ]
//
// where e is the restitution coefficient, followed by the node's cost sum.
// The node is control-free; the configuration passes through unchanged and
// Xout is the full next state [q; v+].
type ImpulseDynamics struct {
	st          *state.Multibody
	impulses    *contact.Set
	costs       *cost.Sum
	restitution float64
	limits      *collector.JointLimits
	logger      golog.Logger
}

// ImpulseOption configures optional pieces of an impulse model.
type ImpulseOption func(*ImpulseDynamics)

// WithImpulseJointLimits attaches joint-limit bounds to the node's collector.
func WithImpulseJointLimits(jl *collector.JointLimits) ImpulseOption {
	return func(m *ImpulseDynamics) { m.limits = jl }
}

// NewImpulseDynamics builds an impulse-dynamics node model. The impulse stack
// must be control-free and share the state with the cost sum.
func NewImpulseDynamics(st *state.Multibody, impulses *contact.Set, costs *cost.Sum, restitution float64, logger golog.Logger, opts ...ImpulseOption) (*ImpulseDynamics, error) {
	if impulses.State() != st {
		return nil, errors.New("the impulse stack was built over a different state")
	}
	if impulses.NU() != 0 {
		return nil, errors.Errorf("an impulse stack must be control-free, got control dimension %d", impulses.NU())
	}
	if costs.State() != st {
		return nil, errors.New("the cost sum was built over a different state")
	}
	if costs.NU() != 0 {
		return nil, errors.Errorf("an impulse node is control-free, the cost sum expects control dimension %d", costs.NU())
	}
	if restitution < 0 || restitution > 1 {
		return nil, errors.Errorf("restitution must lie in [0, 1], got %g", restitution)
	}
	m := &ImpulseDynamics{st: st, impulses: impulses, costs: costs, restitution: restitution, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the state space.
func (m *ImpulseDynamics) State() state.State { return m.st }

// NU returns zero; impulse nodes are control-free.
func (m *ImpulseDynamics) NU() int { return 0 }

// NOut returns the full state dimension.
func (m *ImpulseDynamics) NOut() int { return m.st.NX() }

// Impulses returns the impulse stack.
func (m *ImpulseDynamics) Impulses() *contact.Set { return m.impulses }

// Costs returns the cost sum.
func (m *ImpulseDynamics) Costs() *cost.Sum { return m.costs }

// Restitution returns the restitution coefficient.
func (m *ImpulseDynamics) Restitution() float64 { return m.restitution }

// CreateData allocates the node workspace and binds every cost term to the
// shared collector.
func (m *ImpulseDynamics) CreateData() (*Data, error) {
	bd := m.st.Model().NewData()
	id := m.impulses.CreateData(bd)
	opts := []collector.Option{
		collector.WithKinematics(bd),
		collector.WithImpulses(id),
	}
	if m.limits != nil {
		opts = append(opts, collector.WithJointLimits(m.limits))
	}
	shared := collector.New(opts...)
	sd, err := m.costs.CreateData(shared)
	if err != nil {
		return nil, err
	}
	ndx := m.st.NDX()
	return &Data{
		Body:        bd,
		Constraints: id,
		Costs:       sd,
		Shared:      shared,
		Xout:        mat.NewVecDense(m.st.NX(), nil),
		Fx:          mat.NewDense(ndx, ndx, nil),
	}, nil
}

// Calc solves the impulse KKT system and evaluates the cost. u is ignored;
// pass nil.
func (m *ImpulseDynamics) Calc(d *Data, x, u mat.Vector) error {
	nv := m.st.NV()
	nq := m.st.NQ()
	q, v := m.st.Split(x)
	d.Body.ComputeAllTerms(q, v)
	if err := m.impulses.Calc(d.Constraints, x); err != nil {
		return err
	}

	nc := d.Constraints.Active
	d.resizeKKT(nv, nc, m.st.NDX(), 0)
	assembleKKT(d.kkt, d.Body.Mass(), d.Constraints.Jc, nv, nc)
	mv := mulVecNew(d.Body.Mass(), v)
	for i := 0; i < nv; i++ {
		d.rhs.SetVec(i, mv.AtVec(i))
	}
	for i := 0; i < nc; i++ {
		d.rhs.SetVec(nv+i, -m.restitution*d.Constraints.Drift.AtVec(i))
	}

	d.lu.Factorize(d.kkt)
	if err := d.lu.SolveVecTo(d.sol, false, d.rhs); err != nil {
		return errors.Wrap(err, "the impulse KKT system is singular")
	}
	d.Xout.SliceVec(0, nq).(*mat.VecDense).CopyVec(q)
	d.Xout.SliceVec(nq, m.st.NX()).(*mat.VecDense).CopyVec(d.sol.SliceVec(0, nv))
	if nc > 0 {
		lam := mat.NewVecDense(nc, nil)
		for i := 0; i < nc; i++ {
			lam.SetVec(i, -d.sol.AtVec(nv+i))
		}
		if err := m.impulses.UpdateForce(d.Constraints, lam); err != nil {
			return err
		}
	}

	if err := m.costs.Calc(d.Costs, x, nil); err != nil {
		return err
	}
	d.Cost = d.Costs.Value
	return nil
}

// CalcDiff assembles the next-state derivatives through the factored KKT
// inverse. The momentum balance is differentiated with inverse-dynamics
// partials at the velocity jump, with the gravity contribution removed since
// the impact is instantaneous. Calc must have run at x.
func (m *ImpulseDynamics) CalcDiff(d *Data, x, u mat.Vector) error {
	nv := m.st.NV()
	ndx := m.st.NDX()
	nc := d.Constraints.Active
	q, v := m.st.Split(x)

	if err := m.impulses.CalcDiff(d.Constraints, x); err != nil {
		return err
	}

	// d/dq of M(q)(v+ - v) - Jc' L, via RNEA partials at a = v+ - v under
	// the impulse forces, minus the gravity derivative.
	dv := mat.NewVecDense(nv, nil)
	vnext := d.Xout.SliceVec(m.st.NQ(), m.st.NX())
	dv.SubVec(vnext, v)
	zeroV := mat.NewVecDense(nv, nil)
	dtauDq, _ := d.Body.RNEADerivatives(q, zeroV, dv, d.Constraints.Fext)
	var momDq mat.Dense
	momDq.Sub(dtauDq, d.Body.GravityDerivative())

	if err := d.lu.SolveTo(d.kinv, false, identity(nv+nc)); err != nil {
		return errors.Wrap(err, "the impulse KKT system is singular")
	}
	vTau := d.kinv.Slice(0, nv, 0, nv)

	d.Fx.Zero()
	// The configuration passes through unchanged.
	for i := 0; i < nv; i++ {
		d.Fx.Set(i, i, 1)
	}
	// dv+/dq = -Kinv_v,tau dmom/dq - e Kinv_v,drift dv0/dq.
	d.Fx.Slice(nv, ndx, 0, nv).(*mat.Dense).Scale(-1, mulNew(vTau, &momDq))
	// dv+/dv = Kinv_v,tau M - e Kinv_v,drift Jc.
	d.Fx.Slice(nv, ndx, nv, ndx).(*mat.Dense).Copy(mulNew(vTau, d.Body.Mass()))
	if nc > 0 {
		vDrift := d.kinv.Slice(0, nv, nv, nv+nc)
		jcA := d.Constraints.Jc.Slice(0, nc, 0, nv)
		dv0Dq := d.Constraints.DriftDq.Slice(0, nc, 0, nv)
		sub := d.Fx.Slice(nv, ndx, 0, nv).(*mat.Dense)
		scaled := mulNew(vDrift, dv0Dq)
		scaled.Scale(m.restitution, scaled)
		sub.Sub(sub, scaled)
		sub = d.Fx.Slice(nv, ndx, nv, ndx).(*mat.Dense)
		scaled = mulNew(vDrift, jcA)
		scaled.Scale(m.restitution, scaled)
		sub.Sub(sub, scaled)

		// Impulse partials, distributed back to the constraint datas.
		lTau := d.kinv.Slice(nv, nv+nc, 0, nv)
		lDrift := d.kinv.Slice(nv, nv+nc, nv, nv+nc)
		d.dfDx.Slice(0, nc, 0, nv).(*mat.Dense).Copy(mulNew(lTau, &momDq))
		scaled = mulNew(lDrift, dv0Dq)
		scaled.Scale(m.restitution, scaled)
		addInPlace(d.dfDx.Slice(0, nc, 0, nv).(*mat.Dense), scaled)
		dldv := mulNew(lTau, d.Body.Mass())
		dldv.Scale(-1, dldv)
		scaled = mulNew(lDrift, jcA)
		scaled.Scale(m.restitution, scaled)
		dldv.Add(dldv, scaled)
		d.dfDx.Slice(0, nc, nv, ndx).(*mat.Dense).Copy(dldv)
		if err := m.impulses.UpdateForceDiff(d.Constraints, d.dfDx, nil); err != nil {
			return err
		}
	}

	return m.costs.CalcDiff(d.Costs, x, nil)
}

func mulVecNew(a mat.Matrix, b mat.Vector) *mat.VecDense {
	var t mat.VecDense
	t.MulVec(a, b)
	return &t
}
