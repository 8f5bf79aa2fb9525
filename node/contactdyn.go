package node

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/state"
)

// ContactFwdDynamics evaluates constrained forward dynamics: the generalized
// acceleration and contact forces solving the KKT system
//
//	[M  Jc'] [ a]   [tau - nle]
//	[Jc  0 ] [-f] = [   -a0   ]
//
// followed by the node's cost sum over the shared collector.
type ContactFwdDynamics struct {
	st       *state.Multibody
	act      actuation.Model
	contacts *contact.Set
	costs    *cost.Sum
	limits   *collector.JointLimits
	logger   golog.Logger
}

// Option configures optional pieces of a dynamics model.
type Option func(*ContactFwdDynamics)

// WithJointLimits attaches joint-limit bounds to the node's collector, for
// limit-barrier cost terms.
func WithJointLimits(jl *collector.JointLimits) Option {
	return func(m *ContactFwdDynamics) { m.limits = jl }
}

// NewContactFwdDynamics builds a contact forward-dynamics node model. The
// actuation, contact stack and cost sum must agree on the state and control
// dimensions.
func NewContactFwdDynamics(st *state.Multibody, act actuation.Model, contacts *contact.Set, costs *cost.Sum, logger golog.Logger, opts ...Option) (*ContactFwdDynamics, error) {
	if act.NV() != st.NV() {
		return nil, errors.Errorf("actuation spans %d velocities, the state has %d", act.NV(), st.NV())
	}
	if contacts.State() != st {
		return nil, errors.New("the contact stack was built over a different state")
	}
	if contacts.NU() != act.NU() {
		return nil, errors.Errorf("the contact stack expects control dimension %d, the actuation provides %d", contacts.NU(), act.NU())
	}
	if costs.State() != st {
		return nil, errors.New("the cost sum was built over a different state")
	}
	if costs.NU() != act.NU() {
		return nil, errors.Errorf("the cost sum expects control dimension %d, the actuation provides %d", costs.NU(), act.NU())
	}
	m := &ContactFwdDynamics{st: st, act: act, contacts: contacts, costs: costs, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the state space.
func (m *ContactFwdDynamics) State() state.State { return m.st }

// NU returns the control dimension.
func (m *ContactFwdDynamics) NU() int { return m.act.NU() }

// NOut returns the acceleration dimension.
func (m *ContactFwdDynamics) NOut() int { return m.st.NV() }

// Contacts returns the contact stack.
func (m *ContactFwdDynamics) Contacts() *contact.Set { return m.contacts }

// Costs returns the cost sum.
func (m *ContactFwdDynamics) Costs() *cost.Sum { return m.costs }

// CreateData allocates the node workspace and binds every cost term to the
// shared collector; capability and dimension mismatches surface here, never
// during Calc.
func (m *ContactFwdDynamics) CreateData() (*Data, error) {
	bd := m.st.Model().NewData()
	ad := actuation.NewData(m.act)
	cd := m.contacts.CreateData(bd)
	opts := []collector.Option{
		collector.WithKinematics(bd),
		collector.WithActuation(ad),
		collector.WithContacts(cd),
	}
	if m.limits != nil {
		opts = append(opts, collector.WithJointLimits(m.limits))
	}
	shared := collector.New(opts...)
	sd, err := m.costs.CreateData(shared)
	if err != nil {
		return nil, err
	}
	nv := m.st.NV()
	d := &Data{
		Body:        bd,
		Actuation:   ad,
		Constraints: cd,
		Costs:       sd,
		Shared:      shared,
		Xout:        mat.NewVecDense(nv, nil),
		Fx:          mat.NewDense(nv, m.st.NDX(), nil),
	}
	if m.NU() > 0 {
		d.Fu = mat.NewDense(nv, m.NU(), nil)
	}
	return d, nil
}

// Calc runs the evaluation sequence: kinematics, actuation, constraint
// assembly, KKT solve, force distribution, cost.
func (m *ContactFwdDynamics) Calc(d *Data, x, u mat.Vector) error {
	nv := m.st.NV()
	q, v := m.st.Split(x)
	d.Body.ComputeAllTerms(q, v)
	m.act.Calc(d.Actuation, u)
	if err := m.contacts.Calc(d.Constraints, x); err != nil {
		return err
	}

	nc := d.Constraints.Active
	d.resizeKKT(nv, nc, m.st.NDX(), m.NU())
	assembleKKT(d.kkt, d.Body.Mass(), d.Constraints.Jc, nv, nc)
	for i := 0; i < nv; i++ {
		d.rhs.SetVec(i, d.Actuation.Tau.AtVec(i)-d.Body.Nonlinear().AtVec(i))
	}
	for i := 0; i < nc; i++ {
		d.rhs.SetVec(nv+i, -d.Constraints.Drift.AtVec(i))
	}

	d.lu.Factorize(d.kkt)
	if err := d.lu.SolveVecTo(d.sol, false, d.rhs); err != nil {
		return errors.Wrap(err, "the contact KKT system is singular")
	}
	d.Xout.CopyVec(d.sol.SliceVec(0, nv))
	if nc > 0 {
		f := mat.NewVecDense(nc, nil)
		for i := 0; i < nc; i++ {
			f.SetVec(i, -d.sol.AtVec(nv+i))
		}
		if err := m.contacts.UpdateForce(d.Constraints, f); err != nil {
			return err
		}
	}

	if err := m.costs.Calc(d.Costs, x, u); err != nil {
		return err
	}
	d.Cost = d.Costs.Value
	return nil
}

// CalcDiff assembles the acceleration and force derivatives through the
// factored KKT inverse, distributes the force partials to the constraint
// datas, then differentiates the cost sum. Calc must have run at (x, u).
func (m *ContactFwdDynamics) CalcDiff(d *Data, x, u mat.Vector) error {
	nv := m.st.NV()
	ndx := m.st.NDX()
	nc := d.Constraints.Active
	q, v := m.st.Split(x)

	if err := m.contacts.CalcDiff(d.Constraints, x); err != nil {
		return err
	}
	m.act.CalcDiff(d.Actuation, u)
	dtauDq, dtauDv := d.Body.RNEADerivatives(q, v, d.Xout, d.Constraints.Fext)

	if err := d.lu.SolveTo(d.kinv, false, identity(nv+nc)); err != nil {
		return errors.Wrap(err, "the contact KKT system is singular")
	}
	aTau := d.kinv.Slice(0, nv, 0, nv)

	// Fx = -Kinv_a,tau [dtau/dq  dtau/dv] - Kinv_a,drift [da0/dq  da0/dv].
	d.Fx.Slice(0, nv, 0, nv).(*mat.Dense).Scale(-1, mulNew(aTau, dtauDq))
	d.Fx.Slice(0, nv, nv, ndx).(*mat.Dense).Scale(-1, mulNew(aTau, dtauDv))
	if nc > 0 {
		aDrift := d.kinv.Slice(0, nv, nv, nv+nc)
		subInPlace(d.Fx.Slice(0, nv, 0, nv).(*mat.Dense), mulNew(aDrift, d.Constraints.DriftDq.Slice(0, nc, 0, nv)))
		subInPlace(d.Fx.Slice(0, nv, nv, ndx).(*mat.Dense), mulNew(aDrift, d.Constraints.DriftDv.Slice(0, nc, 0, nv)))
	}
	if d.Fu != nil {
		d.Fu.Mul(aTau, d.Actuation.DTauDu)
	}

	if nc > 0 {
		fTau := d.kinv.Slice(nv, nv+nc, 0, nv)
		fDrift := d.kinv.Slice(nv, nv+nc, nv, nv+nc)
		// df/dx = Kinv_f,tau [dtau/dq  dtau/dv] + Kinv_f,drift da0/dx.
		d.dfDx.Slice(0, nc, 0, nv).(*mat.Dense).Copy(mulNew(fTau, dtauDq))
		d.dfDx.Slice(0, nc, nv, ndx).(*mat.Dense).Copy(mulNew(fTau, dtauDv))
		addInPlace(d.dfDx.Slice(0, nc, 0, nv).(*mat.Dense), mulNew(fDrift, d.Constraints.DriftDq.Slice(0, nc, 0, nv)))
		addInPlace(d.dfDx.Slice(0, nc, nv, ndx).(*mat.Dense), mulNew(fDrift, d.Constraints.DriftDv.Slice(0, nc, 0, nv)))
		if d.dfDu != nil {
			d.dfDu.Scale(-1, mulNew(fTau, d.Actuation.DTauDu))
		}
		if err := m.contacts.UpdateForceDiff(d.Constraints, d.dfDx, d.dfDu); err != nil {
			return err
		}
	}

	return m.costs.CalcDiff(d.Costs, x, u)
}

// assembleKKT writes [M Jc'; Jc 0] using the leading nc constraint rows.
func assembleKKT(k *mat.Dense, mass, jc *mat.Dense, nv, nc int) {
	k.Zero()
	k.Slice(0, nv, 0, nv).(*mat.Dense).Copy(mass)
	if nc > 0 {
		jcA := jc.Slice(0, nc, 0, nv)
		k.Slice(nv, nv+nc, 0, nv).(*mat.Dense).Copy(jcA)
		k.Slice(0, nv, nv, nv+nc).(*mat.Dense).Copy(jcA.T())
	}
}

func addInPlace(dst *mat.Dense, src mat.Matrix) {
	dst.Add(dst, src)
}

func subInPlace(dst *mat.Dense, src mat.Matrix) {
	dst.Sub(dst, src)
}

func mulNew(a, b mat.Matrix) *mat.Dense {
	var t mat.Dense
	t.Mul(a, b)
	return &t
}
