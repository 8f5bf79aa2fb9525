// Package actuation maps control vectors to generalized joint torques,
// providing the actuation capability block of the shared data collector.
package actuation

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model maps an nu control to an nv generalized torque.
type Model interface {
	// NU returns the control dimension.
	NU() int
	// NV returns the generalized-velocity dimension.
	NV() int
	// Calc writes the torque for control u into data.Tau.
	Calc(data *Data, u mat.Vector)
	// CalcDiff writes dtau/du into data.DTauDu.
	CalcDiff(data *Data, u mat.Vector)
}

// Data is the per-node actuation result.
type Data struct {
	// Tau is the nv generalized torque.
	Tau *mat.VecDense
	// DTauDu is the nv x nu torque Jacobian.
	DTauDu *mat.Dense
}

// NewData allocates zeroed actuation data for a model.
func NewData(m Model) *Data {
	return &Data{
		Tau:    mat.NewVecDense(m.NV(), nil),
		DTauDu: mat.NewDense(m.NV(), m.NU(), nil),
	}
}

// Full actuates every degree of freedom directly: tau = u.
type Full struct {
	nv int
}

// NewFull returns a fully actuated model of dimension nv.
func NewFull(nv int) (*Full, error) {
	if nv <= 0 {
		return nil, errors.Errorf("actuation dimension must be positive, got %d", nv)
	}
	return &Full{nv: nv}, nil
}

// NU returns the control dimension.
func (m *Full) NU() int { return m.nv }

// NV returns the velocity dimension.
func (m *Full) NV() int { return m.nv }

// Calc copies u into tau.
func (m *Full) Calc(data *Data, u mat.Vector) {
	data.Tau.CopyVec(u)
}

// CalcDiff sets dtau/du to the identity.
func (m *Full) CalcDiff(data *Data, u mat.Vector) {
	data.DTauDu.Zero()
	for i := 0; i < m.nv; i++ {
		data.DTauDu.Set(i, i, 1)
	}
}

// FloatingBase leaves the first six (free-flyer) degrees of freedom
// unactuated: tau = [0_6; u].
type FloatingBase struct {
	nv int
}

// NewFloatingBase returns a floating-base actuation over nv velocities; nv
// must exceed the six base degrees of freedom.
func NewFloatingBase(nv int) (*FloatingBase, error) {
	if nv <= 6 {
		return nil, errors.Errorf("floating-base actuation needs more than six velocities, got %d", nv)
	}
	return &FloatingBase{nv: nv}, nil
}

// NU returns the control dimension nv - 6.
func (m *FloatingBase) NU() int { return m.nv - 6 }

// NV returns the velocity dimension.
func (m *FloatingBase) NV() int { return m.nv }

// Calc writes [0_6; u] into tau.
func (m *FloatingBase) Calc(data *Data, u mat.Vector) {
	data.Tau.Zero()
	for i := 0; i < m.NU(); i++ {
		data.Tau.SetVec(6+i, u.AtVec(i))
	}
}

// CalcDiff fills the lower identity block of dtau/du.
func (m *FloatingBase) CalcDiff(data *Data, u mat.Vector) {
	data.DTauDu.Zero()
	for i := 0; i < m.NU(); i++ {
		data.DTauDu.Set(6+i, i, 1)
	}
}
