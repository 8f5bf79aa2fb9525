// Package cost composes residual models with activation functions into
// named, weighted cost terms and sums them per trajectory node under the
// Gauss-Newton approximation. Contact-dependent residuals read contact forces
// from the shared data collector instead of recomputing them.
package cost

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/state"
)

// Residual computes a vector-valued function of state and control together
// with its Jacobians.
type Residual interface {
	// NR returns the residual dimension.
	NR() int
	// NU returns the control dimension.
	NU() int
	// State returns the state space the residual is defined over.
	State() state.State

	// CreateData binds per-node residual data to a shared data collector,
	// performing every capability and dimensionality check up front.
	CreateData(shared *collector.Collector) (*ResidualData, error)

	// Calc evaluates the residual into data.R.
	Calc(data *ResidualData, x, u mat.Vector) error
	// CalcDiff fills data.Rx and data.Ru; Calc must have run at the same
	// point.
	CalcDiff(data *ResidualData, x, u mat.Vector) error
}

// ResidualData is the per-node residual workspace. Contact holds a non-owning
// back-reference into the collector's matching constraint data; its lifetime
// is governed by the collector and must outlive this data.
type ResidualData struct {
	R  *mat.VecDense
	Rx *mat.Dense
	Ru *mat.Dense

	Shared  *collector.Collector
	Contact *contact.Data
}

func newResidualData(r Residual, shared *collector.Collector) *ResidualData {
	d := &ResidualData{
		R:      mat.NewVecDense(r.NR(), nil),
		Rx:     mat.NewDense(r.NR(), r.State().NDX(), nil),
		Shared: shared,
	}
	// Control-free nodes (impulses) carry no Ru block at all.
	if r.NU() > 0 {
		d.Ru = mat.NewDense(r.NR(), r.NU(), nil)
	}
	return d
}
