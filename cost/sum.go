package cost

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/state"
)

// Sum aggregates named, weighted cost terms. Terms are addressable by name
// for removal and inspection, and iteration follows registration order so
// results are reproducible.
type Sum struct {
	st     state.State
	nu     int
	logger golog.Logger
	order  []string
	items  map[string]*sumItem
}

type sumItem struct {
	term   *Term
	weight float64
}

// NewSum builds an empty aggregate over a state and control dimension.
func NewSum(st state.State, nu int, logger golog.Logger) *Sum {
	return &Sum{st: st, nu: nu, logger: logger, items: map[string]*sumItem{}}
}

// State returns the state space.
func (s *Sum) State() state.State { return s.st }

// NU returns the control dimension.
func (s *Sum) NU() int { return s.nu }

// AddCost registers a weighted term under a name.
func (s *Sum) AddCost(name string, term *Term, weight float64) error {
	if _, ok := s.items[name]; ok {
		return errors.Errorf("cost %q already registered", name)
	}
	if term.Residual().State() != s.st {
		return errors.Errorf("cost %q was built over a different state", name)
	}
	if term.NU() != s.nu {
		return errors.Errorf("cost %q has control dimension %d, the aggregate expects %d", name, term.NU(), s.nu)
	}
	if weight < 0 {
		return errors.Errorf("cost %q has negative weight %g", name, weight)
	}
	s.items[name] = &sumItem{term: term, weight: weight}
	s.order = append(s.order, name)
	s.logger.Debugw("cost registered", "name", name, "weight", weight)
	return nil
}

// RemoveCost drops a registered term without disturbing the iteration or
// dimensioning of the remaining terms.
func (s *Sum) RemoveCost(name string) error {
	if _, ok := s.items[name]; !ok {
		return errors.Errorf("cost %q is not registered", name)
	}
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.logger.Debugw("cost removed", "name", name)
	return nil
}

// Costs returns the registered names in order.
func (s *Sum) Costs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Term returns a registered term and its weight.
func (s *Sum) Term(name string) (*Term, float64, bool) {
	it, ok := s.items[name]
	if !ok {
		return nil, 0, false
	}
	return it.term, it.weight, true
}

// SumData is the per-node workspace of the aggregate.
type SumData struct {
	Value float64

	Terms map[string]*TermData

	Lx  *mat.VecDense
	Lu  *mat.VecDense
	Lxx *mat.Dense
	Lxu *mat.Dense
	Luu *mat.Dense
}

// CreateData binds every term's data to one shared collector. Construction
// fails fast on any term's capability or dimension mismatch.
func (s *Sum) CreateData(shared *collector.Collector) (*SumData, error) {
	ndx := s.st.NDX()
	d := &SumData{
		Terms: make(map[string]*TermData, len(s.items)),
		Lx:    mat.NewVecDense(ndx, nil),
		Lxx:   mat.NewDense(ndx, ndx, nil),
	}
	if s.nu > 0 {
		d.Lu = mat.NewVecDense(s.nu, nil)
		d.Lxu = mat.NewDense(ndx, s.nu, nil)
		d.Luu = mat.NewDense(s.nu, s.nu, nil)
	}
	for _, name := range s.order {
		td, err := s.items[name].term.CreateData(shared)
		if err != nil {
			return nil, errors.Wrapf(err, "cost %q", name)
		}
		d.Terms[name] = td
	}
	return d, nil
}

// Calc evaluates every term and accumulates the weighted values.
func (s *Sum) Calc(d *SumData, x, u mat.Vector) error {
	d.Value = 0
	for _, name := range s.order {
		it := s.items[name]
		td, ok := d.Terms[name]
		if !ok {
			return errors.Errorf("cost %q has no data; the aggregate was mutated after CreateData", name)
		}
		if err := it.term.Calc(td, x, u); err != nil {
			return errors.Wrapf(err, "cost %q", name)
		}
		d.Value += it.weight * td.Value
	}
	return nil
}

// CalcDiff differentiates every term and accumulates the weighted gradient
// and Gauss-Newton Hessian blocks.
func (s *Sum) CalcDiff(d *SumData, x, u mat.Vector) error {
	d.Lx.Zero()
	d.Lxx.Zero()
	if s.nu > 0 {
		d.Lu.Zero()
		d.Lxu.Zero()
		d.Luu.Zero()
	}
	for _, name := range s.order {
		it := s.items[name]
		td, ok := d.Terms[name]
		if !ok {
			return errors.Errorf("cost %q has no data; the aggregate was mutated after CreateData", name)
		}
		if err := it.term.CalcDiff(td, x, u); err != nil {
			return errors.Wrapf(err, "cost %q", name)
		}
		d.Lx.AddScaledVec(d.Lx, it.weight, td.Lx)
		addScaled(d.Lxx, it.weight, td.Lxx)
		if s.nu > 0 {
			d.Lu.AddScaledVec(d.Lu, it.weight, td.Lu)
			addScaled(d.Lxu, it.weight, td.Lxu)
			addScaled(d.Luu, it.weight, td.Luu)
		}
	}
	return nil
}

func addScaled(dst *mat.Dense, w float64, src *mat.Dense) {
	var t mat.Dense
	t.Scale(w, src)
	dst.Add(dst, &t)
}
