package contact

import (
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Set aggregates named contact (or impulse) models into one system-level
// constraint. Row offsets within the stacked Jacobian follow registration
// order over the currently active models and stay stable across calc and
// calcDiff within a node. Activating or deactivating an entry never
// reallocates or disturbs the identity of the others.
type Set struct {
	st     *state.Multibody
	nu     int
	logger golog.Logger
	order  []string
	items  map[string]*setItem
	nc     int
}

type setItem struct {
	model  Model
	active bool
}

// NewSet builds an empty aggregate over the given state. nu is the control
// dimension of the models it will hold (zero for impulse sets).
func NewSet(st *state.Multibody, nu int, logger golog.Logger) *Set {
	return &Set{st: st, nu: nu, logger: logger, items: map[string]*setItem{}}
}

// State returns the multibody state.
func (s *Set) State() *state.Multibody { return s.st }

// NU returns the control dimension.
func (s *Set) NU() int { return s.nu }

// NCTotal returns the summed dimension of every registered model.
func (s *Set) NCTotal() int { return s.nc }

// NCActive returns the summed dimension of the active models.
func (s *Set) NCActive() int {
	nc := 0
	for _, name := range s.order {
		if it := s.items[name]; it.active {
			nc += it.model.NC()
		}
	}
	return nc
}

// Add registers a model under a name, active by default.
func (s *Set) Add(name string, m Model) error {
	if _, ok := s.items[name]; ok {
		return errors.Errorf("constraint %q already registered", name)
	}
	if m.State() != s.st {
		return errors.Errorf("constraint %q was built over a different state", name)
	}
	if m.NU() != s.nu {
		return errors.Errorf("constraint %q has control dimension %d, the aggregate expects %d", name, m.NU(), s.nu)
	}
	s.items[name] = &setItem{model: m, active: true}
	s.order = append(s.order, name)
	s.nc += m.NC()
	s.logger.Debugw("constraint registered", "name", name, "frame", s.st.Model().FrameName(m.Frame()), "nc", m.NC())
	return nil
}

// Remove drops a registered model. Removal does not disturb the iteration
// order of the remaining entries.
func (s *Set) Remove(name string) error {
	it, ok := s.items[name]
	if !ok {
		return errors.Errorf("constraint %q is not registered", name)
	}
	delete(s.items, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.nc -= it.model.NC()
	s.logger.Debugw("constraint removed", "name", name)
	return nil
}

// SetActive toggles a registered model in or out of the active set.
func (s *Set) SetActive(name string, active bool) error {
	it, ok := s.items[name]
	if !ok {
		return errors.Errorf("constraint %q is not registered", name)
	}
	if it.active != active {
		it.active = active
		s.logger.Debugw("constraint status changed", "name", name, "active", active)
	}
	return nil
}

// Names returns the registration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// ActiveNames returns the active models in registration order.
func (s *Set) ActiveNames() []string {
	var out []string
	for _, name := range s.order {
		if s.items[name].active {
			out = append(out, name)
		}
	}
	return out
}

// Model returns a registered model.
func (s *Set) Model(name string) (Model, bool) {
	it, ok := s.items[name]
	if !ok {
		return nil, false
	}
	return it.model, true
}

// Offsets returns each active model's row offset within the stacked
// constraint, in registration order.
func (s *Set) Offsets() map[string]int {
	offsets := make(map[string]int, len(s.order))
	row := 0
	for _, name := range s.order {
		it := s.items[name]
		if !it.active {
			continue
		}
		offsets[name] = row
		row += it.model.NC()
	}
	return offsets
}

// SetData is the per-node stacked workspace of an aggregate. Storage is sized
// once for every registered model; the active stack occupies the leading
// rows.
type SetData struct {
	// Contacts holds the per-model data keyed by registration name; Order
	// lists the names in registration order so lookups over the map stay
	// deterministic.
	Contacts map[string]*Data
	Order    []string

	// Jc is the stacked constraint Jacobian, Drift the stacked drift,
	// DriftDq/DriftDv their partials. Only the leading Active rows are
	// meaningful.
	Jc      *mat.Dense
	Drift   *mat.VecDense
	DriftDq *mat.Dense
	DriftDv *mat.Dense

	// Active is the stacked dimension of the active models at the last Calc.
	Active int

	// FStack is the stacked constraint force recorded by UpdateForce; DfDx
	// and DfDu reference the stacked force partials recorded by
	// UpdateForceDiff. Consumers that need the system-level force (the
	// gravity-compensation residual does) read these instead of re-stacking
	// the per-model blocks.
	FStack *mat.VecDense
	DfDx   *mat.Dense
	DfDu   *mat.Dense

	// Fext collects, per frame, the joint-level forces applied by
	// UpdateForce, consumed by the engine's RNEA derivatives.
	Fext map[body.FrameID]spatial.Force
}

// CreateData allocates the stacked workspace and each registered model's
// data, bound to one kinematics cache.
func (s *Set) CreateData(bd body.Data) *SetData {
	nv := s.st.NV()
	sd := &SetData{
		Contacts: make(map[string]*Data, len(s.items)),
		Jc:       mat.NewDense(maxInt(s.nc, 1), nv, nil),
		Drift:    mat.NewVecDense(maxInt(s.nc, 1), nil),
		DriftDq:  mat.NewDense(maxInt(s.nc, 1), nv, nil),
		DriftDv:  mat.NewDense(maxInt(s.nc, 1), nv, nil),
		FStack:   mat.NewVecDense(maxInt(s.nc, 1), nil),
		Fext:     make(map[body.FrameID]spatial.Force, len(s.items)),
	}
	for _, name := range s.order {
		sd.Contacts[name] = s.items[name].model.CreateData(bd)
		sd.Order = append(sd.Order, name)
	}
	return sd
}

// Calc evaluates every active model and stacks its constraint rows.
func (s *Set) Calc(sd *SetData, x mat.Vector) error {
	nv := s.st.NV()
	sd.Jc.Zero()
	sd.Drift.Zero()
	row := 0
	for _, name := range s.order {
		it := s.items[name]
		if !it.active {
			continue
		}
		d, ok := sd.Contacts[name]
		if !ok {
			return errors.Errorf("constraint %q has no data; the aggregate was mutated after CreateData", name)
		}
		it.model.Calc(d, x)
		nc := it.model.NC()
		sd.Jc.Slice(row, row+nc, 0, nv).(*mat.Dense).Copy(d.Jc)
		sd.Drift.SliceVec(row, row+nc).(*mat.VecDense).CopyVec(d.Drift)
		row += nc
	}
	sd.Active = row
	return nil
}

// CalcDiff evaluates and stacks every active model's drift partials. Calc
// must have run at the same state.
func (s *Set) CalcDiff(sd *SetData, x mat.Vector) error {
	nv := s.st.NV()
	sd.DriftDq.Zero()
	sd.DriftDv.Zero()
	row := 0
	for _, name := range s.order {
		it := s.items[name]
		if !it.active {
			continue
		}
		d, ok := sd.Contacts[name]
		if !ok {
			return errors.Errorf("constraint %q has no data; the aggregate was mutated after CreateData", name)
		}
		it.model.CalcDiff(d, x)
		nc := it.model.NC()
		sd.DriftDq.Slice(row, row+nc, 0, nv).(*mat.Dense).Copy(d.DriftDq)
		sd.DriftDv.Slice(row, row+nc, 0, nv).(*mat.Dense).Copy(d.DriftDv)
		row += nc
	}
	return nil
}

// UpdateForce slices the stacked constraint force by the active offsets and
// hands each model its sub-vector; inactive models are zeroed. The force must
// have the active stacked dimension.
func (s *Set) UpdateForce(sd *SetData, force mat.Vector) error {
	if force.Len() != s.NCActive() {
		return errors.Errorf("stacked force has dimension %d, the active constraint stack needs %d", force.Len(), s.NCActive())
	}
	fv, ok := force.(*mat.VecDense)
	if !ok {
		fv = mat.NewVecDense(force.Len(), nil)
		fv.CopyVec(force)
	}
	sd.FStack.Zero()
	if force.Len() > 0 {
		sd.FStack.SliceVec(0, force.Len()).(*mat.VecDense).CopyVec(fv)
	}
	row := 0
	for _, name := range s.order {
		it := s.items[name]
		d := sd.Contacts[name]
		if d == nil {
			return errors.Errorf("constraint %q has no data; the aggregate was mutated after CreateData", name)
		}
		if !it.active {
			d.F = spatial.ZeroForce()
			d.FLocal = spatial.ZeroForce()
			d.FExt = spatial.ZeroForce()
			continue
		}
		nc := it.model.NC()
		if err := it.model.UpdateForce(d, fv.SliceVec(row, row+nc)); err != nil {
			return err
		}
		sd.Fext[it.model.Frame()] = d.FExt
		row += nc
	}
	return nil
}

// UpdateForceDiff distributes the stacked force partials (from the node
// layer's constrained solve) to each active model's data.
func (s *Set) UpdateForceDiff(sd *SetData, dfDx, dfDu *mat.Dense) error {
	rows, _ := dfDx.Dims()
	if rows != s.NCActive() {
		return errors.Errorf("stacked force partials have %d rows, the active constraint stack needs %d", rows, s.NCActive())
	}
	ndx := s.st.NDX()
	sd.DfDx = dfDx
	sd.DfDu = dfDu
	row := 0
	for _, name := range s.order {
		it := s.items[name]
		d := sd.Contacts[name]
		if d == nil {
			return errors.Errorf("constraint %q has no data; the aggregate was mutated after CreateData", name)
		}
		if !it.active {
			d.DfDx.Zero()
			if d.DfDu != nil {
				d.DfDu.Zero()
			}
			continue
		}
		nc := it.model.NC()
		d.DfDx.Copy(dfDx.Slice(row, row+nc, 0, ndx))
		if s.nu > 0 && dfDu != nil && d.DfDu != nil {
			d.DfDu.Copy(dfDu.Slice(row, row+nc, 0, s.nu))
		}
		row += nc
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
