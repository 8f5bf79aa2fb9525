package cost

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/activation"
	"github.com/mechsys/optctrl/collector"
)

// Term is a residual shaped by an activation: value a(R(x,u)), differentiated
// under the Gauss-Newton approximation (residual curvature dropped).
type Term struct {
	act activation.Model
	res Residual
}

// NewTerm pairs an activation with a residual. Their dimensions must agree.
func NewTerm(act activation.Model, res Residual) (*Term, error) {
	if act.NR() != res.NR() {
		return nil, errors.Errorf("activation expects %d residuals, the residual model produces %d", act.NR(), res.NR())
	}
	return &Term{act: act, res: res}, nil
}

// Activation returns the shaping function.
func (t *Term) Activation() activation.Model { return t.act }

// Residual returns the residual model.
func (t *Term) Residual() Residual { return t.res }

// NU returns the control dimension.
func (t *Term) NU() int { return t.res.NU() }

// TermData is the per-node workspace of one cost term.
type TermData struct {
	Value float64

	Activation *activation.Data
	Residual   *ResidualData

	// Lx, Lu, Lxx, Lxu, Luu are the Gauss-Newton cost derivatives in the
	// state's tangent space and the control.
	Lx  *mat.VecDense
	Lu  *mat.VecDense
	Lxx *mat.Dense
	Lxu *mat.Dense
	Luu *mat.Dense

	// arrRx caches Arr * Rx between the Hessian products.
	arrRx *mat.Dense
	arrRu *mat.Dense
}

// CreateData binds a term's data to a shared collector, running the
// residual's capability checks.
func (t *Term) CreateData(shared *collector.Collector) (*TermData, error) {
	rd, err := t.res.CreateData(shared)
	if err != nil {
		return nil, err
	}
	ndx := t.res.State().NDX()
	nu := t.res.NU()
	d := &TermData{
		Activation: activation.NewData(t.act),
		Residual:   rd,
		Lx:         mat.NewVecDense(ndx, nil),
		Lxx:        mat.NewDense(ndx, ndx, nil),
		arrRx:      mat.NewDense(t.res.NR(), ndx, nil),
	}
	if nu > 0 {
		d.Lu = mat.NewVecDense(nu, nil)
		d.Lxu = mat.NewDense(ndx, nu, nil)
		d.Luu = mat.NewDense(nu, nu, nil)
		d.arrRu = mat.NewDense(t.res.NR(), nu, nil)
	}
	return d, nil
}

// Calc evaluates the residual and its activation value.
func (t *Term) Calc(d *TermData, x, u mat.Vector) error {
	if err := t.res.Calc(d.Residual, x, u); err != nil {
		return err
	}
	t.act.Calc(d.Activation, d.Residual.R)
	d.Value = d.Activation.Value
	return nil
}

// CalcDiff combines the residual Jacobians with the activation gradient and
// Hessian: Lx = Rx' Ar, Lxx = Rx' Arr Rx, and the control counterparts.
func (t *Term) CalcDiff(d *TermData, x, u mat.Vector) error {
	if err := t.res.CalcDiff(d.Residual, x, u); err != nil {
		return err
	}
	t.act.CalcDiff(d.Activation, d.Residual.R)

	d.Lx.MulVec(d.Residual.Rx.T(), d.Activation.Ar)
	d.arrRx.Mul(d.Activation.Arr, d.Residual.Rx)
	d.Lxx.Mul(d.Residual.Rx.T(), d.arrRx)

	if t.res.NU() > 0 {
		d.Lu.MulVec(d.Residual.Ru.T(), d.Activation.Ar)
		d.arrRu.Mul(d.Activation.Arr, d.Residual.Ru)
		d.Luu.Mul(d.Residual.Ru.T(), d.arrRu)
		d.Lxu.Mul(d.Residual.Rx.T(), d.arrRu)
	}
	return nil
}
