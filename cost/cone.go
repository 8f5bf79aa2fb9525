package cost

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CoPSupport is a rectangular center-of-pressure support region on a contact
// surface. Its matrix A maps a 6-D contact wrench to four inequality
// expressions, each non-positive exactly when the CoP lies inside the region.
type CoPSupport struct {
	rot *mat.Dense
	box [2]float64
	a   *mat.Dense
}

// NewCoPSupport builds a support region from the surface orientation (the
// rotation of the surface frame expressed in the frame the measured wrench
// uses) and the full side lengths of the rectangle.
func NewCoPSupport(rot mat.Matrix, lengthX, lengthY float64) (*CoPSupport, error) {
	if err := checkRotation(rot); err != nil {
		return nil, err
	}
	if lengthX <= 0 || lengthY <= 0 {
		return nil, errors.Errorf("support box must have positive sides, got %g x %g", lengthX, lengthY)
	}
	c := &CoPSupport{box: [2]float64{lengthX, lengthY}, a: mat.NewDense(4, 6, nil)}
	c.rot = mat.NewDense(3, 3, nil)
	c.rot.Copy(rot)
	c.update()
	return c, nil
}

func (c *CoPSupport) update() {
	// Row pairs bound the CoP along x then y: L/2 * fz -/+ tau_y <= ... and
	// W/2 * fz +/- tau_x, all in the surface frame.
	hx, hy := c.box[0]/2, c.box[1]/2
	c.a.Zero()
	for j := 0; j < 3; j++ {
		rz := c.rot.At(j, 2)
		ry := c.rot.At(j, 1)
		rx := c.rot.At(j, 0)
		c.a.Set(0, j, -hx*rz)
		c.a.Set(0, 3+j, -ry)
		c.a.Set(1, j, -hx*rz)
		c.a.Set(1, 3+j, ry)
		c.a.Set(2, j, -hy*rz)
		c.a.Set(2, 3+j, rx)
		c.a.Set(3, j, -hy*rz)
		c.a.Set(3, 3+j, -rx)
	}
}

// Matrix returns the 4x6 inequality matrix.
func (c *CoPSupport) Matrix() *mat.Dense { return c.a }

// Box returns the full side lengths.
func (c *CoPSupport) Box() (lengthX, lengthY float64) { return c.box[0], c.box[1] }

// FrictionCone is a polyhedral approximation of a second-order friction cone
// with an even number of facets. Its matrix A maps a 3-D contact force to
// facet expressions that are non-positive inside the cone, plus a trailing
// normal-force row bounded below by the minimum normal force.
type FrictionCone struct {
	rot      *mat.Dense
	mu       float64
	nf       int
	inner    bool
	minForce float64

	a      *mat.Dense
	lb, ub *mat.VecDense
}

// NewFrictionCone builds a cone from the surface orientation, friction
// coefficient and facet count. An inner approximation shrinks mu so the
// polyhedron is contained in the true cone.
func NewFrictionCone(rot mat.Matrix, mu float64, nf int, inner bool, minForce float64) (*FrictionCone, error) {
	if err := checkRotation(rot); err != nil {
		return nil, err
	}
	if mu <= 0 {
		return nil, errors.Errorf("friction coefficient must be positive, got %g", mu)
	}
	if nf < 4 || nf%2 != 0 {
		return nil, errors.Errorf("facet count must be even and at least 4, got %d", nf)
	}
	if minForce < 0 {
		return nil, errors.Errorf("minimum normal force must be non-negative, got %g", minForce)
	}
	c := &FrictionCone{
		mu: mu, nf: nf, inner: inner, minForce: minForce,
		a:  mat.NewDense(nf+1, 3, nil),
		lb: mat.NewVecDense(nf+1, nil),
		ub: mat.NewVecDense(nf+1, nil),
	}
	c.rot = mat.NewDense(3, 3, nil)
	c.rot.Copy(rot)
	c.update()
	return c, nil
}

func (c *FrictionCone) update() {
	mu := c.mu
	theta := 2 * math.Pi / float64(c.nf)
	if c.inner {
		mu *= math.Cos(theta / 2)
	}
	c.a.Zero()
	row := 0
	for i := 0; i < c.nf/2; i++ {
		ti := theta * (float64(i) + 0.5)
		tx, ty := math.Cos(ti), math.Sin(ti)
		setRotatedRow(c.a, row, c.rot, tx, ty, -mu)
		setRotatedRow(c.a, row+1, c.rot, -tx, -ty, -mu)
		c.lb.SetVec(row, math.Inf(-1))
		c.lb.SetVec(row+1, math.Inf(-1))
		row += 2
	}
	// Normal-force row.
	setRotatedRow(c.a, c.nf, c.rot, 0, 0, 1)
	c.lb.SetVec(c.nf, c.minForce)
	c.ub.SetVec(c.nf, math.Inf(1))
}

// Matrix returns the (nf+1) x 3 inequality matrix.
func (c *FrictionCone) Matrix() *mat.Dense { return c.a }

// Bounds returns the lower and upper bounds paired with the matrix rows.
func (c *FrictionCone) Bounds() (lb, ub *mat.VecDense) { return c.lb, c.ub }

// NR returns the number of inequality rows.
func (c *FrictionCone) NR() int { return c.nf + 1 }

// WrenchCone is the linearized contact wrench cone of a rectangular surface
// patch: friction facets, CoP bounds and yaw-torque coupling, plus a trailing
// normal-force row. Its matrix A is 17x6.
type WrenchCone struct {
	rot      *mat.Dense
	mu       float64
	box      [2]float64
	inner    bool
	minForce float64

	a      *mat.Dense
	lb, ub *mat.VecDense
}

// WrenchConeRows is the fixed row count of the linearized wrench cone.
const WrenchConeRows = 17

// NewWrenchCone builds a wrench cone from the surface orientation, friction
// coefficient and full side lengths of the patch.
func NewWrenchCone(rot mat.Matrix, mu float64, lengthX, lengthY float64, inner bool, minForce float64) (*WrenchCone, error) {
	if err := checkRotation(rot); err != nil {
		return nil, err
	}
	if mu <= 0 {
		return nil, errors.Errorf("friction coefficient must be positive, got %g", mu)
	}
	if lengthX <= 0 || lengthY <= 0 {
		return nil, errors.Errorf("support box must have positive sides, got %g x %g", lengthX, lengthY)
	}
	if minForce < 0 {
		return nil, errors.Errorf("minimum normal force must be non-negative, got %g", minForce)
	}
	c := &WrenchCone{
		mu: mu, box: [2]float64{lengthX, lengthY}, inner: inner, minForce: minForce,
		a:  mat.NewDense(WrenchConeRows, 6, nil),
		lb: mat.NewVecDense(WrenchConeRows, nil),
		ub: mat.NewVecDense(WrenchConeRows, nil),
	}
	c.rot = mat.NewDense(3, 3, nil)
	c.rot.Copy(rot)
	c.update()
	return c, nil
}

func (c *WrenchCone) update() {
	mu := c.mu
	if c.inner {
		mu /= math.Sqrt2
	}
	hx, hy := c.box[0]/2, c.box[1]/2
	c.a.Zero()
	for i := 0; i < WrenchConeRows-1; i++ {
		c.lb.SetVec(i, math.Inf(-1))
	}

	// Friction facets on the linear force.
	setRotatedRow(c.a, 0, c.rot, -1, 0, -mu)
	setRotatedRow(c.a, 1, c.rot, 1, 0, -mu)
	setRotatedRow(c.a, 2, c.rot, 0, -1, -mu)
	setRotatedRow(c.a, 3, c.rot, 0, 1, -mu)

	// CoP bounds: |tau_x| <= hy * fz, |tau_y| <= hx * fz.
	setRotatedWrenchRow(c.a, 4, c.rot, 0, 0, -hy, 1, 0, 0)
	setRotatedWrenchRow(c.a, 5, c.rot, 0, 0, -hy, -1, 0, 0)
	setRotatedWrenchRow(c.a, 6, c.rot, 0, 0, -hx, 0, 1, 0)
	setRotatedWrenchRow(c.a, 7, c.rot, 0, 0, -hx, 0, -1, 0)

	// Yaw-torque coupling.
	m2 := mu * (hx + hy)
	setRotatedWrenchRow(c.a, 8, c.rot, hy, hx, -m2, -mu, -mu, -1)
	setRotatedWrenchRow(c.a, 9, c.rot, hy, -hx, -m2, -mu, mu, -1)
	setRotatedWrenchRow(c.a, 10, c.rot, -hy, hx, -m2, mu, -mu, -1)
	setRotatedWrenchRow(c.a, 11, c.rot, -hy, -hx, -m2, mu, mu, -1)
	setRotatedWrenchRow(c.a, 12, c.rot, hy, hx, -m2, mu, mu, 1)
	setRotatedWrenchRow(c.a, 13, c.rot, hy, -hx, -m2, mu, -mu, 1)
	setRotatedWrenchRow(c.a, 14, c.rot, -hy, hx, -m2, -mu, mu, 1)
	setRotatedWrenchRow(c.a, 15, c.rot, -hy, -hx, -m2, -mu, -mu, 1)

	// Normal-force row.
	setRotatedRow(c.a, 16, c.rot, 0, 0, 1)
	c.lb.SetVec(16, c.minForce)
	c.ub.SetVec(16, math.Inf(1))
}

// Matrix returns the 17x6 inequality matrix.
func (c *WrenchCone) Matrix() *mat.Dense { return c.a }

// Bounds returns the lower and upper bounds paired with the matrix rows.
func (c *WrenchCone) Bounds() (lb, ub *mat.VecDense) { return c.lb, c.ub }

// setRotatedRow writes (x, y, z) * R^T into the first three columns of a row.
func setRotatedRow(a *mat.Dense, row int, rot *mat.Dense, x, y, z float64) {
	for j := 0; j < 3; j++ {
		a.Set(row, j, x*rot.At(j, 0)+y*rot.At(j, 1)+z*rot.At(j, 2))
	}
}

// setRotatedWrenchRow writes a full wrench row, rotating the linear and
// angular triples independently.
func setRotatedWrenchRow(a *mat.Dense, row int, rot *mat.Dense, fx, fy, fz, tx, ty, tz float64) {
	setRotatedRow(a, row, rot, fx, fy, fz)
	for j := 0; j < 3; j++ {
		a.Set(row, 3+j, tx*rot.At(j, 0)+ty*rot.At(j, 1)+tz*rot.At(j, 2))
	}
}

func checkRotation(rot mat.Matrix) error {
	r, c := rot.Dims()
	if r != 3 || c != 3 {
		return errors.Errorf("surface orientation must be 3x3, got %dx%d", r, c)
	}
	return nil
}
