package activation

import (
	"github.com/pkg/errors"
)

// Type tags the known activation variants.
type Type string

const (
	// TypeQuad is the plain quadratic activation.
	TypeQuad Type = "quad"
	// TypeWeightedQuad is the weighted quadratic activation.
	TypeWeightedQuad Type = "weighted_quad"
	// TypeSmoothAbs is the smooth absolute-value activation.
	TypeSmoothAbs Type = "smooth_abs"
	// TypeQuadBarrier is the quadratic barrier activation.
	TypeQuadBarrier Type = "quad_barrier"
	// TypeWeightedQuadBarrier is the weighted quadratic barrier activation.
	TypeWeightedQuadBarrier Type = "weighted_quad_barrier"
)

// Options parameterizes activation construction across variants; variants
// read only the fields they need.
type Options struct {
	// NR is the residual dimension for dimension-parameterized variants.
	NR int
	// Weights applies to the weighted variants.
	Weights []float64
	// Lower and Upper apply to the barrier variants.
	Lower []float64
	Upper []float64
	// Eps is the smooth-abs smoothing, defaulting to 1.
	Eps float64
}

// Constructor builds an activation variant from options.
type Constructor func(Options) (Model, error)

var registry = map[Type]Constructor{}

// Register installs a constructor for a variant tag. Registering the same tag
// twice is an error so variants cannot silently shadow one another.
func Register(t Type, ctor Constructor) error {
	if _, ok := registry[t]; ok {
		return errors.Errorf("activation type %q already registered", t)
	}
	registry[t] = ctor
	return nil
}

// New builds the activation registered under t.
func New(t Type, opts Options) (Model, error) {
	ctor, ok := registry[t]
	if !ok {
		return nil, errors.Errorf("unsupported activation type %q", t)
	}
	return ctor(opts)
}

func mustRegister(t Type, ctor Constructor) {
	if err := Register(t, ctor); err != nil {
		panic(err)
	}
}

func init() {
	mustRegister(TypeQuad, func(o Options) (Model, error) {
		return NewQuad(o.NR)
	})
	mustRegister(TypeWeightedQuad, func(o Options) (Model, error) {
		return NewWeightedQuad(o.Weights)
	})
	mustRegister(TypeSmoothAbs, func(o Options) (Model, error) {
		eps := o.Eps
		if eps == 0 {
			eps = 1
		}
		return NewSmoothAbs(o.NR, eps)
	})
	mustRegister(TypeQuadBarrier, func(o Options) (Model, error) {
		bounds, err := NewBounds(o.Lower, o.Upper)
		if err != nil {
			return nil, err
		}
		return NewQuadBarrier(bounds)
	})
	mustRegister(TypeWeightedQuadBarrier, func(o Options) (Model, error) {
		bounds, err := NewBounds(o.Lower, o.Upper)
		if err != nil {
			return nil, err
		}
		return NewWeightedQuadBarrier(bounds, o.Weights)
	})
}
