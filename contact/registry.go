package contact

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Options parameterizes constraint construction through the registries;
// variants read only the fields they need.
type Options struct {
	Frame      body.FrameID
	Convention body.ReferenceFrame
	// NU is the control dimension (contacts only).
	NU int
	// Gains are the Baumgarte gains (contacts only).
	Gains Gains
	// RefPlacement is the 6-D position-gain reference.
	RefPlacement *spatial.Placement
	// RefPoint is the 3-D position-gain reference.
	RefPoint *r3.Vector
}

// Constructor builds a constraint variant from options.
type Constructor func(*state.Multibody, Options) (Model, error)

var (
	contactRegistry = map[Kind]Constructor{}
	impulseRegistry = map[Kind]Constructor{}
)

// RegisterContact installs a contact constructor for a kind.
func RegisterContact(k Kind, ctor Constructor) error {
	if _, ok := contactRegistry[k]; ok {
		return errors.Errorf("contact kind %q already registered", k)
	}
	contactRegistry[k] = ctor
	return nil
}

// RegisterImpulse installs an impulse constructor for a kind.
func RegisterImpulse(k Kind, ctor Constructor) error {
	if _, ok := impulseRegistry[k]; ok {
		return errors.Errorf("impulse kind %q already registered", k)
	}
	impulseRegistry[k] = ctor
	return nil
}

// NewContact builds the contact registered for the kind.
func NewContact(k Kind, st *state.Multibody, opts Options) (Model, error) {
	ctor, ok := contactRegistry[k]
	if !ok {
		return nil, errors.Errorf("unsupported contact kind %q", k)
	}
	return ctor(st, opts)
}

// NewImpulse builds the impulse registered for the kind.
func NewImpulse(k Kind, st *state.Multibody, opts Options) (Model, error) {
	ctor, ok := impulseRegistry[k]
	if !ok {
		return nil, errors.Errorf("unsupported impulse kind %q", k)
	}
	return ctor(st, opts)
}

// ParseKind maps a kind tag to its enum value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "3d":
		return Point3D, nil
	case "6d":
		return Spatial6D, nil
	default:
		return 0, errors.Errorf("unsupported constraint kind %q", s)
	}
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	mustRegister(RegisterContact(Point3D, func(st *state.Multibody, o Options) (Model, error) {
		return NewContact3D(st, o.Frame, o.Convention, o.NU, o.Gains, o.RefPoint)
	}))
	mustRegister(RegisterContact(Spatial6D, func(st *state.Multibody, o Options) (Model, error) {
		return NewContact6D(st, o.Frame, o.Convention, o.NU, o.Gains, o.RefPlacement)
	}))
	mustRegister(RegisterImpulse(Point3D, func(st *state.Multibody, o Options) (Model, error) {
		return NewImpulse3D(st, o.Frame, o.Convention)
	}))
	mustRegister(RegisterImpulse(Spatial6D, func(st *state.Multibody, o Options) (Model, error) {
		return NewImpulse6D(st, o.Frame, o.Convention)
	}))
}
