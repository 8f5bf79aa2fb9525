// Package collector assembles the per-node shared data read by cost terms: a
// composition of independently optional capability blocks (kinematics,
// actuation, joint limits, contact stack, impulse stack). A consumer that
// needs a capability performs a typed, error-returning lookup instead of a
// cast, so heterogeneous cost terms can share one kinematics evaluation per
// node.
package collector

import (
	"github.com/pkg/errors"

	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/contact"
)

// JointLimits is the joint-limit capability block: the bounds a limit cost
// penalizes against, in tangent-space coordinates.
type JointLimits struct {
	// Lower and Upper bound the state in its tangent parameterization
	// (configuration rows first, then velocity rows).
	Lower []float64
	Upper []float64
}

// Collector is one node's shared data. Blocks left nil are absent
// capabilities; lookups of absent capabilities fail descriptively.
type Collector struct {
	kinematics body.Data
	actuation  *actuation.Data
	joint      *JointLimits
	contacts   *contact.SetData
	impulses   *contact.SetData
}

// Option adds a capability block to a collector under construction.
type Option func(*Collector)

// WithKinematics attaches the kinematics capability.
func WithKinematics(bd body.Data) Option {
	return func(c *Collector) { c.kinematics = bd }
}

// WithActuation attaches the actuation capability.
func WithActuation(ad *actuation.Data) Option {
	return func(c *Collector) { c.actuation = ad }
}

// WithJointLimits attaches the joint-limit capability.
func WithJointLimits(jl *JointLimits) Option {
	return func(c *Collector) { c.joint = jl }
}

// WithContacts attaches the contact-stack capability.
func WithContacts(cd *contact.SetData) Option {
	return func(c *Collector) { c.contacts = cd }
}

// WithImpulses attaches the impulse-stack capability.
func WithImpulses(id *contact.SetData) Option {
	return func(c *Collector) { c.impulses = id }
}

// New composes a collector from capability blocks.
func New(opts ...Option) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kinematics returns the kinematics capability.
func (c *Collector) Kinematics() (body.Data, error) {
	if c.kinematics == nil {
		return nil, errors.New("shared data has no kinematics capability")
	}
	return c.kinematics, nil
}

// Actuation returns the actuation capability.
func (c *Collector) Actuation() (*actuation.Data, error) {
	if c.actuation == nil {
		return nil, errors.New("shared data has no actuation capability")
	}
	return c.actuation, nil
}

// JointLimits returns the joint-limit capability.
func (c *Collector) JointLimits() (*JointLimits, error) {
	if c.joint == nil {
		return nil, errors.New("shared data has no joint-limit capability")
	}
	return c.joint, nil
}

// Contacts returns the contact-stack capability.
func (c *Collector) Contacts() (*contact.SetData, error) {
	if c.contacts == nil {
		return nil, errors.New("shared data has no contact capability")
	}
	return c.contacts, nil
}

// Impulses returns the impulse-stack capability.
func (c *Collector) Impulses() (*contact.SetData, error) {
	if c.impulses == nil {
		return nil, errors.New("shared data has no impulse capability")
	}
	return c.impulses, nil
}

// ContactAt locates the constraint data bound to a frame among every model
// registered in the contact stack (or, if requested, the impulse stack),
// active or not. It is the construction-time lookup contact-dependent
// residuals use, and it walks the stack in registration order so the
// first-registered constraint wins when two share a frame.
func (c *Collector) ContactAt(frame body.FrameID, impulse bool) (*contact.Data, error) {
	var sd *contact.SetData
	var err error
	if impulse {
		sd, err = c.Impulses()
	} else {
		sd, err = c.Contacts()
	}
	if err != nil {
		return nil, err
	}
	for _, name := range sd.Order {
		if d := sd.Contacts[name]; d != nil && d.Frame == frame {
			return d, nil
		}
	}
	return nil, errors.Errorf("no constraint is registered at frame %d", frame)
}
