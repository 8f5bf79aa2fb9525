// Package config declares the YAML description of a trajectory node and
// compiles it, through the constraint and activation registries, into a ready
// evaluation model. Validation aggregates every problem it finds instead of
// stopping at the first.
package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config is the root node description.
type Config struct {
	// Actuation selects the actuation mapping: "full" or "floating_base".
	Actuation string `yaml:"actuation"`
	// Restitution applies to impulse nodes only.
	Restitution float64 `yaml:"restitution"`

	// JointLimits, when present, becomes the collector's joint-limit block.
	JointLimits *JointLimitsConfig `yaml:"joint_limits,omitempty"`

	Contacts []ConstraintConfig `yaml:"contacts,omitempty"`
	Impulses []ConstraintConfig `yaml:"impulses,omitempty"`
	Costs    []CostConfig       `yaml:"costs"`
}

// JointLimitsConfig bounds the state tangent coordinates.
type JointLimitsConfig struct {
	Lower []float64 `yaml:"lower"`
	Upper []float64 `yaml:"upper"`
}

// ConstraintConfig describes one contact or impulse.
type ConstraintConfig struct {
	Name       string `yaml:"name"`
	Frame      string `yaml:"frame"`
	Kind       string `yaml:"kind"`
	Convention string `yaml:"convention"`
	// Gains are Baumgarte stabilization gains; contacts only.
	Gains GainsConfig `yaml:"gains,omitempty"`
	// RefPoint anchors the 3-D position gain; three entries.
	RefPoint []float64 `yaml:"ref_point,omitempty"`
	// RefRotation and RefTranslation anchor the 6-D position gain: a
	// row-major 3x3 rotation and a three-entry translation.
	RefRotation    []float64 `yaml:"ref_rotation,omitempty"`
	RefTranslation []float64 `yaml:"ref_translation,omitempty"`
}

// GainsConfig mirrors contact.Gains.
type GainsConfig struct {
	Kp float64 `yaml:"kp"`
	Kv float64 `yaml:"kv"`
}

// CostConfig describes one weighted cost term.
type CostConfig struct {
	Name       string           `yaml:"name"`
	Weight     float64          `yaml:"weight"`
	Residual   ResidualConfig   `yaml:"residual"`
	Activation ActivationConfig `yaml:"activation"`
}

// ResidualConfig selects a residual variant. Frame-bound variants name the
// frame; cone variants carry their geometry.
type ResidualConfig struct {
	Type  string `yaml:"type"`
	Frame string `yaml:"frame,omitempty"`
	// Ref is the reference vector: state for "state", control for
	// "control", a 6-entry wrench for "contact_force".
	Ref []float64 `yaml:"ref,omitempty"`
	// Kind disambiguates the contact-force dimensionality: "3d" or "6d".
	Kind string `yaml:"kind,omitempty"`
	// Mu, Box, Facets, Inner and MinForce parameterize the cone variants.
	Mu       float64   `yaml:"mu,omitempty"`
	Box      []float64 `yaml:"box,omitempty"`
	Facets   int       `yaml:"facets,omitempty"`
	Inner    bool      `yaml:"inner,omitempty"`
	MinForce float64   `yaml:"min_force,omitempty"`
}

// ActivationConfig selects an activation variant by registry tag.
type ActivationConfig struct {
	Type    string    `yaml:"type"`
	Weights []float64 `yaml:"weights,omitempty"`
	Lower   []float64 `yaml:"lower,omitempty"`
	Upper   []float64 `yaml:"upper,omitempty"`
	Eps     float64   `yaml:"eps,omitempty"`
}

// Residual type tags understood by the builder.
const (
	ResidualState        = "state"
	ResidualControl      = "control"
	ResidualContactForce = "contact_force"
	ResidualCoP          = "cop"
	ResidualFrictionCone = "friction_cone"
	ResidualWrenchCone   = "wrench_cone"
	ResidualGravity      = "gravity"
	ResidualJointLimits  = "joint_limits"
)

// Parse decodes a YAML document into a Config.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "cannot decode node config")
	}
	return &cfg, nil
}

// Load reads and decodes a YAML file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read node config %q", path)
	}
	return Parse(raw)
}

// Validate checks the structural constraints that need no kinematic model,
// aggregating every violation.
func (c *Config) Validate() error {
	var err error
	switch c.Actuation {
	case "full", "floating_base":
	case "":
		if len(c.Impulses) == 0 {
			err = multierr.Append(err, errors.New("an actuation type is required for contact nodes"))
		}
	default:
		err = multierr.Append(err, errors.Errorf("unsupported actuation type %q", c.Actuation))
	}
	if c.Restitution < 0 || c.Restitution > 1 {
		err = multierr.Append(err, errors.Errorf("restitution must lie in [0, 1], got %g", c.Restitution))
	}
	if len(c.Contacts) > 0 && len(c.Impulses) > 0 {
		err = multierr.Append(err, errors.New("a node is either a contact node or an impulse node, not both"))
	}
	if c.JointLimits != nil && len(c.JointLimits.Lower) != len(c.JointLimits.Upper) {
		err = multierr.Append(err, errors.Errorf("joint limits have mismatched dimensions %d and %d",
			len(c.JointLimits.Lower), len(c.JointLimits.Upper)))
	}

	seen := map[string]bool{}
	for i, cc := range append(append([]ConstraintConfig{}, c.Contacts...), c.Impulses...) {
		if cc.Name == "" {
			err = multierr.Append(err, errors.Errorf("constraint %d has no name", i))
		} else if seen[cc.Name] {
			err = multierr.Append(err, errors.Errorf("constraint %q declared twice", cc.Name))
		}
		seen[cc.Name] = true
		if cc.Frame == "" {
			err = multierr.Append(err, errors.Errorf("constraint %q has no frame", cc.Name))
		}
		if cc.RefPoint != nil && len(cc.RefPoint) != 3 {
			err = multierr.Append(err, errors.Errorf("constraint %q: ref_point needs 3 entries, got %d", cc.Name, len(cc.RefPoint)))
		}
		if cc.RefRotation != nil && len(cc.RefRotation) != 9 {
			err = multierr.Append(err, errors.Errorf("constraint %q: ref_rotation needs 9 entries, got %d", cc.Name, len(cc.RefRotation)))
		}
		if cc.RefTranslation != nil && len(cc.RefTranslation) != 3 {
			err = multierr.Append(err, errors.Errorf("constraint %q: ref_translation needs 3 entries, got %d", cc.Name, len(cc.RefTranslation)))
		}
	}

	seen = map[string]bool{}
	for i, kc := range c.Costs {
		if kc.Name == "" {
			err = multierr.Append(err, errors.Errorf("cost %d has no name", i))
		} else if seen[kc.Name] {
			err = multierr.Append(err, errors.Errorf("cost %q declared twice", kc.Name))
		}
		seen[kc.Name] = true
		if kc.Weight < 0 {
			err = multierr.Append(err, errors.Errorf("cost %q has negative weight %g", kc.Name, kc.Weight))
		}
		if kc.Residual.Type == "" {
			err = multierr.Append(err, errors.Errorf("cost %q has no residual type", kc.Name))
		}
		if kc.Activation.Type == "" {
			err = multierr.Append(err, errors.Errorf("cost %q has no activation type", kc.Name))
		}
	}
	return err
}
