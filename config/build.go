package config

import (
	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/activation"
	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/cost"
	"github.com/mechsys/optctrl/node"
	"github.com/mechsys/optctrl/spatial"
	"github.com/mechsys/optctrl/state"
)

// Build compiles a validated config over a kinematic model into a ready node
// model: an ImpulseDynamics when impulses are declared, a ContactFwdDynamics
// otherwise.
func Build(model body.Model, cfg *Config, logger golog.Logger) (node.DiffModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid node config")
	}
	st := state.NewMultibody(model)
	if len(cfg.Impulses) > 0 {
		return buildImpulseNode(st, cfg, logger)
	}
	return buildContactNode(st, cfg, logger)
}

func buildContactNode(st *state.Multibody, cfg *Config, logger golog.Logger) (node.DiffModel, error) {
	act, err := buildActuation(st, cfg.Actuation)
	if err != nil {
		return nil, err
	}
	nu := act.NU()

	contacts := contact.NewSet(st, nu, logger)
	var errs error
	for _, cc := range cfg.Contacts {
		m, err := buildConstraint(st, cc, nu, false)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "contact %q", cc.Name))
			continue
		}
		if err := contacts.Add(cc.Name, m); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	costs := cost.NewSum(st, nu, logger)
	for _, kc := range cfg.Costs {
		term, err := buildTerm(st, kc, nu)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "cost %q", kc.Name))
			continue
		}
		if err := costs.AddCost(kc.Name, term, kc.Weight); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}

	var opts []node.Option
	if cfg.JointLimits != nil {
		opts = append(opts, node.WithJointLimits(&collector.JointLimits{
			Lower: cfg.JointLimits.Lower,
			Upper: cfg.JointLimits.Upper,
		}))
	}
	return node.NewContactFwdDynamics(st, act, contacts, costs, logger, opts...)
}

func buildImpulseNode(st *state.Multibody, cfg *Config, logger golog.Logger) (node.DiffModel, error) {
	impulses := contact.NewSet(st, 0, logger)
	var errs error
	for _, cc := range cfg.Impulses {
		m, err := buildConstraint(st, cc, 0, true)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "impulse %q", cc.Name))
			continue
		}
		if err := impulses.Add(cc.Name, m); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	costs := cost.NewSum(st, 0, logger)
	for _, kc := range cfg.Costs {
		term, err := buildTerm(st, kc, 0)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "cost %q", kc.Name))
			continue
		}
		if err := costs.AddCost(kc.Name, term, kc.Weight); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}

	var opts []node.ImpulseOption
	if cfg.JointLimits != nil {
		opts = append(opts, node.WithImpulseJointLimits(&collector.JointLimits{
			Lower: cfg.JointLimits.Lower,
			Upper: cfg.JointLimits.Upper,
		}))
	}
	return node.NewImpulseDynamics(st, impulses, costs, cfg.Restitution, logger, opts...)
}

func buildActuation(st *state.Multibody, tag string) (actuation.Model, error) {
	switch tag {
	case "full":
		return actuation.NewFull(st.NV())
	case "floating_base":
		return actuation.NewFloatingBase(st.NV())
	default:
		return nil, errors.Errorf("unsupported actuation type %q", tag)
	}
}

func buildConstraint(st *state.Multibody, cc ConstraintConfig, nu int, impulse bool) (contact.Model, error) {
	kind, err := contact.ParseKind(cc.Kind)
	if err != nil {
		return nil, err
	}
	conv, err := body.ParseReferenceFrame(cc.Convention)
	if err != nil {
		return nil, err
	}
	frame, ok := st.Model().FrameByName(cc.Frame)
	if !ok {
		return nil, errors.Errorf("the model has no frame %q", cc.Frame)
	}
	opts := contact.Options{
		Frame:      frame,
		Convention: conv,
		NU:         nu,
		Gains:      contact.Gains{Kp: cc.Gains.Kp, Kv: cc.Gains.Kv},
	}
	if cc.RefPoint != nil {
		opts.RefPoint = &r3.Vector{X: cc.RefPoint[0], Y: cc.RefPoint[1], Z: cc.RefPoint[2]}
	}
	if cc.RefRotation != nil && cc.RefTranslation != nil {
		pl := spatial.NewPlacement(
			mat.NewDense(3, 3, cc.RefRotation),
			r3.Vector{X: cc.RefTranslation[0], Y: cc.RefTranslation[1], Z: cc.RefTranslation[2]},
		)
		opts.RefPlacement = &pl
	}
	if impulse {
		return contact.NewImpulse(kind, st, opts)
	}
	return contact.NewContact(kind, st, opts)
}

func buildTerm(st *state.Multibody, kc CostConfig, nu int) (*cost.Term, error) {
	res, err := buildResidual(st, kc.Residual, nu)
	if err != nil {
		return nil, err
	}
	act, err := activation.New(activation.Type(kc.Activation.Type), activation.Options{
		NR:      res.NR(),
		Weights: kc.Activation.Weights,
		Lower:   kc.Activation.Lower,
		Upper:   kc.Activation.Upper,
		Eps:     kc.Activation.Eps,
	})
	if err != nil {
		return nil, err
	}
	return cost.NewTerm(act, res)
}

func buildResidual(st *state.Multibody, rc ResidualConfig, nu int) (cost.Residual, error) {
	switch rc.Type {
	case ResidualState:
		xref := st.Zero()
		if rc.Ref != nil {
			if len(rc.Ref) != st.NX() {
				return nil, errors.Errorf("state reference needs %d entries, got %d", st.NX(), len(rc.Ref))
			}
			xref = mat.NewVecDense(st.NX(), rc.Ref)
		}
		return cost.NewStateResidual(st, xref, nu)
	case ResidualControl:
		if rc.Ref != nil {
			if len(rc.Ref) != nu {
				return nil, errors.Errorf("control reference needs %d entries, got %d", nu, len(rc.Ref))
			}
			return cost.NewControlResidual(st, mat.NewVecDense(nu, rc.Ref))
		}
		return cost.NewZeroControlResidual(st, nu)
	case ResidualContactForce:
		frame, err := resolveFrame(st, rc)
		if err != nil {
			return nil, err
		}
		kind, err := contact.ParseKind(rc.Kind)
		if err != nil {
			return nil, err
		}
		var fref spatial.Force
		if rc.Ref != nil {
			if len(rc.Ref) != 6 {
				return nil, errors.Errorf("wrench reference needs 6 entries, got %d", len(rc.Ref))
			}
			fref = spatial.ForceFromVec(mat.NewVecDense(6, rc.Ref))
		}
		return cost.NewContactForceResidual(st, frame, fref, kind, nu)
	case ResidualCoP:
		frame, err := resolveFrame(st, rc)
		if err != nil {
			return nil, err
		}
		if len(rc.Box) != 2 {
			return nil, errors.Errorf("a support box needs 2 entries, got %d", len(rc.Box))
		}
		support, err := cost.NewCoPSupport(identity3(), rc.Box[0], rc.Box[1])
		if err != nil {
			return nil, err
		}
		return cost.NewCoPResidual(st, frame, support, nu)
	case ResidualFrictionCone:
		frame, err := resolveFrame(st, rc)
		if err != nil {
			return nil, err
		}
		facets := rc.Facets
		if facets == 0 {
			facets = 4
		}
		cone, err := cost.NewFrictionCone(identity3(), rc.Mu, facets, rc.Inner, rc.MinForce)
		if err != nil {
			return nil, err
		}
		return cost.NewFrictionConeResidual(st, frame, cone, nu)
	case ResidualWrenchCone:
		frame, err := resolveFrame(st, rc)
		if err != nil {
			return nil, err
		}
		if len(rc.Box) != 2 {
			return nil, errors.Errorf("a support box needs 2 entries, got %d", len(rc.Box))
		}
		cone, err := cost.NewWrenchCone(identity3(), rc.Mu, rc.Box[0], rc.Box[1], rc.Inner, rc.MinForce)
		if err != nil {
			return nil, err
		}
		return cost.NewWrenchConeResidual(st, frame, cone, nu)
	case ResidualGravity:
		return cost.NewGravityResidual(st, nu), nil
	case ResidualJointLimits:
		return cost.NewJointLimitsResidual(st, nu), nil
	default:
		return nil, errors.Errorf("unsupported residual type %q", rc.Type)
	}
}

func resolveFrame(st *state.Multibody, rc ResidualConfig) (body.FrameID, error) {
	if rc.Frame == "" {
		return 0, errors.Errorf("residual type %q needs a frame", rc.Type)
	}
	frame, ok := st.Model().FrameByName(rc.Frame)
	if !ok {
		return 0, errors.Errorf("the model has no frame %q", rc.Frame)
	}
	return frame, nil
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}
