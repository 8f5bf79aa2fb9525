package config_test

import (
	"testing"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/config"
	"github.com/mechsys/optctrl/node"
	"github.com/mechsys/optctrl/nodetest"
)

const contactNodeYAML = `
actuation: full
joint_limits:
  lower: [-1, -1, -1, -2, -2, -2]
  upper: [1, 1, 1, 2, 2, 2]
contacts:
  - name: foot
    frame: foot
    kind: 3d
    convention: local
costs:
  - name: reg
    weight: 0.1
    residual:
      type: state
    activation:
      type: quad
  - name: effort
    weight: 1
    residual:
      type: control
    activation:
      type: quad
  - name: friction
    weight: 2
    residual:
      type: friction_cone
      frame: foot
      mu: 0.7
    activation:
      type: quad
`

func stubModel() *nodetest.Model {
	jac := mat.NewDense(6, 3, nil)
	for i := 0; i < 3; i++ {
		jac.Set(i, i, 1)
	}
	return nodetest.NewModel(3, []nodetest.FrameSpec{{Name: "foot", Jacobian: jac}})
}

func TestParseContactNode(t *testing.T) {
	cfg, err := config.Parse([]byte(contactNodeYAML))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Actuation, test.ShouldEqual, "full")
	test.That(t, cfg.JointLimits, test.ShouldNotBeNil)
	test.That(t, len(cfg.JointLimits.Lower), test.ShouldEqual, 6)
	test.That(t, len(cfg.Contacts), test.ShouldEqual, 1)
	test.That(t, cfg.Contacts[0].Kind, test.ShouldEqual, "3d")
	test.That(t, len(cfg.Costs), test.ShouldEqual, 3)
	test.That(t, cfg.Costs[2].Residual.Mu, test.ShouldEqual, 0.7)
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := config.Parse([]byte("actuation: [unclosed"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot decode")
}

func TestValidateAggregatesEveryProblem(t *testing.T) {
	cfg := &config.Config{
		Actuation:   "hydraulic",
		Restitution: 2,
		Contacts:    []config.ConstraintConfig{{Name: "a", Frame: "foot"}},
		Impulses:    []config.ConstraintConfig{{Name: "a", Frame: "foot"}},
		Costs: []config.CostConfig{
			{Name: "c", Weight: -1},
			{Name: "c", Weight: 1},
		},
	}
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	// Every violation is reported, not just the first.
	test.That(t, len(multierr.Errors(err)), test.ShouldBeGreaterThanOrEqualTo, 5)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported actuation type")
	test.That(t, err.Error(), test.ShouldContainSubstring, "restitution")
	test.That(t, err.Error(), test.ShouldContainSubstring, "not both")
	test.That(t, err.Error(), test.ShouldContainSubstring, `constraint "a" declared twice`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `cost "c" declared twice`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "negative weight")
}

func TestBuildContactNode(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := config.Parse([]byte(contactNodeYAML))
	test.That(t, err, test.ShouldBeNil)

	dyn, err := config.Build(stubModel(), cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	cd, ok := dyn.(*node.ContactFwdDynamics)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, cd.NU(), test.ShouldEqual, 3)
	test.That(t, cd.Contacts().NCTotal(), test.ShouldEqual, 3)
	test.That(t, cd.Costs().Costs(), test.ShouldResemble, []string{"reg", "effort", "friction"})

	d, err := cd.CreateData()
	test.That(t, err, test.ShouldBeNil)
	st := cd.State()
	x := st.Zero()
	u := mat.NewVecDense(3, []float64{1, 0, -1})
	test.That(t, cd.Calc(d, x, u), test.ShouldBeNil)
	test.That(t, cd.CalcDiff(d, x, u), test.ShouldBeNil)
}

func TestBuildImpulseNode(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := config.Parse([]byte(`
restitution: 0.5
impulses:
  - name: foot
    frame: foot
    kind: 3d
    convention: local
costs:
  - name: reg
    weight: 1
    residual:
      type: state
    activation:
      type: quad
`))
	test.That(t, err, test.ShouldBeNil)

	dyn, err := config.Build(stubModel(), cfg, logger)
	test.That(t, err, test.ShouldBeNil)

	id, ok := dyn.(*node.ImpulseDynamics)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, id.NU(), test.ShouldEqual, 0)
	test.That(t, id.Restitution(), test.ShouldEqual, 0.5)

	d, err := id.CreateData()
	test.That(t, err, test.ShouldBeNil)
	st := id.State()
	x := st.Zero()
	test.That(t, id.Calc(d, x, nil), test.ShouldBeNil)
	test.That(t, id.CalcDiff(d, x, nil), test.ShouldBeNil)
}

func TestBuildAggregatesItemErrors(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg, err := config.Parse([]byte(`
actuation: full
contacts:
  - name: bad_kind
    frame: foot
    kind: 9d
    convention: local
  - name: bad_frame
    frame: nowhere
    kind: 3d
    convention: local
costs:
  - name: bad_residual
    weight: 1
    residual:
      type: teleport
    activation:
      type: quad
  - name: bad_activation
    weight: 1
    residual:
      type: state
    activation:
      type: mystery
`))
	test.That(t, err, test.ShouldBeNil)

	_, err = config.Build(stubModel(), cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unsupported contact kind "9d"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `no frame "nowhere"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unsupported residual type "teleport"`)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unsupported activation type")
}

func TestBuildRequiresActuationForContactNodes(t *testing.T) {
	logger := golog.NewTestLogger(t)
	cfg := &config.Config{
		Costs: []config.CostConfig{{
			Name: "reg", Weight: 1,
			Residual:   config.ResidualConfig{Type: config.ResidualState},
			Activation: config.ActivationConfig{Type: "quad"},
		}},
	}
	_, err := config.Build(stubModel(), cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "actuation type is required")
}
