package collector_test

import (
	"testing"

	"github.com/edaniels/golog"
	"go.viam.com/test"

	"github.com/mechsys/optctrl/actuation"
	"github.com/mechsys/optctrl/body"
	"github.com/mechsys/optctrl/collector"
	"github.com/mechsys/optctrl/contact"
	"github.com/mechsys/optctrl/nodetest"
	"github.com/mechsys/optctrl/state"
	"gonum.org/v1/gonum/mat"
)

func TestEmptyCollectorReportsAbsentCapabilities(t *testing.T) {
	c := collector.New()

	_, err := c.Kinematics()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "kinematics")

	_, err = c.Actuation()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "actuation")

	_, err = c.JointLimits()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "joint-limit")

	_, err = c.Contacts()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "contact")

	_, err = c.Impulses()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "impulse")
}

func TestCollectorReturnsAttachedBlocks(t *testing.T) {
	m := nodetest.NewModel(2, nil)
	bd := m.NewData()
	act, err := actuation.NewFull(2)
	test.That(t, err, test.ShouldBeNil)
	ad := actuation.NewData(act)
	jl := &collector.JointLimits{Lower: []float64{-1, -1}, Upper: []float64{1, 1}}

	c := collector.New(
		collector.WithKinematics(bd),
		collector.WithActuation(ad),
		collector.WithJointLimits(jl),
	)

	gotBd, err := c.Kinematics()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotBd, test.ShouldEqual, bd)

	gotAd, err := c.Actuation()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotAd, test.ShouldEqual, ad)

	gotJl, err := c.JointLimits()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, gotJl, test.ShouldEqual, jl)
}

func TestContactAtLookup(t *testing.T) {
	logger := golog.NewTestLogger(t)
	m := nodetest.NewModel(3, []nodetest.FrameSpec{
		{Name: "foot", Jacobian: mat.NewDense(6, 3, nil)},
	})
	st := state.NewMultibody(m)
	frame, ok := m.FrameByName("foot")
	test.That(t, ok, test.ShouldBeTrue)

	set := contact.NewSet(st, 3, logger)
	c3, err := contact.NewContact3D(st, frame, body.Local, 3, contact.Gains{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add("foot", c3), test.ShouldBeNil)

	bd := m.NewData()
	sd := set.CreateData(bd)
	c := collector.New(collector.WithKinematics(bd), collector.WithContacts(sd))

	d, err := c.ContactAt(frame, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Frame, test.ShouldEqual, frame)

	_, err = c.ContactAt(frame+1, false)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no constraint")

	// The impulse stack was never attached.
	_, err = c.ContactAt(frame, true)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "impulse")
}

func TestContactAtPrefersFirstRegistered(t *testing.T) {
	logger := golog.NewTestLogger(t)
	m := nodetest.NewModel(3, []nodetest.FrameSpec{
		{Name: "foot", Jacobian: mat.NewDense(6, 3, nil)},
	})
	st := state.NewMultibody(m)
	frame, ok := m.FrameByName("foot")
	test.That(t, ok, test.ShouldBeTrue)

	// Two constraints bound to the same frame: the lookup must resolve to
	// the first-registered one on every call.
	set := contact.NewSet(st, 3, logger)
	first, err := contact.NewContact3D(st, frame, body.Local, 3, contact.Gains{}, nil)
	test.That(t, err, test.ShouldBeNil)
	second, err := contact.NewContact3D(st, frame, body.Local, 3, contact.Gains{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, set.Add("heel", first), test.ShouldBeNil)
	test.That(t, set.Add("toe", second), test.ShouldBeNil)

	bd := m.NewData()
	sd := set.CreateData(bd)
	c := collector.New(collector.WithKinematics(bd), collector.WithContacts(sd))

	for i := 0; i < 10; i++ {
		d, err := c.ContactAt(frame, false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, d, test.ShouldEqual, sd.Contacts["heel"])
	}
}
