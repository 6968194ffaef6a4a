package sim

import (
	"math"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/ky28059/GRT2023/balance"
	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/swervemodule"
)

const dt = 20 * time.Millisecond

func newWorld(t *testing.T, start kinematics.Pose) (*World, *kinematics.Kinematics) {
	t.Helper()
	kin, err := kinematics.New(kinematics.Layout{{X: 0.3, Y: 0.3}, {X: 0.3, Y: -0.3}, {X: -0.3, Y: 0.3}, {X: -0.3, Y: -0.3}})
	test.That(t, err, test.ShouldBeNil)
	var cfgs [kinematics.NumModules]swervemodule.SimConfig
	for i := range cfgs {
		cfgs[i] = swervemodule.DefaultSimConfig()
	}
	return NewWorld(kin, cfgs, start, 0.4), kin
}

func TestPlatformTarget(t *testing.T) {
	p := DefaultPlatform(5)
	test.That(t, p.target(8), test.ShouldEqual, 0.0)
	test.That(t, p.target(5.9), test.ShouldAlmostEqual, -p.MaxTilt, 1e-12)
	test.That(t, p.target(4.1), test.ShouldAlmostEqual, p.MaxTilt, 1e-12)
	test.That(t, p.target(5), test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, p.target(5.075), test.ShouldAlmostEqual, -p.MaxTilt/2, 1e-12)

	for i := 0; i < 50; i++ {
		p.Step(dt, 5.5)
	}
	test.That(t, p.Pitch(), test.ShouldAlmostEqual, -p.MaxTilt, 1e-3)
}

func TestChassisIntegratesRotation(t *testing.T) {
	w, kin := newWorld(t, kinematics.Pose{})
	states := kin.ToModuleStates(kinematics.ChassisSpeeds{Omega: 1}, [kinematics.NumModules]kinematics.ModuleState{})
	for i, m := range w.Modules {
		m.SetDesiredState(states[i])
	}
	for i := 0; i < 100; i++ {
		w.Step(dt)
	}
	// modules need a few cycles to steer and spin up
	heading := w.Chassis.Pose().Heading
	test.That(t, heading, test.ShouldBeBetween, 1.8, 2.0)
	test.That(t, w.Chassis.Speeds().Omega, test.ShouldAlmostEqual, 1, 1e-3)
	test.That(t, w.Sample().Yaw, test.ShouldAlmostEqual, kinematics.NormalizeAngle(heading+0.4), 1e-12)
	test.That(t, w.Sample().Connected, test.ShouldBeTrue)
}

func runBalance(t *testing.T, w *World, kin *kinematics.Kinematics, limit time.Duration) *balance.Controller {
	t.Helper()
	logger := logging.NewTestLogger(t)
	d, err := drivetrain.New(w.DriveModules(), kin, drivetrain.DefaultConfig(), w.Sample(), logger)
	test.That(t, err, test.ShouldBeNil)
	b, err := balance.New(d, balance.DefaultConfig(), logger)
	test.That(t, err, test.ShouldBeNil)

	b.Initialize(w.Sample().Pitch)
	for elapsed := time.Duration(0); elapsed < limit; elapsed += dt {
		sample := w.Sample()
		b.Execute(dt, sample.Pitch)
		if b.IsFinished() {
			b.End(false)
			break
		}
		d.Periodic(dt, sample)
		w.Step(dt)
	}
	test.That(t, d.Command().IsZero(), test.ShouldBeTrue)
	return b
}

func TestBalanceOnPlatform(t *testing.T) {
	w, kin := newWorld(t, kinematics.Pose{X: 2})
	w.Platform = DefaultPlatform(0)

	b := runBalance(t, w, kin, 15*time.Second)
	test.That(t, b.Phase(), test.ShouldEqual, balance.Balanced)
	test.That(t, b.Interrupted(), test.ShouldBeFalse)
	test.That(t, math.Abs(w.Chassis.Pose().X), test.ShouldBeLessThan, 0.05)
	test.That(t, math.Abs(w.Platform.Pitch()), test.ShouldBeLessThanOrEqualTo, balance.DefaultConfig().BalancedPitch)
}

func TestBalanceOnFlatGroundRunsAway(t *testing.T) {
	w, kin := newWorld(t, kinematics.Pose{X: 2})

	b := runBalance(t, w, kin, 5*time.Second)
	test.That(t, b.Phase(), test.ShouldEqual, balance.Approaching)
	test.That(t, b.Interrupted(), test.ShouldBeTrue)
	test.That(t, b.Elapsed(), test.ShouldEqual, 2*time.Second)
	test.That(t, w.Chassis.Pose().X, test.ShouldBeLessThan, 1.0)
}
