package drivetrain

import (
	"fmt"
	"math"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/swervemodule"
)

const (
	tol = 1e-9
	dt  = 20 * time.Millisecond
)

// fakeModule reports a fixed angle and records the order of calls in a shared log.
type fakeModule struct {
	index    int
	log      *[]string
	angle    float64
	distance float64
	desired  kinematics.ModuleState
}

func (m *fakeModule) SetDesiredState(desired kinematics.ModuleState) {
	*m.log = append(*m.log, fmt.Sprintf("set%d", m.index))
	m.desired = desired
}

func (m *fakeModule) Position() kinematics.ModulePosition {
	*m.log = append(*m.log, fmt.Sprintf("pos%d", m.index))
	return kinematics.ModulePosition{Distance: m.distance, Angle: m.angle}
}

func (m *fakeModule) State() kinematics.ModuleState {
	return kinematics.ModuleState{Angle: m.angle}
}

func (m *fakeModule) Telemetry() swervemodule.Telemetry {
	return swervemodule.Telemetry{TargetSpeed: m.desired.Speed, TargetAngle: m.desired.Angle, ActualAngle: m.angle}
}

func newTestDrivetrain(t *testing.T, cfg Config, initial GyroSample) (*Drivetrain, []*fakeModule, *[]string) {
	t.Helper()
	kin, err := kinematics.New(kinematics.Layout{
		{X: 0.3, Y: 0.3},
		{X: 0.3, Y: -0.3},
		{X: -0.3, Y: 0.3},
		{X: -0.3, Y: -0.3},
	})
	test.That(t, err, test.ShouldBeNil)

	log := &[]string{}
	fakes := make([]*fakeModule, kinematics.NumModules)
	var modules [kinematics.NumModules]swervemodule.Module
	for i := range modules {
		fakes[i] = &fakeModule{index: i, log: log, angle: 0.1 * float64(i)}
		modules[i] = fakes[i]
	}
	d, err := New(modules, kin, cfg, initial, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	*log = nil
	return d, fakes, log
}

func connected(yaw float64) GyroSample {
	return GyroSample{Yaw: yaw, Connected: true}
}

func TestNewRejectsBadConfig(t *testing.T) {
	kin, err := kinematics.New(kinematics.Layout{{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1}})
	test.That(t, err, test.ShouldBeNil)
	var modules [kinematics.NumModules]swervemodule.Module
	for i := range modules {
		modules[i] = swervemodule.NewSim(swervemodule.DefaultSimConfig())
	}
	logger := logging.NewTestLogger(t)

	_, err = New(modules, kin, Config{MaxVelocity: 0, MaxOmega: 1}, connected(0), logger)
	test.That(t, err, test.ShouldNotBeNil)

	modules[2] = nil
	_, err = New(modules, kin, DefaultConfig(), connected(0), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLockTransition(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))

	for i := 0; i < 49; i++ {
		d.Periodic(dt, connected(0))
	}
	test.That(t, d.Mode(), test.ShouldEqual, Driving)

	d.Periodic(dt, connected(0))
	test.That(t, d.IdleTime(), test.ShouldEqual, time.Second)
	test.That(t, d.Mode(), test.ShouldEqual, Locked)
	for i, f := range fakes {
		test.That(t, f.desired.Speed, test.ShouldEqual, 0.0)
		test.That(t, f.desired.Angle, test.ShouldEqual, lockAngles[i])
	}
	test.That(t, d.IsMoving(), test.ShouldBeFalse)

	d.SetChassisCommand(ChassisCommand{Vx: 0.1})
	d.Periodic(dt, connected(0))
	test.That(t, d.Mode(), test.ShouldEqual, Driving)
	test.That(t, d.IdleTime(), test.ShouldEqual, time.Duration(0))
	test.That(t, d.IsMoving(), test.ShouldBeTrue)
}

func TestLockingDisabledAndOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockingDisabled = true
	d, _, _ := newTestDrivetrain(t, cfg, connected(0))

	for i := 0; i < 100; i++ {
		d.Periodic(dt, connected(0))
	}
	test.That(t, d.Mode(), test.ShouldEqual, Driving)

	test.That(t, d.ToggleLockOverride(), test.ShouldBeTrue)
	d.SetChassisCommand(ChassisCommand{Vx: 0.5})
	d.Periodic(dt, connected(0))
	test.That(t, d.Mode(), test.ShouldEqual, Locked)

	test.That(t, d.ToggleLockOverride(), test.ShouldBeFalse)
	d.Periodic(dt, connected(0))
	test.That(t, d.Mode(), test.ShouldEqual, Driving)
}

func TestZeroCommandKeepsModuleAngles(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))
	d.Periodic(dt, connected(0))
	for _, f := range fakes {
		test.That(t, f.desired.Speed, test.ShouldEqual, 0.0)
		test.That(t, f.desired.Angle, test.ShouldEqual, f.angle)
	}
}

func TestCommandsBeforeFeedback(t *testing.T) {
	d, _, log := newTestDrivetrain(t, DefaultConfig(), connected(0))
	d.SetChassisCommand(ChassisCommand{Vx: 0.5, Omega: 0.2})
	d.Periodic(dt, connected(0))
	test.That(t, *log, test.ShouldResemble, []string{"set0", "set1", "set2", "set3", "pos0", "pos1", "pos2", "pos3"})
}

func TestFieldRelative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxVelocity = 2
	d, fakes, _ := newTestDrivetrain(t, cfg, connected(0.5))

	// the robot has turned a quarter turn left since the field was zeroed
	d.SetChassisCommand(ChassisCommand{Vx: 1, FieldRelative: true})
	d.Periodic(dt, connected(0.5+math.Pi/2))
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, math.Pi/2, tol)
	for _, f := range fakes {
		test.That(t, f.desired.Speed, test.ShouldAlmostEqual, 1, tol)
		test.That(t, f.desired.Angle, test.ShouldAlmostEqual, -math.Pi/2, tol)
	}

	d.SetChassisCommand(ChassisCommand{Vx: 1})
	d.Periodic(dt, connected(0.5+math.Pi/2))
	for _, f := range fakes {
		test.That(t, f.desired.Angle, test.ShouldAlmostEqual, 0, tol)
	}
}

func TestSensorFallback(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))
	d.Periodic(dt, connected(1.0))
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 1.0, tol)

	d.SetChassisCommand(ChassisCommand{Vx: 0.5, FieldRelative: true})
	d.Periodic(dt, GyroSample{})
	test.That(t, d.SensorConnected(), test.ShouldBeFalse)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, d.Pose().Heading, tol)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 1.0, tol)
	for _, f := range fakes {
		test.That(t, f.desired.Angle, test.ShouldAlmostEqual, -1.0, tol)
	}

	d.Periodic(dt, connected(1.2))
	test.That(t, d.SensorConnected(), test.ShouldBeTrue)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 1.2, tol)
}

func TestLateSensorKeepsFieldHeading(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), GyroSample{})
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 0, tol)

	// the sensor's yaw zero is arbitrary and must not leak into the field frame
	d.SetChassisCommand(ChassisCommand{Vx: 0.5, FieldRelative: true})
	d.Periodic(dt, connected(2.0))
	test.That(t, d.SensorConnected(), test.ShouldBeTrue)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 0, tol)
	test.That(t, d.Pose().Heading, test.ShouldAlmostEqual, 0, tol)
	test.That(t, d.HeadingOffset(), test.ShouldAlmostEqual, 2.0, tol)
	for _, f := range fakes {
		test.That(t, f.desired.Angle, test.ShouldAlmostEqual, 0, tol)
	}

	// from here on the sensor drives rotation
	d.Periodic(dt, connected(2.5))
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 0.5, tol)
	test.That(t, d.Pose().Heading, test.ShouldAlmostEqual, 0.5, tol)

	// a later dropout keeps the baseline
	d.Periodic(dt, GyroSample{})
	d.Periodic(dt, connected(2.7))
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, 0.7, tol)
}

func TestNonFiniteCommandIsZeroed(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))
	d.SetChassisCommand(ChassisCommand{Vx: math.NaN(), Vy: 0.5, Omega: math.Inf(1)})
	cmd := d.Command()
	test.That(t, cmd.Vx, test.ShouldEqual, 0.0)
	test.That(t, cmd.Vy, test.ShouldEqual, 0.5)
	test.That(t, cmd.Omega, test.ShouldEqual, 0.0)

	d.Periodic(dt, connected(0))
	for _, f := range fakes {
		test.That(t, math.IsNaN(f.desired.Speed), test.ShouldBeFalse)
		test.That(t, math.IsNaN(f.desired.Angle), test.ShouldBeFalse)
	}
	test.That(t, math.IsNaN(d.Pose().X), test.ShouldBeFalse)
}

func TestResetFieldHeadingKeepsTranslation(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0.3))
	for _, f := range fakes {
		f.angle = 0
		f.distance = 0.75
	}
	d.Periodic(dt, connected(0.3))
	before := d.Pose()
	test.That(t, before.X, test.ShouldAlmostEqual, 0.75, tol)

	const target = 2.5
	d.ResetFieldHeading(target)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, target, tol)
	test.That(t, d.Pose().X, test.ShouldAlmostEqual, before.X, tol)
	test.That(t, d.Pose().Y, test.ShouldAlmostEqual, before.Y, tol)

	// no jump on the next cycle
	d.Periodic(dt, connected(0.3))
	test.That(t, d.Pose().X, test.ShouldAlmostEqual, before.X, tol)
	test.That(t, d.FieldHeading(), test.ShouldAlmostEqual, target, tol)
}

func TestResetPose(t *testing.T) {
	d, _, _ := newTestDrivetrain(t, DefaultConfig(), connected(-1))
	d.ResetPose(kinematics.Pose{X: 3, Y: 4, Heading: math.Pi})
	d.Periodic(dt, connected(-1))
	pose := d.Pose()
	test.That(t, pose.X, test.ShouldAlmostEqual, 3, tol)
	test.That(t, pose.Y, test.ShouldAlmostEqual, 4, tol)
	test.That(t, math.Abs(d.FieldHeading()), test.ShouldAlmostEqual, math.Pi, tol)
}

func TestSetDrivePowers(t *testing.T) {
	d, _, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))
	cfg := d.Config()

	d.SetDrivePowers(2, 0.5, -3, true)
	cmd := d.Command()
	test.That(t, cmd.Vx, test.ShouldAlmostEqual, cfg.MaxVelocity, tol)
	test.That(t, cmd.Vy, test.ShouldAlmostEqual, 0.5*cfg.MaxVelocity, tol)
	test.That(t, cmd.Omega, test.ShouldAlmostEqual, -cfg.MaxOmega, tol)
	test.That(t, cmd.FieldRelative, test.ShouldBeFalse)

	d.SetDrivePower(-0.17)
	cmd = d.Command()
	test.That(t, cmd, test.ShouldResemble, ChassisCommand{Vx: -0.17 * cfg.MaxVelocity})

	d.Stop()
	test.That(t, d.Command().IsZero(), test.ShouldBeTrue)
}

func TestDesaturatesToLimits(t *testing.T) {
	d, fakes, _ := newTestDrivetrain(t, DefaultConfig(), connected(0))
	d.SetChassisCommand(ChassisCommand{Vx: 5, Vy: 5, Omega: 10})
	d.Periodic(dt, connected(0))
	for _, f := range fakes {
		test.That(t, math.Abs(f.desired.Speed), test.ShouldBeLessThanOrEqualTo, d.Config().MaxVelocity+tol)
	}
	test.That(t, d.ModuleTelemetry()[0].TargetSpeed, test.ShouldEqual, fakes[0].desired.Speed)
}

func TestWithSimModules(t *testing.T) {
	kin, err := kinematics.New(kinematics.Layout{{X: 0.3, Y: 0.3}, {X: 0.3, Y: -0.3}, {X: -0.3, Y: 0.3}, {X: -0.3, Y: -0.3}})
	test.That(t, err, test.ShouldBeNil)
	var modules [kinematics.NumModules]swervemodule.Module
	sims := make([]*swervemodule.Sim, kinematics.NumModules)
	for i := range modules {
		sims[i] = swervemodule.NewSim(swervemodule.DefaultSimConfig())
		modules[i] = sims[i]
	}
	d, err := New(modules, kin, DefaultConfig(), connected(0), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	d.SetChassisCommand(ChassisCommand{Vy: 0.5})
	for i := 0; i < 100; i++ {
		d.Periodic(dt, connected(0))
		for _, s := range sims {
			s.Step(dt)
		}
	}
	pose := d.Pose()
	test.That(t, pose.Y, test.ShouldBeBetween, 0.8, 1.0)
	// some forward travel while the wheels steer around
	test.That(t, math.Abs(pose.X), test.ShouldBeLessThan, 0.1)
	test.That(t, d.Mode(), test.ShouldEqual, Driving)
}
