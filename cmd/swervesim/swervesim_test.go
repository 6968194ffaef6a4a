package main

import (
	"math"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/ky28059/GRT2023/balance"
	"github.com/ky28059/GRT2023/drivetrain"
)

func TestRunDriveStraight(t *testing.T) {
	res, err := runDrive(driveOptions{
		command:  drivetrain.ChassisCommand{Vx: 0.5},
		duration: 2 * time.Second,
		settle:   1500 * time.Millisecond,
		dt:       20 * time.Millisecond,
	}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.truth.X, test.ShouldBeBetween, 0.95, 1.05)
	test.That(t, math.Abs(res.truth.Y), test.ShouldBeLessThan, 0.01)
	test.That(t, res.estimate.X, test.ShouldAlmostEqual, res.truth.X, 0.02)
	test.That(t, res.mode, test.ShouldEqual, drivetrain.Locked)
}

func TestRunDriveFieldRelative(t *testing.T) {
	res, err := runDrive(driveOptions{
		command:  drivetrain.ChassisCommand{Vx: 0.5, FieldRelative: true},
		heading:  math.Pi / 2,
		duration: 2 * time.Second,
		dt:       20 * time.Millisecond,
	}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	// the wheels have to steer a quarter turn first
	test.That(t, res.truth.X, test.ShouldBeBetween, 0.8, 1.0)
	test.That(t, math.Abs(res.truth.Y), test.ShouldBeLessThan, 0.05)
	test.That(t, res.truth.Heading, test.ShouldAlmostEqual, math.Pi/2, 0.01)
	test.That(t, res.mode, test.ShouldEqual, drivetrain.Driving)
}

func TestRunDriveRejectsBadPeriod(t *testing.T) {
	_, err := runDrive(driveOptions{}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runBalance(balanceOptions{}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunBalance(t *testing.T) {
	res, err := runBalance(balanceOptions{
		startX: 2,
		limit:  15 * time.Second,
		dt:     20 * time.Millisecond,
	}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.phase, test.ShouldEqual, balance.Balanced)
	test.That(t, res.interrupted, test.ShouldBeFalse)
	test.That(t, math.Abs(res.x), test.ShouldBeLessThan, 0.05)

	res, err = runBalance(balanceOptions{
		startX: 2,
		flat:   true,
		limit:  5 * time.Second,
		dt:     20 * time.Millisecond,
	}, rectangleLayout(0.6, 0.6), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.phase, test.ShouldEqual, balance.Approaching)
	test.That(t, res.interrupted, test.ShouldBeTrue)
	test.That(t, res.elapsed, test.ShouldEqual, 2*time.Second)
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand()
	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	test.That(t, names, test.ShouldContain, "drive")
	test.That(t, names, test.ShouldContain, "balance")

	cmd.SetArgs([]string{"drive", "--duration", "200ms", "--settle", "0s"})
	test.That(t, cmd.Execute(), test.ShouldBeNil)
}
