package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.viam.com/rdk/logging"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
)

type driveOptions struct {
	command  drivetrain.ChassisCommand
	heading  float64
	duration time.Duration
	settle   time.Duration
	dt       time.Duration
}

type driveResult struct {
	truth    kinematics.Pose
	estimate kinematics.Pose
	mode     drivetrain.Mode
}

// runDrive holds the command for the duration, then stops and lets the base settle.
func runDrive(opts driveOptions, layout kinematics.Layout, logger logging.Logger) (driveResult, error) {
	if opts.dt <= 0 {
		return driveResult{}, errors.New("dt must be positive")
	}
	s, err := newSimulation(layout, kinematics.Pose{Heading: opts.heading}, logger)
	if err != nil {
		return driveResult{}, err
	}

	s.drive.SetChassisCommand(opts.command)
	nextReport := time.Second
	for elapsed := time.Duration(0); elapsed < opts.duration; elapsed += opts.dt {
		s.step(opts.dt)
		if elapsed+opts.dt >= nextReport {
			pose := s.drive.Pose()
			logrus.WithFields(logrus.Fields{
				"t":       (elapsed + opts.dt).Seconds(),
				"x":       pose.X,
				"y":       pose.Y,
				"heading": pose.Heading,
			}).Info("pose")
			nextReport += time.Second
		}
	}

	s.drive.Stop()
	for elapsed := time.Duration(0); elapsed < opts.settle; elapsed += opts.dt {
		s.step(opts.dt)
	}

	return driveResult{
		truth:    s.world.Chassis.Pose(),
		estimate: s.drive.Pose(),
		mode:     s.drive.Mode(),
	}, nil
}

func NewDriveCommand() *cobra.Command {
	opts := driveOptions{}
	var headingDeg float64

	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Hold a chassis velocity and report the pose",
		Long: `Hold a chassis velocity and report the pose.

The command is held for --duration, then the base stops and settles for --settle,
long enough for the wheels to lock with the default timeout.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			opts.heading = kinematics.NormalizeAngle(rdkutils.DegToRad(headingDeg))
			res, err := runDrive(opts, rectangleLayout(trackWidth, wheelbase), coreLogger())
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{
				"x":       res.truth.X,
				"y":       res.truth.Y,
				"heading": res.truth.Heading,
			}).Info("true pose")
			logrus.WithFields(logrus.Fields{
				"x":       res.estimate.X,
				"y":       res.estimate.Y,
				"heading": res.estimate.Heading,
			}).Info("estimated pose")
			logrus.Infof("drivetrain is %s", res.mode)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.command.Vx, "vx", 0.5, "forward velocity, m/s")
	flags.Float64Var(&opts.command.Vy, "vy", 0, "leftward velocity, m/s")
	flags.Float64Var(&opts.command.Omega, "omega", 0, "counterclockwise rate, rad/s")
	flags.BoolVar(&opts.command.FieldRelative, "field-relative", false, "interpret vx and vy in the field frame")
	flags.Float64Var(&headingDeg, "heading", 0, "starting heading, degrees")
	flags.DurationVar(&opts.duration, "duration", 2*time.Second, "how long to hold the command")
	flags.DurationVar(&opts.settle, "settle", 1500*time.Millisecond, "how long to run after stopping")
	flags.DurationVar(&opts.dt, "dt", 20*time.Millisecond, "control period")

	return cmd
}
