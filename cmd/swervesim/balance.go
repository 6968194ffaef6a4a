package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go.viam.com/rdk/logging"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/balance"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/sim"
)

type balanceOptions struct {
	startX float64
	pivot  float64
	flat   bool
	limit  time.Duration
	dt     time.Duration
}

type balanceResult struct {
	phase       balance.Phase
	interrupted bool
	elapsed     time.Duration
	x           float64
	pitch       float64
}

// runBalance starts a balance attempt facing +X at startX and runs it until it ends or the
// limit passes. The robot backs onto the platform, so the pivot should be behind it.
func runBalance(opts balanceOptions, layout kinematics.Layout, logger logging.Logger) (balanceResult, error) {
	if opts.dt <= 0 {
		return balanceResult{}, errors.New("dt must be positive")
	}
	s, err := newSimulation(layout, kinematics.Pose{X: opts.startX}, logger)
	if err != nil {
		return balanceResult{}, err
	}
	if !opts.flat {
		s.world.Platform = sim.DefaultPlatform(opts.pivot)
	}
	b, err := balance.New(s.drive, balance.DefaultConfig(), logger)
	if err != nil {
		return balanceResult{}, err
	}

	b.Initialize(s.world.Sample().Pitch)
	phase := b.Phase()
	for elapsed := time.Duration(0); elapsed < opts.limit && b.Active(); elapsed += opts.dt {
		sample := s.world.Sample()
		b.Execute(opts.dt, sample.Pitch)
		if b.Phase() != phase {
			logrus.WithFields(logrus.Fields{
				"t":     b.Elapsed().Seconds(),
				"pitch": rdkutils.RadToDeg(sample.Pitch),
				"x":     s.world.Chassis.Pose().X,
			}).Infof("%s -> %s", phase, b.Phase())
			phase = b.Phase()
		}
		if b.IsFinished() {
			b.End(false)
		}
		s.step(opts.dt)
	}
	if b.Active() {
		logrus.Warn("time limit reached, cancelling balance")
		b.End(true)
	}

	return balanceResult{
		phase:       b.Phase(),
		interrupted: b.Interrupted(),
		elapsed:     b.Elapsed(),
		x:           s.world.Chassis.Pose().X,
		pitch:       s.world.Sample().Pitch,
	}, nil
}

func NewBalanceCommand() *cobra.Command {
	opts := balanceOptions{}

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Run the auto-balance routine onto a simulated platform",
		Long: `Run the auto-balance routine onto a simulated platform.

The robot starts facing +X and reverses onto a see-saw platform. With --flat there is
no platform and the routine should abort once the runaway timeout passes.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			res, err := runBalance(opts, rectangleLayout(trackWidth, wheelbase), coreLogger())
			if err != nil {
				return err
			}
			fields := logrus.Fields{
				"phase":   res.phase.String(),
				"elapsed": res.elapsed.Seconds(),
				"x":       res.x,
				"pitch":   rdkutils.RadToDeg(res.pitch),
			}
			if res.interrupted {
				logrus.WithFields(fields).Warn("balance interrupted")
				return nil
			}
			logrus.WithFields(fields).Info("balanced")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&opts.startX, "start-x", 2, "starting field x, meters")
	flags.Float64Var(&opts.pivot, "pivot", 0, "field x of the platform pivot, meters")
	flags.BoolVar(&opts.flat, "flat", false, "run without a platform")
	flags.DurationVar(&opts.limit, "limit", 15*time.Second, "give up after this long")
	flags.DurationVar(&opts.dt, "dt", 20*time.Millisecond, "control period")

	return cmd
}
