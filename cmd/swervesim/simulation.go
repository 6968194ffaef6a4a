package main

import (
	"time"

	"github.com/golang/geo/r2"

	"go.viam.com/rdk/logging"

	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/sim"
	"github.com/ky28059/GRT2023/swervemodule"
)

// simulation couples a drivetrain to a simulated world.
type simulation struct {
	world *sim.World
	drive *drivetrain.Drivetrain
}

func rectangleLayout(track, wheelbase float64) kinematics.Layout {
	x, y := wheelbase/2, track/2
	return kinematics.Layout{
		r2.Point{X: x, Y: y},
		r2.Point{X: x, Y: -y},
		r2.Point{X: -x, Y: y},
		r2.Point{X: -x, Y: -y},
	}
}

func newSimulation(layout kinematics.Layout, start kinematics.Pose, logger logging.Logger) (*simulation, error) {
	kin, err := kinematics.New(layout)
	if err != nil {
		return nil, err
	}
	var cfgs [kinematics.NumModules]swervemodule.SimConfig
	for i := range cfgs {
		cfgs[i] = swervemodule.DefaultSimConfig()
	}
	world := sim.NewWorld(kin, cfgs, start, 0)
	drive, err := drivetrain.New(world.DriveModules(), kin, drivetrain.DefaultConfig(), world.Sample(), logger)
	if err != nil {
		return nil, err
	}
	// the estimate starts where the robot does
	drive.ResetPose(start)
	return &simulation{world: world, drive: drive}, nil
}

// step runs one control cycle and advances the world by dt.
func (s *simulation) step(dt time.Duration) {
	s.drive.Periodic(dt, s.world.Sample())
	s.world.Step(dt)
}
