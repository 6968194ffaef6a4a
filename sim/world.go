package sim

import (
	"time"

	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/swervemodule"
)

// World steps simulated modules, the chassis they carry and an optional platform together.
type World struct {
	Modules  [kinematics.NumModules]*swervemodule.Sim
	Chassis  *Chassis
	Platform *Platform
}

// NewWorld builds simulated modules from cfgs and a chassis at start.
func NewWorld(
	kin *kinematics.Kinematics,
	cfgs [kinematics.NumModules]swervemodule.SimConfig,
	start kinematics.Pose,
	yawBias float64,
) *World {
	w := &World{}
	for i, cfg := range cfgs {
		w.Modules[i] = swervemodule.NewSim(cfg)
	}
	w.Chassis = NewChassis(kin, w.DriveModules(), start, yawBias)
	return w
}

// DriveModules returns the modules for the drivetrain.
func (w *World) DriveModules() [kinematics.NumModules]swervemodule.Module {
	var modules [kinematics.NumModules]swervemodule.Module
	for i, m := range w.Modules {
		modules[i] = m
	}
	return modules
}

// Step advances the actuators, then the body, then the platform tilt.
func (w *World) Step(dt time.Duration) {
	for _, m := range w.Modules {
		m.Step(dt)
	}
	w.Chassis.Step(dt)
	if w.Platform != nil {
		w.Chassis.SetPitch(w.Platform.Step(dt, w.Chassis.Pose().X))
	}
}

// Sample reads the simulated gyro.
func (w *World) Sample() drivetrain.GyroSample {
	return w.Chassis.Sample()
}
