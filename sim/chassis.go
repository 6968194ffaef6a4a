// Package sim simulates the robot body around simulated swerve modules: a ground-truth
// chassis that also serves as the orientation sensor, and a tilting platform.
package sim

import (
	"time"

	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/swervemodule"
)

// Chassis integrates the true robot pose from the measured module states. Its heading plus
// YawBias is what a gyro mounted on the robot would read.
type Chassis struct {
	kin     *kinematics.Kinematics
	modules [kinematics.NumModules]swervemodule.Module

	pose    kinematics.Pose
	speeds  kinematics.ChassisSpeeds
	yawBias float64
	pitch   float64
}

// NewChassis returns a chassis at pose. yawBias is the raw gyro reading when the robot faces
// along field +X.
func NewChassis(
	kin *kinematics.Kinematics,
	modules [kinematics.NumModules]swervemodule.Module,
	pose kinematics.Pose,
	yawBias float64,
) *Chassis {
	return &Chassis{kin: kin, modules: modules, pose: pose, yawBias: yawBias}
}

// Step advances the pose by dt at the velocity the modules are currently producing.
func (c *Chassis) Step(dt time.Duration) {
	var states [kinematics.NumModules]kinematics.ModuleState
	for i, m := range c.modules {
		states[i] = m.State()
	}
	c.speeds = c.kin.ToChassisSpeeds(states)
	secs := dt.Seconds()
	c.pose = c.pose.Exp(kinematics.Twist{
		Dx:     c.speeds.Vx * secs,
		Dy:     c.speeds.Vy * secs,
		Dtheta: c.speeds.Omega * secs,
	})
}

// Pose returns the true pose.
func (c *Chassis) Pose() kinematics.Pose {
	return c.pose
}

// Speeds returns the robot-relative velocity from the last step.
func (c *Chassis) Speeds() kinematics.ChassisSpeeds {
	return c.speeds
}

// SetPitch sets the body pitch reported by Sample.
func (c *Chassis) SetPitch(pitch float64) {
	c.pitch = pitch
}

// Sample reads the simulated gyro.
func (c *Chassis) Sample() drivetrain.GyroSample {
	return drivetrain.GyroSample{
		Yaw:       kinematics.NormalizeAngle(c.pose.Heading + c.yawBias),
		Pitch:     c.pitch,
		Connected: true,
	}
}
