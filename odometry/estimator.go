// Package odometry tracks the robot's field pose from module encoders and an absolute
// heading sensor.
package odometry

import (
	"github.com/ky28059/GRT2023/kinematics"
)

// Estimator integrates wheel displacement into a field pose. Rotation is taken from the
// heading sensor whenever a sample is available; translation always comes from the wheels.
//
// The field heading satisfies fieldHeading = raw - HeadingOffset between resets.
type Estimator struct {
	kin    *kinematics.Kinematics
	pose   kinematics.Pose
	offset float64
	prev   [kinematics.NumModules]kinematics.ModulePosition
}

// New returns an estimator starting at initial. raw is the current raw heading sensor reading
// and positions the current module positions; both become the baseline for the first update.
func New(
	kin *kinematics.Kinematics,
	raw float64,
	positions [kinematics.NumModules]kinematics.ModulePosition,
	initial kinematics.Pose,
) *Estimator {
	e := &Estimator{kin: kin}
	e.ResetPosition(raw, positions, initial)
	return e
}

// Update advances the pose by the wheel displacement since the previous call, using raw as
// the ground truth for rotation.
func (e *Estimator) Update(raw float64, positions [kinematics.NumModules]kinematics.ModulePosition) kinematics.Pose {
	heading := kinematics.NormalizeAngle(raw - e.offset)
	twist := e.twist(positions)
	twist.Dtheta = kinematics.NormalizeAngle(heading - e.pose.Heading)

	next := e.pose.Exp(twist)
	next.Heading = heading
	e.pose = next
	return e.pose
}

// UpdateWheelsOnly advances the pose using the wheel-derived rotation. It is used while the
// heading sensor is unavailable; the offset is left untouched so the field frame is kept once
// the sensor returns.
func (e *Estimator) UpdateWheelsOnly(positions [kinematics.NumModules]kinematics.ModulePosition) kinematics.Pose {
	e.pose = e.pose.Exp(e.twist(positions))
	return e.pose
}

func (e *Estimator) twist(positions [kinematics.NumModules]kinematics.ModulePosition) kinematics.Twist {
	var deltas [kinematics.NumModules]kinematics.ModulePosition
	for i, p := range positions {
		deltas[i] = kinematics.ModulePosition{
			Distance: p.Distance - e.prev[i].Distance,
			Angle:    p.Angle,
		}
	}
	e.prev = positions
	return e.kin.ToTwist(deltas)
}

// ResetPosition replaces the pose and re-baselines the wheel positions so the next update
// starts from pose without a jump.
func (e *Estimator) ResetPosition(raw float64, positions [kinematics.NumModules]kinematics.ModulePosition, pose kinematics.Pose) {
	pose.Heading = kinematics.NormalizeAngle(pose.Heading)
	e.pose = pose
	e.offset = kinematics.NormalizeAngle(raw - pose.Heading)
	e.prev = positions
}

// ResetHeading replaces only the heading, keeping the current field position.
func (e *Estimator) ResetHeading(raw float64, positions [kinematics.NumModules]kinematics.ModulePosition, heading float64) {
	e.ResetPosition(raw, positions, kinematics.Pose{X: e.pose.X, Y: e.pose.Y, Heading: heading})
}

// Pose returns the current estimate.
func (e *Estimator) Pose() kinematics.Pose {
	return e.pose
}

// HeadingOffset returns the correction between raw sensor heading and field heading.
func (e *Estimator) HeadingOffset() float64 {
	return e.offset
}

// FieldHeading converts a raw sensor heading into the field frame.
func (e *Estimator) FieldHeading(raw float64) float64 {
	return kinematics.NormalizeAngle(raw - e.offset)
}
