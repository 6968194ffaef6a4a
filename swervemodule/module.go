// Package swervemodule drives individual swerve modules: one drive and one steer actuator
// per wheel. Implementations talk to smart actuator controllers over CAN or simulate the
// actuators in process.
package swervemodule

import (
	"math"

	"github.com/ky28059/GRT2023/kinematics"
)

// Module is a single swerve module.
type Module interface {
	// SetDesiredState optimizes desired against the current wheel angle and sends the
	// resulting references to the actuators.
	SetDesiredState(desired kinematics.ModuleState)
	// Position returns the cumulative drive distance and current wheel angle.
	Position() kinematics.ModulePosition
	// State returns the measured wheel speed and angle.
	State() kinematics.ModuleState
	Telemetry() Telemetry
}

// Telemetry is informational per-module state. Angles are radians.
type Telemetry struct {
	TargetSpeed float64
	ActualSpeed float64
	TargetAngle float64
	ActualAngle float64
}

// SpeedError is the drive velocity tracking error.
func (t Telemetry) SpeedError() float64 {
	return t.TargetSpeed - t.ActualSpeed
}

// AngleError is the steer tracking error, taken the short way around.
func (t Telemetry) AngleError() float64 {
	return kinematics.NormalizeAngle(t.TargetAngle - t.ActualAngle)
}

// Conversions relate drive motor rotations to wheel travel.
type Conversions struct {
	WheelDiameter  float64 // meters
	DriveGearRatio float64 // motor rotations per wheel rotation
}

// MetersPerRotation is the wheel travel per drive motor rotation.
func (c Conversions) MetersPerRotation() float64 {
	return math.Pi * c.WheelDiameter / c.DriveGearRatio
}

// ToMotorRPM converts a wheel speed in m/s to drive motor rpm.
func (c Conversions) ToMotorRPM(speed float64) float64 {
	return speed / c.MetersPerRotation() * 60
}

// FromMotorRPM converts drive motor rpm to wheel speed in m/s.
func (c Conversions) FromMotorRPM(rpm float64) float64 {
	return rpm * c.MetersPerRotation() / 60
}

// toActuator converts a module angle into the actuator frame, where zero is the mechanical
// zero of the steer encoder.
func toActuator(angle, offset float64) float64 {
	return kinematics.NormalizeAngle(angle + offset)
}

// fromActuator is the inverse of toActuator.
func fromActuator(raw, offset float64) float64 {
	return kinematics.NormalizeAngle(raw - offset)
}
