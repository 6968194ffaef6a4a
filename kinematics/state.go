// Package kinematics maps whole-body swerve velocities to per-module wheel states and back.
//
// Frames: the chassis frame has +X forward, +Y left and +Omega counterclockwise. Linear
// quantities are meters and meters per second, angles are radians normalized to (-π, π].
package kinematics

import (
	"math"
)

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Remainder(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// ModuleState is a module velocity: signed wheel speed along the wheel heading.
type ModuleState struct {
	Speed float64
	Angle float64
}

// Optimize returns the state reaching the same wheel velocity with the smallest steer
// rotation from current. When the requested heading is more than a quarter turn away the
// antipodal heading is used and the speed is negated.
func (s ModuleState) Optimize(current float64) ModuleState {
	delta := NormalizeAngle(s.Angle - current)
	if math.Abs(delta) > math.Pi/2 {
		return ModuleState{Speed: -s.Speed, Angle: NormalizeAngle(s.Angle + math.Pi)}
	}
	return ModuleState{Speed: s.Speed, Angle: NormalizeAngle(s.Angle)}
}

// ModulePosition is the cumulative drive distance of a module and its current wheel heading.
type ModulePosition struct {
	Distance float64
	Angle    float64
}

// ChassisSpeeds is a robot-relative whole-body velocity.
type ChassisSpeeds struct {
	Vx    float64
	Vy    float64
	Omega float64
}

// IsZero reports whether every component is exactly zero.
func (c ChassisSpeeds) IsZero() bool {
	return c.Vx == 0 && c.Vy == 0 && c.Omega == 0
}

// FromFieldRelative rotates a field-frame velocity into the robot frame, given the robot's
// heading in the field frame.
func FromFieldRelative(vx, vy, omega, heading float64) ChassisSpeeds {
	cos, sin := math.Cos(heading), math.Sin(heading)
	return ChassisSpeeds{
		Vx:    vx*cos + vy*sin,
		Vy:    -vx*sin + vy*cos,
		Omega: omega,
	}
}
