package kinematics

import (
	"math"
)

// Pose is a field position and heading.
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// Twist is a robot-relative displacement over one control cycle.
type Twist struct {
	Dx     float64
	Dy     float64
	Dtheta float64
}

// Exp integrates t from p along a constant-curvature arc.
func (p Pose) Exp(t Twist) Pose {
	var s, c float64
	if math.Abs(t.Dtheta) < 1e-9 {
		s = 1 - t.Dtheta*t.Dtheta/6
		c = t.Dtheta / 2
	} else {
		s = math.Sin(t.Dtheta) / t.Dtheta
		c = (1 - math.Cos(t.Dtheta)) / t.Dtheta
	}

	// arc displacement in the robot frame at the start of the cycle
	dx := t.Dx*s - t.Dy*c
	dy := t.Dx*c + t.Dy*s

	cos, sin := math.Cos(p.Heading), math.Sin(p.Heading)
	return Pose{
		X:       p.X + dx*cos - dy*sin,
		Y:       p.Y + dx*sin + dy*cos,
		Heading: NormalizeAngle(p.Heading + t.Dtheta),
	}
}
