package sim

import (
	"math"
	"time"

	rdkutils "go.viam.com/rdk/utils"
)

// Platform is a see-saw charge station pivoting about a line of constant field X. Its tilt
// follows the robot's position relative to the pivot with a first order lag; off the platform
// the robot is level.
type Platform struct {
	Pivot       float64 // field x of the pivot, meters
	Length      float64 // along field X, meters
	RobotLength float64 // bumper to bumper, meters
	MaxTilt     float64 // radians
	// Band is the distance from the pivot over which the tilt goes from level to MaxTilt.
	Band float64
	Lag  time.Duration

	tilt float64
}

// DefaultPlatform returns a platform with its pivot at x.
func DefaultPlatform(x float64) *Platform {
	return &Platform{
		Pivot:       x,
		Length:      1.2,
		RobotLength: 0.8,
		MaxTilt:     rdkutils.DegToRad(16),
		Band:        0.15,
		Lag:         100 * time.Millisecond,
	}
}

// target is the settled robot pitch for a robot centered at x. A robot on the +X half pitches
// negative.
func (p *Platform) target(x float64) float64 {
	d := x - p.Pivot
	if math.Abs(d) > (p.Length+p.RobotLength)/2 {
		return 0
	}
	return -p.MaxTilt * math.Max(-1, math.Min(d/p.Band, 1))
}

// Step advances the tilt by dt for a robot centered at field x and returns the robot pitch.
func (p *Platform) Step(dt time.Duration, x float64) float64 {
	target := p.target(x)
	alpha := 1.0
	if p.Lag > 0 {
		alpha = math.Min(1, dt.Seconds()/p.Lag.Seconds())
	}
	p.tilt += (target - p.tilt) * alpha
	return p.tilt
}

// Pitch returns the current robot pitch.
func (p *Platform) Pitch() float64 {
	return p.tilt
}
