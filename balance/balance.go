// Package balance drives the robot onto a tilting platform and holds it level using the
// pitch axis of the orientation sensor.
package balance

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/pid"
)

// Phase is the state of one balancing attempt.
type Phase int

const (
	// Approaching drives hard toward the platform until the front wheels climb it.
	Approaching Phase = iota
	// Stabilizing creeps up the ramp until the platform starts to tip back.
	Stabilizing
	// Centering holds the platform level with a proportional loop on pitch.
	Centering
	// Balanced is terminal.
	Balanced
)

func (p Phase) String() string {
	switch p {
	case Approaching:
		return "approaching"
	case Stabilizing:
		return "stabilizing"
	case Centering:
		return "centering"
	case Balanced:
		return "balanced"
	default:
		return "unknown"
	}
}

// Drive is the one-axis command surface the controller drives through.
type Drive interface {
	SetDrivePower(xPower float64)
}

// Config holds balance thresholds. Angles are radians, powers are in [-1, 1] and carry the
// direction of approach.
type Config struct {
	ApproachPower float64
	CreepPower    float64
	// MountPitch ends Approaching once pitch is at or below it.
	MountPitch float64
	// PivotPitch ends Stabilizing once pitch is at or above it.
	PivotPitch float64
	// BalancedPitch and BalancedPitchDelta bound |pitch| and the per-cycle pitch change
	// required to finish.
	BalancedPitch      float64
	BalancedPitchDelta float64
	Gains              pid.Gains
	RunawayTimeout     time.Duration
}

// DefaultConfig returns the thresholds used on the charge station.
func DefaultConfig() Config {
	return Config{
		ApproachPower:      -0.80,
		CreepPower:         -0.17,
		MountPitch:         rdkutils.DegToRad(-15),
		PivotPitch:         rdkutils.DegToRad(-5),
		BalancedPitch:      rdkutils.DegToRad(1),
		BalancedPitchDelta: rdkutils.DegToRad(0.1),
		Gains:              pid.Gains{P: 0.75},
		RunawayTimeout:     2 * time.Second,
	}
}

// Validate checks that the thresholds describe a climb.
func (c Config) Validate() error {
	if c.MountPitch >= c.PivotPitch {
		return errors.Errorf("mount pitch %v must be below pivot pitch %v", c.MountPitch, c.PivotPitch)
	}
	if c.BalancedPitch <= 0 || c.BalancedPitchDelta <= 0 {
		return errors.New("balanced tolerances must be positive")
	}
	if math.Abs(c.ApproachPower) > 1 || math.Abs(c.CreepPower) > 1 {
		return errors.New("powers must be within [-1, 1]")
	}
	if c.RunawayTimeout <= 0 {
		return errors.New("runaway timeout must be positive")
	}
	return nil
}

// Controller is the balance state machine. Initialize starts an attempt, Execute runs once
// per control cycle, End releases the drive.
type Controller struct {
	drive  Drive
	cfg    Config
	pid    *pid.Controller
	logger logging.Logger

	active      bool
	finished    bool
	interrupted bool
	phase       Phase
	elapsed     time.Duration
	prevPitch   float64
	power       float64
}

// New returns an idle controller.
func New(drive Drive, cfg Config, logger logging.Logger) (*Controller, error) {
	if drive == nil {
		return nil, errors.New("drive required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		drive:  drive,
		cfg:    cfg,
		pid:    pid.New(cfg.Gains),
		logger: logger,
	}, nil
}

// SetConfig replaces the thresholds; an attempt in progress continues with them.
func (c *Controller) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.pid.SetGains(cfg.Gains)
	return nil
}

// Initialize starts a fresh attempt from the current pitch.
func (c *Controller) Initialize(pitch float64) {
	c.active = true
	c.finished = false
	c.interrupted = false
	c.phase = Approaching
	c.elapsed = 0
	c.prevPitch = pitch
	c.power = 0
	c.pid.Reset()
	c.logger.Infow("balance started", "pitch_deg", rdkutils.RadToDeg(pitch))
}

func (c *Controller) setPhase(phase Phase, pitch float64) {
	c.logger.Infow("balance phase change", "from", c.phase, "to", phase, "pitch_deg", rdkutils.RadToDeg(pitch), "elapsed", c.elapsed)
	c.phase = phase
}

// Execute advances the attempt by dt with a fresh pitch sample and forwards the resulting
// power to the drive. It does nothing once the attempt has finished.
func (c *Controller) Execute(dt time.Duration, pitch float64) {
	if !c.active || c.finished {
		return
	}
	c.elapsed += dt

	switch c.phase {
	case Approaching:
		switch {
		case pitch <= c.cfg.MountPitch:
			c.setPhase(Stabilizing, pitch)
			c.power = c.cfg.CreepPower
		case c.elapsed >= c.cfg.RunawayTimeout:
			c.logger.Warnw("balance aborted, platform not reached", "elapsed", c.elapsed, "pitch_deg", rdkutils.RadToDeg(pitch))
			c.power = 0
			c.finished = true
			c.interrupted = true
		default:
			c.power = c.cfg.ApproachPower
		}
	case Stabilizing:
		if pitch >= c.cfg.PivotPitch {
			c.setPhase(Centering, pitch)
			c.pid.Reset()
			c.power = -c.pid.Calculate(pitch, 0, dt)
		} else {
			c.power = c.cfg.CreepPower
		}
	case Centering:
		if math.Abs(pitch) <= c.cfg.BalancedPitch && math.Abs(pitch-c.prevPitch) <= c.cfg.BalancedPitchDelta {
			c.setPhase(Balanced, pitch)
			c.power = 0
			c.finished = true
		} else {
			c.power = -c.pid.Calculate(pitch, 0, dt)
		}
	case Balanced:
		c.power = 0
	}

	c.prevPitch = pitch
	c.drive.SetDrivePower(c.power)
}

// IsFinished reports whether the attempt reached Balanced or aborted.
func (c *Controller) IsFinished() bool {
	return c.finished
}

// End zeroes the drive power and deactivates the controller. interrupted marks an external
// cancellation.
func (c *Controller) End(interrupted bool) {
	if !c.active {
		return
	}
	c.interrupted = c.interrupted || interrupted
	c.power = 0
	c.drive.SetDrivePower(0)
	c.active = false
	c.logger.Infow("balance ended", "phase", c.phase, "interrupted", c.interrupted)
}

// Interrupted reports whether the last attempt was cancelled or aborted rather than balanced.
func (c *Controller) Interrupted() bool {
	return c.interrupted
}

// Active reports whether an attempt is running.
func (c *Controller) Active() bool {
	return c.active
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	return c.phase
}

// Power returns the last drive power.
func (c *Controller) Power() float64 {
	return c.power
}

// Elapsed returns the time since Initialize.
func (c *Controller) Elapsed() time.Duration {
	return c.elapsed
}
