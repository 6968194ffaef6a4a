package swervemodule

import (
	"math"
	"sync"
	"time"

	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/pid"
)

// SimConfig configures a simulated module.
type SimConfig struct {
	AngleOffset float64
	// DriveTimeConstant is the first order lag of the drive velocity loop.
	DriveTimeConstant time.Duration
	SteerGains        pid.Gains
	// MaxSteerRate limits the steer slew in rad/s.
	MaxSteerRate float64
}

// DefaultSimConfig returns a module that settles within a few control cycles.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		DriveTimeConstant: 50 * time.Millisecond,
		SteerGains:        pid.Gains{P: 20},
		MaxSteerRate:      4 * math.Pi,
	}
}

// Sim is a module whose actuators are simulated in process. Step advances the simulation.
type Sim struct {
	cfg   SimConfig
	steer *pid.Controller

	mu       sync.Mutex
	target   kinematics.ModuleState
	rawRef   float64
	speed    float64
	raw      float64 // steer actuator angle
	distance float64
}

// NewSim returns a simulated module at rest.
func NewSim(cfg SimConfig) *Sim {
	steer := pid.New(cfg.SteerGains)
	steer.EnableContinuousInput(-math.Pi, math.Pi)
	return &Sim{
		cfg:    cfg,
		steer:  steer,
		raw:    toActuator(0, cfg.AngleOffset),
		rawRef: toActuator(0, cfg.AngleOffset),
	}
}

// SetDesiredState implements Module.
func (s *Sim) SetDesiredState(desired kinematics.ModuleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = desired.Optimize(fromActuator(s.raw, s.cfg.AngleOffset))
	s.rawRef = toActuator(s.target.Angle, s.cfg.AngleOffset)
}

// Position implements Module.
func (s *Sim) Position() kinematics.ModulePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kinematics.ModulePosition{Distance: s.distance, Angle: fromActuator(s.raw, s.cfg.AngleOffset)}
}

// State implements Module.
func (s *Sim) State() kinematics.ModuleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kinematics.ModuleState{Speed: s.speed, Angle: fromActuator(s.raw, s.cfg.AngleOffset)}
}

// Telemetry implements Module.
func (s *Sim) Telemetry() Telemetry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Telemetry{
		TargetSpeed: s.target.Speed,
		ActualSpeed: s.speed,
		TargetAngle: s.target.Angle,
		ActualAngle: fromActuator(s.raw, s.cfg.AngleOffset),
	}
}

// SetSteerGains replaces the simulated steer loop gains.
func (s *Sim) SetSteerGains(gains pid.Gains) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steer.SetGains(gains)
}

// SteerGains returns the simulated steer loop gains.
func (s *Sim) SteerGains() pid.Gains {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steer.Gains()
}

// Step advances both simulated actuators by dt.
func (s *Sim) Step(dt time.Duration) {
	if dt <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	secs := dt.Seconds()
	alpha := 1.0
	if s.cfg.DriveTimeConstant > 0 {
		alpha = math.Min(1, secs/s.cfg.DriveTimeConstant.Seconds())
	}
	s.speed += (s.target.Speed - s.speed) * alpha

	rate := s.steer.Calculate(s.raw, s.rawRef, dt)
	if s.cfg.MaxSteerRate > 0 {
		rate = math.Max(-s.cfg.MaxSteerRate, math.Min(rate, s.cfg.MaxSteerRate))
	}
	step := rate * secs
	// do not overshoot the reference within one step
	if remaining := kinematics.NormalizeAngle(s.rawRef - s.raw); math.Abs(step) > math.Abs(remaining) {
		step = remaining
	}
	s.raw = kinematics.NormalizeAngle(s.raw + step)
	s.distance += s.speed * secs
}
