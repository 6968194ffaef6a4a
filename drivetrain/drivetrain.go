// Package drivetrain coordinates four swerve modules: it turns chassis commands into module
// references every control cycle, applies the idle lock, and keeps the pose estimate.
package drivetrain

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/odometry"
	"github.com/ky28059/GRT2023/swervemodule"
)

// Mode is the drivetrain's idle-lock state.
type Mode int

const (
	// Driving forwards computed module states.
	Driving Mode = iota
	// Locked holds the wheels in the X pattern at zero speed.
	Locked
)

func (m Mode) String() string {
	switch m {
	case Driving:
		return "driving"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// lockAngles is the X pattern, in module order.
var lockAngles = [kinematics.NumModules]float64{math.Pi / 4, -math.Pi / 4, -math.Pi / 4, math.Pi / 4}

// ChassisCommand is a whole-body velocity request in m/s and rad/s.
type ChassisCommand struct {
	Vx            float64
	Vy            float64
	Omega         float64
	FieldRelative bool
}

// IsZero reports whether the command requests no motion.
func (c ChassisCommand) IsZero() bool {
	return c.Vx == 0 && c.Vy == 0 && c.Omega == 0
}

// GyroSample is one reading of the orientation sensor, radians. Connected is false when the
// sensor could not be read; Yaw and Pitch are meaningless then.
type GyroSample struct {
	Yaw       float64
	Pitch     float64
	Connected bool
}

// Config holds the tunable drivetrain limits.
type Config struct {
	MaxVelocity     float64 // m/s, also the module speed limit
	MaxOmega        float64 // rad/s
	LockTimeout     time.Duration
	LockingDisabled bool
}

// DefaultConfig returns the competition limits.
func DefaultConfig() Config {
	return Config{
		MaxVelocity: 1.0,
		MaxOmega:    math.Pi / 3,
		LockTimeout: time.Second,
	}
}

// Validate checks that the limits are usable.
func (c Config) Validate() error {
	if !(c.MaxVelocity > 0) {
		return errors.Errorf("max velocity must be positive, got %v", c.MaxVelocity)
	}
	if !(c.MaxOmega > 0) {
		return errors.Errorf("max omega must be positive, got %v", c.MaxOmega)
	}
	if c.LockTimeout < 0 {
		return errors.Errorf("lock timeout must not be negative, got %v", c.LockTimeout)
	}
	return nil
}

// Drivetrain is the swerve drivetrain controller. It is not safe for concurrent use; callers
// sharing it between goroutines must serialize Periodic with every other method.
type Drivetrain struct {
	modules   [kinematics.NumModules]swervemodule.Module
	kin       *kinematics.Kinematics
	estimator *odometry.Estimator
	cfg       Config
	logger    logging.Logger

	command      ChassisCommand
	idle         time.Duration
	mode         Mode
	lockOverride bool
	states       [kinematics.NumModules]kinematics.ModuleState

	sample     GyroSample
	sensorLost bool
	// baselined is set once the heading offset has been taken from a live sensor sample.
	baselined bool
}

// New returns a drivetrain at the origin of the field, facing along +X. initial is the
// current orientation sample and defines the field heading frame.
func New(
	modules [kinematics.NumModules]swervemodule.Module,
	kin *kinematics.Kinematics,
	cfg Config,
	initial GyroSample,
	logger logging.Logger,
) (*Drivetrain, error) {
	if kin == nil {
		return nil, errors.New("kinematics required")
	}
	for i, m := range modules {
		if m == nil {
			return nil, errors.Errorf("module %d is nil", i)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Drivetrain{
		modules:    modules,
		kin:        kin,
		cfg:        cfg,
		logger:     logger,
		sample:     initial,
		sensorLost: !initial.Connected,
		baselined:  initial.Connected,
	}
	if !initial.Connected {
		logger.Warnw("heading sensor unavailable at startup, using odometry heading")
	}
	var raw float64
	if initial.Connected {
		raw = initial.Yaw
	}
	d.estimator = odometry.New(kin, raw, d.positions(), kinematics.Pose{})
	for i, m := range modules {
		d.states[i] = kinematics.ModuleState{Angle: m.State().Angle}
	}
	return d, nil
}

// SetConfig replaces the limits. The idle timer is kept.
func (d *Drivetrain) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// Config returns the current limits.
func (d *Drivetrain) Config() Config {
	return d.cfg
}

// SetChassisCommand latches cmd until it is replaced. Non-finite components are latched as zero.
func (d *Drivetrain) SetChassisCommand(cmd ChassisCommand) {
	cmd.Vx = finite(cmd.Vx)
	cmd.Vy = finite(cmd.Vy)
	cmd.Omega = finite(cmd.Omega)
	d.command = cmd
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Command returns the latched command.
func (d *Drivetrain) Command() ChassisCommand {
	return d.command
}

func clampPower(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(-1, math.Min(p, 1))
}

// SetDrivePowers commands translation and rotation as fractions of the configured limits.
// Powers are clamped to [-1, 1]. relative selects the robot frame instead of the field frame.
func (d *Drivetrain) SetDrivePowers(xPower, yPower, angularPower float64, relative bool) {
	d.SetChassisCommand(ChassisCommand{
		Vx:            clampPower(xPower) * d.cfg.MaxVelocity,
		Vy:            clampPower(yPower) * d.cfg.MaxVelocity,
		Omega:         clampPower(angularPower) * d.cfg.MaxOmega,
		FieldRelative: !relative,
	})
}

// SetDrivePower is a robot-relative fore/aft power command.
func (d *Drivetrain) SetDrivePower(xPower float64) {
	d.SetDrivePowers(xPower, 0, 0, true)
}

// Stop latches a zero command.
func (d *Drivetrain) Stop() {
	d.SetChassisCommand(ChassisCommand{})
}

// ToggleLockOverride forces the lock on or releases the force, returning the new state.
func (d *Drivetrain) ToggleLockOverride() bool {
	d.lockOverride = !d.lockOverride
	d.logger.Infow("lock override toggled", "on", d.lockOverride)
	return d.lockOverride
}

// LockOverride reports whether the lock is being forced.
func (d *Drivetrain) LockOverride() bool {
	return d.lockOverride
}

// Periodic runs one control cycle of length dt with a fresh orientation sample: it
// commands the modules, then samples their positions, then updates the pose.
func (d *Drivetrain) Periodic(dt time.Duration, sample GyroSample) {
	d.observe(sample)

	if d.command.IsZero() {
		d.idle += dt
	} else {
		d.idle = 0
	}

	mode := Driving
	if d.lockOverride || (!d.cfg.LockingDisabled && d.idle >= d.cfg.LockTimeout) {
		mode = Locked
	}
	if mode != d.mode {
		d.logger.Infow("drivetrain mode change", "from", d.mode, "to", mode, "idle", d.idle)
		d.mode = mode
	}

	if d.mode == Locked {
		for i := range d.states {
			d.states[i] = kinematics.ModuleState{Angle: lockAngles[i]}
		}
	} else {
		d.states = d.computeStates()
	}
	for i, m := range d.modules {
		m.SetDesiredState(d.states[i])
	}

	positions := d.positions()
	switch {
	case !d.sample.Connected:
		d.estimator.UpdateWheelsOnly(positions)
	case !d.baselined:
		// first live sample: keep the estimated heading and anchor the sensor to it
		d.estimator.UpdateWheelsOnly(positions)
		d.estimator.ResetHeading(d.sample.Yaw, positions, d.estimator.Pose().Heading)
		d.baselined = true
		d.logger.Infow("heading sensor baselined", "offset", d.estimator.HeadingOffset())
	default:
		d.estimator.Update(d.sample.Yaw, positions)
	}
}

func (d *Drivetrain) observe(sample GyroSample) {
	switch {
	case !sample.Connected && !d.sensorLost:
		d.logger.Warnw("heading sensor disconnected, using odometry heading")
		d.sensorLost = true
	case sample.Connected && d.sensorLost:
		d.logger.Infow("heading sensor reconnected")
		d.sensorLost = false
	}
	if sample.Connected {
		d.sample = sample
	} else {
		d.sample.Connected = false
	}
}

func (d *Drivetrain) computeStates() [kinematics.NumModules]kinematics.ModuleState {
	speeds := kinematics.ChassisSpeeds{Vx: d.command.Vx, Vy: d.command.Vy, Omega: d.command.Omega}
	if d.command.FieldRelative {
		speeds = kinematics.FromFieldRelative(speeds.Vx, speeds.Vy, speeds.Omega, d.FieldHeading())
	}

	var current [kinematics.NumModules]kinematics.ModuleState
	for i, m := range d.modules {
		current[i] = m.State()
	}
	states := d.kin.ToModuleStates(speeds, current)
	kinematics.DesaturateChassis(&states, speeds, d.cfg.MaxVelocity, d.cfg.MaxVelocity, d.cfg.MaxOmega)
	kinematics.Desaturate(&states, d.cfg.MaxVelocity)
	return states
}

func (d *Drivetrain) positions() [kinematics.NumModules]kinematics.ModulePosition {
	var positions [kinematics.NumModules]kinematics.ModulePosition
	for i, m := range d.modules {
		positions[i] = m.Position()
	}
	return positions
}

// rawHeading is the last sensor yaw, or the raw heading implied by the estimate while the
// sensor is unavailable.
func (d *Drivetrain) rawHeading() float64 {
	if d.sample.Connected && d.baselined {
		return d.sample.Yaw
	}
	return kinematics.NormalizeAngle(d.estimator.Pose().Heading + d.estimator.HeadingOffset())
}

// FieldHeading returns the heading in the field frame. Without a sensor it falls back to the
// estimated pose heading.
func (d *Drivetrain) FieldHeading() float64 {
	if !d.sample.Connected || !d.baselined {
		return d.estimator.Pose().Heading
	}
	return d.estimator.FieldHeading(d.sample.Yaw)
}

// ResetPose moves the estimate to pose and re-zeros the field heading to pose.Heading.
func (d *Drivetrain) ResetPose(pose kinematics.Pose) {
	d.estimator.ResetPosition(d.rawHeading(), d.positions(), pose)
	d.logger.Infow("pose reset", "x", pose.X, "y", pose.Y, "heading", pose.Heading)
}

// ResetFieldHeading re-zeros only the heading, keeping the field position.
func (d *Drivetrain) ResetFieldHeading(heading float64) {
	d.estimator.ResetHeading(d.rawHeading(), d.positions(), heading)
	d.logger.Infow("field heading reset", "heading", heading)
}

// Pose returns the estimated field pose.
func (d *Drivetrain) Pose() kinematics.Pose {
	return d.estimator.Pose()
}

// HeadingOffset returns the raw-to-field heading correction.
func (d *Drivetrain) HeadingOffset() float64 {
	return d.estimator.HeadingOffset()
}

// Mode returns the mode chosen in the last cycle.
func (d *Drivetrain) Mode() Mode {
	return d.mode
}

// IdleTime returns how long the command has been zero.
func (d *Drivetrain) IdleTime() time.Duration {
	return d.idle
}

// Pitch returns the last pitch sample and whether the sensor is connected.
func (d *Drivetrain) Pitch() (float64, bool) {
	return d.sample.Pitch, d.sample.Connected
}

// SensorConnected reports whether the last sample came from a live sensor.
func (d *Drivetrain) SensorConnected() bool {
	return d.sample.Connected
}

// IsMoving reports whether any module was last commanded a non-zero speed.
func (d *Drivetrain) IsMoving() bool {
	for _, s := range d.states {
		if s.Speed != 0 {
			return true
		}
	}
	return false
}

// ModuleTelemetry returns per-module tracking data in module order.
func (d *Drivetrain) ModuleTelemetry() [kinematics.NumModules]swervemodule.Telemetry {
	var out [kinematics.NumModules]swervemodule.Telemetry
	for i, m := range d.modules {
		out[i] = m.Telemetry()
	}
	return out
}

// Kinematics returns the kinematics used by the drivetrain.
func (d *Drivetrain) Kinematics() *kinematics.Kinematics {
	return d.kin
}
