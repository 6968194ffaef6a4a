package main

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/balance"
	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/pid"
	"github.com/ky28059/GRT2023/swervemodule"
)

const (
	moduleTypeCAN = "can"
	moduleTypeSim = "sim"
)

// defaults
const (
	defaultChannel         = "can0"
	defaultMaxVelocity     = 1.0
	defaultMaxOmega        = math.Pi / 3
	defaultLockTimeoutSec  = 1.0
	defaultWheelDiameterM  = 0.1016
	defaultDriveGearRatio  = 72.0 / 13.0
	defaultControlPeriodMs = 20
)

var (
	defaultDriveGains = pid.Gains{P: 0.05, FF: 0.1767}
	defaultSteerGains = pid.Gains{P: 0.7}
)

// ModuleConfig describes one swerve module. Modules are listed top left, top right,
// bottom left, bottom right.
type ModuleConfig struct {
	Type           string  `json:"type"`
	X              float64 `json:"x_m"`
	Y              float64 `json:"y_m"`
	DriveCANID     uint32  `json:"drive_can_id,omitempty"`
	SteerCANID     uint32  `json:"steer_can_id,omitempty"`
	AngleOffsetRad float64 `json:"angle_offset_rad,omitempty"`
}

// BalanceConfig holds balance thresholds in degrees. Zero values take the defaults.
type BalanceConfig struct {
	ApproachPower         float64    `json:"approach_power,omitempty"`
	CreepPower            float64    `json:"creep_power,omitempty"`
	MountPitchDeg         float64    `json:"mount_pitch_deg,omitempty"`
	PivotPitchDeg         float64    `json:"pivot_pitch_deg,omitempty"`
	BalancedPitchDeg      float64    `json:"balanced_pitch_deg,omitempty"`
	BalancedPitchDeltaDeg float64    `json:"balanced_pitch_delta_deg,omitempty"`
	RunawayTimeoutSec     float64    `json:"runaway_timeout_sec,omitempty"`
	Gains                 *pid.Gains `json:"gains,omitempty"`
}

// Config is the native config of the swerve base.
type Config struct {
	Modules           []ModuleConfig `json:"modules"`
	CANChannel        string         `json:"can_channel,omitempty"`
	MaxVelocityMPS    float64        `json:"max_velocity_mps,omitempty"`
	MaxOmegaRadPerSec float64        `json:"max_omega_rad_per_sec,omitempty"`
	LockTimeoutSec    *float64       `json:"lock_timeout_sec,omitempty"`
	LockingDisabled   bool           `json:"locking_disabled,omitempty"`
	WheelDiameterM    float64        `json:"wheel_diameter_m,omitempty"`
	DriveGearRatio    float64        `json:"drive_gear_ratio,omitempty"`
	DriveGains        *pid.Gains     `json:"drive_gains,omitempty"`
	SteerGains        *pid.Gains     `json:"steer_gains,omitempty"`
	MovementSensor    string         `json:"movement_sensor,omitempty"`
	InvertPitch       bool           `json:"invert_pitch,omitempty"`
	ControlPeriodMs   int            `json:"control_period_ms,omitempty"`
	Balance           *BalanceConfig `json:"balance,omitempty"`
}

// Validate ensures all parts of the config are valid and returns the implicit dependencies.
func (cfg *Config) Validate(path string) ([]string, error) {
	if len(cfg.Modules) != kinematics.NumModules {
		return nil, goutils.NewConfigValidationError(path,
			errors.Errorf("expected %d modules, got %d", kinematics.NumModules, len(cfg.Modules)))
	}
	for i, m := range cfg.Modules {
		modulePath := fmt.Sprintf("%s.modules.%d", path, i)
		switch m.Type {
		case moduleTypeCAN:
			if m.DriveCANID == 0 {
				return nil, goutils.NewConfigValidationFieldRequiredError(modulePath, "drive_can_id")
			}
			if m.SteerCANID == 0 {
				return nil, goutils.NewConfigValidationFieldRequiredError(modulePath, "steer_can_id")
			}
		case moduleTypeSim:
		case "":
			return nil, goutils.NewConfigValidationFieldRequiredError(modulePath, "type")
		default:
			return nil, goutils.NewConfigValidationError(modulePath,
				errors.Errorf("module type must be one of %s|%s, got %q", moduleTypeCAN, moduleTypeSim, m.Type))
		}
	}
	if _, err := kinematics.New(cfg.layout()); err != nil {
		return nil, goutils.NewConfigValidationError(path, err)
	}

	if cfg.MaxVelocityMPS < 0 || cfg.MaxOmegaRadPerSec < 0 || cfg.WheelDiameterM < 0 || cfg.DriveGearRatio < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("limits and conversions must not be negative"))
	}
	if cfg.LockTimeoutSec != nil && *cfg.LockTimeoutSec < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("lock_timeout_sec must not be negative"))
	}
	if cfg.ControlPeriodMs < 0 {
		return nil, goutils.NewConfigValidationError(path, errors.New("control_period_ms must not be negative"))
	}
	if err := cfg.balanceConfig().Validate(); err != nil {
		return nil, goutils.NewConfigValidationError(path+".balance", err)
	}

	var deps []string
	if cfg.MovementSensor != "" {
		deps = append(deps, cfg.MovementSensor)
	}
	return deps, nil
}

func (cfg *Config) layout() kinematics.Layout {
	var layout kinematics.Layout
	for i := 0; i < len(cfg.Modules) && i < kinematics.NumModules; i++ {
		layout[i] = r2.Point{X: cfg.Modules[i].X, Y: cfg.Modules[i].Y}
	}
	return layout
}

func (cfg *Config) channel() string {
	if cfg.CANChannel == "" {
		return defaultChannel
	}
	return cfg.CANChannel
}

func (cfg *Config) drivetrainConfig() drivetrain.Config {
	out := drivetrain.Config{
		MaxVelocity:     cfg.MaxVelocityMPS,
		MaxOmega:        cfg.MaxOmegaRadPerSec,
		LockTimeout:     time.Duration(defaultLockTimeoutSec * float64(time.Second)),
		LockingDisabled: cfg.LockingDisabled,
	}
	if out.MaxVelocity == 0 {
		out.MaxVelocity = defaultMaxVelocity
	}
	if out.MaxOmega == 0 {
		out.MaxOmega = defaultMaxOmega
	}
	if cfg.LockTimeoutSec != nil {
		out.LockTimeout = time.Duration(*cfg.LockTimeoutSec * float64(time.Second))
	}
	return out
}

func (cfg *Config) conversions() swervemodule.Conversions {
	out := swervemodule.Conversions{WheelDiameter: cfg.WheelDiameterM, DriveGearRatio: cfg.DriveGearRatio}
	if out.WheelDiameter == 0 {
		out.WheelDiameter = defaultWheelDiameterM
	}
	if out.DriveGearRatio == 0 {
		out.DriveGearRatio = defaultDriveGearRatio
	}
	return out
}

func (cfg *Config) driveGains() pid.Gains {
	if cfg.DriveGains == nil {
		return defaultDriveGains
	}
	return *cfg.DriveGains
}

func (cfg *Config) steerGains() pid.Gains {
	if cfg.SteerGains == nil {
		return defaultSteerGains
	}
	return *cfg.SteerGains
}

// simSteerGains are the steer gains for simulated modules. Unset, they fall back to the
// simulated default, whose loop outputs a slew rate in rad/s.
func (cfg *Config) simSteerGains() pid.Gains {
	if cfg.SteerGains == nil {
		return swervemodule.DefaultSimConfig().SteerGains
	}
	return *cfg.SteerGains
}

func (cfg *Config) controlPeriod() time.Duration {
	if cfg.ControlPeriodMs == 0 {
		return defaultControlPeriodMs * time.Millisecond
	}
	return time.Duration(cfg.ControlPeriodMs) * time.Millisecond
}

// allSim reports whether every module is simulated.
func (cfg *Config) allSim() bool {
	for _, m := range cfg.Modules {
		if m.Type != moduleTypeSim {
			return false
		}
	}
	return true
}

func (cfg *Config) balanceConfig() balance.Config {
	out := balance.DefaultConfig()
	b := cfg.Balance
	if b == nil {
		return out
	}
	if b.ApproachPower != 0 {
		out.ApproachPower = b.ApproachPower
	}
	if b.CreepPower != 0 {
		out.CreepPower = b.CreepPower
	}
	if b.MountPitchDeg != 0 {
		out.MountPitch = rdkutils.DegToRad(b.MountPitchDeg)
	}
	if b.PivotPitchDeg != 0 {
		out.PivotPitch = rdkutils.DegToRad(b.PivotPitchDeg)
	}
	if b.BalancedPitchDeg != 0 {
		out.BalancedPitch = rdkutils.DegToRad(b.BalancedPitchDeg)
	}
	if b.BalancedPitchDeltaDeg != 0 {
		out.BalancedPitchDelta = rdkutils.DegToRad(b.BalancedPitchDeltaDeg)
	}
	if b.RunawayTimeoutSec != 0 {
		out.RunawayTimeout = time.Duration(b.RunawayTimeoutSec * float64(time.Second))
	}
	if b.Gains != nil {
		out.Gains = *b.Gains
	}
	return out
}

// requiresRebuild reports whether moving from cfg to next changes hardware or geometry.
func (cfg *Config) requiresRebuild(next *Config) bool {
	if len(cfg.Modules) != len(next.Modules) {
		return true
	}
	for i := range cfg.Modules {
		if cfg.Modules[i] != next.Modules[i] {
			return true
		}
	}
	return cfg.channel() != next.channel() ||
		cfg.MovementSensor != next.MovementSensor ||
		cfg.controlPeriod() != next.controlPeriod() ||
		cfg.conversions() != next.conversions()
}
