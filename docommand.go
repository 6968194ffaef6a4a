package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/kinematics"
)

// telemetry keys
const (
	telemMode             = "mode"
	telemLockOverride     = "lock_override"
	telemIdleSec          = "idle_sec"
	telemSensorConnected  = "sensor_connected"
	telemPitchDeg         = "pitch_deg"
	telemFieldHeadingDeg  = "field_heading_deg"
	telemHeadingOffsetDeg = "heading_offset_deg"
	telemX                = "x_m"
	telemY                = "y_m"
	telemHeadingDeg       = "heading_deg"
	telemBalanceActive    = "balance_active"
	telemBalancePhase     = "balance_phase"
	telemBalancePower     = "balance_power"
	telemModules          = "modules"
)

// publishTelemetry snapshots the drivetrain. The caller holds mu.
func (b *swerveBase) publishTelemetry() {
	pose := b.drive.Pose()
	pitch, _ := b.drive.Pitch()

	modules := make([]interface{}, 0, kinematics.NumModules)
	for _, t := range b.drive.ModuleTelemetry() {
		modules = append(modules, map[string]interface{}{
			"target_speed_mps": t.TargetSpeed,
			"actual_speed_mps": t.ActualSpeed,
			"speed_error_mps":  t.SpeedError(),
			"target_angle_deg": rdkutils.RadToDeg(t.TargetAngle),
			"actual_angle_deg": rdkutils.RadToDeg(t.ActualAngle),
			"angle_error_deg":  rdkutils.RadToDeg(t.AngleError()),
		})
	}

	b.telemetryLock.Lock()
	defer b.telemetryLock.Unlock()
	b.telemetry[telemMode] = b.drive.Mode().String()
	b.telemetry[telemLockOverride] = b.drive.LockOverride()
	b.telemetry[telemIdleSec] = b.drive.IdleTime().Seconds()
	b.telemetry[telemSensorConnected] = b.drive.SensorConnected()
	b.telemetry[telemPitchDeg] = rdkutils.RadToDeg(pitch)
	b.telemetry[telemFieldHeadingDeg] = rdkutils.RadToDeg(b.drive.FieldHeading())
	b.telemetry[telemHeadingOffsetDeg] = rdkutils.RadToDeg(b.drive.HeadingOffset())
	b.telemetry[telemX] = pose.X
	b.telemetry[telemY] = pose.Y
	b.telemetry[telemHeadingDeg] = rdkutils.RadToDeg(pose.Heading)
	b.telemetry[telemBalanceActive] = b.balancer.Active()
	b.telemetry[telemBalancePhase] = b.balancer.Phase().String()
	b.telemetry[telemBalancePower] = b.balancer.Power()
	b.telemetry[telemModules] = modules
}

func (b *swerveBase) telemGetAll() map[string]interface{} {
	b.telemetryLock.RLock()
	defer b.telemetryLock.RUnlock()
	out := make(map[string]interface{}, len(b.telemetry))
	for k, v := range b.telemetry {
		out[k] = v
	}
	return out
}

// floatArg reads an optional number from cmd.
func floatArg(cmd map[string]interface{}, key string, def float64) (float64, error) {
	raw, ok := cmd[key]
	if !ok {
		return def, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, errors.Errorf("%s value must be a number but is type %T", key, raw)
	}
	return v, nil
}

// DoCommand executes additional commands beyond the Base{} interface: pose and heading
// resets, the wheel lock override and the auto-balance routine.
func (b *swerveBase) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	name, ok := cmd["command"]
	if !ok {
		return nil, errors.New("missing 'command' value")
	}
	switch name {
	case "reset_pose":
		x, err := floatArg(cmd, "x_m", 0)
		if err != nil {
			return nil, err
		}
		y, err := floatArg(cmd, "y_m", 0)
		if err != nil {
			return nil, err
		}
		heading, err := floatArg(cmd, "heading_deg", 0)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.drive.ResetPose(kinematics.Pose{X: x, Y: y, Heading: kinematics.NormalizeAngle(rdkutils.DegToRad(heading))})
		return map[string]interface{}{"return": "reset_pose command processed"}, nil

	case "reset_heading":
		heading, err := floatArg(cmd, "heading_deg", 0)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		b.drive.ResetFieldHeading(kinematics.NormalizeAngle(rdkutils.DegToRad(heading)))
		return map[string]interface{}{"return": "reset_heading command processed"}, nil

	case "toggle_lock":
		b.mu.Lock()
		defer b.mu.Unlock()
		return map[string]interface{}{telemLockOverride: b.drive.ToggleLockOverride()}, nil

	case "balance":
		b.mu.Lock()
		defer b.mu.Unlock()
		pitch, ok := b.drive.Pitch()
		if !ok {
			return nil, errors.New("balance requires a connected pitch sensor")
		}
		b.balancer.Initialize(pitch)
		return map[string]interface{}{"return": "balance started"}, nil

	case "cancel_balance":
		b.mu.Lock()
		defer b.mu.Unlock()
		b.cancelBalance("cancel_balance command")
		return map[string]interface{}{"return": "cancel_balance command processed"}, nil

	case "get_pose":
		b.mu.Lock()
		defer b.mu.Unlock()
		pose := b.drive.Pose()
		return map[string]interface{}{
			telemX:                pose.X,
			telemY:                pose.Y,
			telemHeadingDeg:       rdkutils.RadToDeg(pose.Heading),
			telemFieldHeadingDeg:  rdkutils.RadToDeg(b.drive.FieldHeading()),
			telemHeadingOffsetDeg: rdkutils.RadToDeg(b.drive.HeadingOffset()),
			telemMode:             b.drive.Mode().String(),
		}, nil

	case "get_telemetry":
		return b.telemGetAll(), nil

	default:
		return nil, fmt.Errorf("no such command: %s", name)
	}
}
