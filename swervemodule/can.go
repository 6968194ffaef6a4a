package swervemodule

import (
	"sync"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"golang.org/x/sys/unix"

	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/pid"
)

// Bus sends frames to the actuator controllers. *canbus.Socket satisfies it.
type Bus interface {
	Send(frame canbus.Frame) (int, error)
}

// CANConfig configures a module built from two smart actuator controllers.
type CANConfig struct {
	DriveID     uint32
	SteerID     uint32
	AngleOffset float64
	Conversions Conversions
	DriveGains  pid.Gains
	SteerGains  pid.Gains
}

// CAN is a module whose drive and steer loops are closed on the actuator controllers.
// References are sent on every SetDesiredState call; feedback arrives via HandleFeedback.
type CAN struct {
	bus    Bus
	cfg    CANConfig
	logger logging.Logger

	mu             sync.Mutex
	target         kinematics.ModuleState
	driveRotations float64
	driveRPM       float64
	steerRaw       float64
}

// NewCAN returns a module on bus. Gains are not sent until Configure is called.
func NewCAN(bus Bus, cfg CANConfig, logger logging.Logger) (*CAN, error) {
	if err := multierr.Combine(checkActuatorID(cfg.DriveID), checkActuatorID(cfg.SteerID)); err != nil {
		return nil, err
	}
	if cfg.DriveID == cfg.SteerID {
		return nil, errors.Errorf("drive and steer share actuator id %#x", cfg.DriveID)
	}
	if cfg.Conversions.WheelDiameter <= 0 || cfg.Conversions.DriveGearRatio <= 0 {
		return nil, errors.New("wheel diameter and drive gear ratio must be positive")
	}
	return &CAN{
		bus:      bus,
		cfg:      cfg,
		logger:   logger,
		steerRaw: toActuator(0, cfg.AngleOffset),
	}, nil
}

func (m *CAN) send(frames ...canbus.Frame) error {
	var err error
	for _, frame := range frames {
		if _, sendErr := m.bus.Send(frame); sendErr != nil {
			err = multierr.Append(err, errors.Wrapf(sendErr, "send to %#x", frame.ID))
		}
	}
	return err
}

// Configure sends the closed-loop gains to both controllers.
func (m *CAN) Configure() error {
	return m.SetGains(m.cfg.DriveGains, m.cfg.SteerGains)
}

// SetGains replaces the controller gains and sends them.
func (m *CAN) SetGains(drive, steer pid.Gains) error {
	m.mu.Lock()
	m.cfg.DriveGains = drive
	m.cfg.SteerGains = steer
	m.mu.Unlock()

	frames := gainFrames(m.cfg.DriveID, drive)
	frames = append(frames, gainFrames(m.cfg.SteerID, steer)...)
	return m.send(frames...)
}

// SetDesiredState implements Module.
func (m *CAN) SetDesiredState(desired kinematics.ModuleState) {
	m.mu.Lock()
	m.target = desired.Optimize(fromActuator(m.steerRaw, m.cfg.AngleOffset))
	target := m.target
	m.mu.Unlock()

	err := m.send(
		velocityFrame(m.cfg.DriveID, m.cfg.Conversions.ToMotorRPM(target.Speed)),
		positionFrame(m.cfg.SteerID, toActuator(target.Angle, m.cfg.AngleOffset), true),
	)
	if err != nil {
		m.logger.Errorw("module command send error", "drive_id", m.cfg.DriveID, "steer_id", m.cfg.SteerID, "error", err)
	}
}

// Disable puts both controllers in their disabled mode.
func (m *CAN) Disable() error {
	return m.send(disableFrame(m.cfg.DriveID), disableFrame(m.cfg.SteerID))
}

// Filters returns the receive filters for this module's feedback frames.
func (m *CAN) Filters() []unix.CanFilter {
	return FeedbackFilters(m.cfg.DriveID, m.cfg.SteerID)
}

// FeedbackFilters returns receive filters matching the feedback frames of the given actuators.
func FeedbackFilters(ids ...uint32) []unix.CanFilter {
	filters := make([]unix.CanFilter, 0, len(ids))
	for _, id := range ids {
		filters = append(filters, unix.CanFilter{Id: id + feedbackIDOffset, Mask: unix.CAN_SFF_MASK})
	}
	return filters
}

// HandleFeedback stores frame if it is feedback from one of this module's controllers and
// reports whether it was.
func (m *CAN) HandleFeedback(frame canbus.Frame) bool {
	switch frame.ID {
	case m.cfg.DriveID + feedbackIDOffset:
		rotations := sigDrivePosition.extract(frame.Data)
		rpm := sigDriveVelocity.extract(frame.Data)
		m.mu.Lock()
		m.driveRotations = rotations
		m.driveRPM = rpm
		m.mu.Unlock()
		return true
	case m.cfg.SteerID + feedbackIDOffset:
		raw := kinematics.NormalizeAngle(sigSteerAngle.extract(frame.Data))
		m.mu.Lock()
		m.steerRaw = raw
		m.mu.Unlock()
		return true
	}
	return false
}

// Position implements Module.
func (m *CAN) Position() kinematics.ModulePosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kinematics.ModulePosition{
		Distance: m.driveRotations * m.cfg.Conversions.MetersPerRotation(),
		Angle:    fromActuator(m.steerRaw, m.cfg.AngleOffset),
	}
}

// State implements Module.
func (m *CAN) State() kinematics.ModuleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return kinematics.ModuleState{
		Speed: m.cfg.Conversions.FromMotorRPM(m.driveRPM),
		Angle: fromActuator(m.steerRaw, m.cfg.AngleOffset),
	}
}

// Telemetry implements Module.
func (m *CAN) Telemetry() Telemetry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Telemetry{
		TargetSpeed: m.target.Speed,
		ActualSpeed: m.cfg.Conversions.FromMotorRPM(m.driveRPM),
		TargetAngle: m.target.Angle,
		ActualAngle: fromActuator(m.steerRaw, m.cfg.AngleOffset),
	}
}
