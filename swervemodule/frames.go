package swervemodule

import (
	"encoding/binary"
	"math"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"

	"github.com/ky28059/GRT2023/pid"
)

// Actuator controllers listen on their own standard id and report feedback on id+feedbackIDOffset.
const (
	feedbackIDOffset uint32 = 0x80
	maxActuatorID    uint32 = 0x7FF - feedbackIDOffset
)

// command modes, byte 0 of every command frame
const (
	modeDisabled byte = 0x00
	modeVelocity byte = 0x01
	modePosition byte = 0x02

	modeGainP  byte = 0x10
	modeGainI  byte = 0x11
	modeGainD  byte = 0x12
	modeGainFF byte = 0x13
)

// Command payloads carry the mode in byte 0 and the reference in bytes 4-7. Velocities are
// motor rpm, positions are radians of the module.
var (
	sigMode        = signal{scale: 1, start: 0, length: 8}
	sigWrap        = signal{scale: 1, start: 8, length: 1}
	sigVelocityCmd = signal{scale: 0.1, start: 32, length: 32, signed: true}
	sigPositionCmd = signal{scale: 1e-4, start: 32, length: 32, signed: true}
)

// Feedback payloads. Drive position is in motor rotations, steer angle is the absolute
// encoder reading in [0, 2π).
var (
	sigDrivePosition = signal{scale: 1.0 / 4096, start: 0, length: 32, signed: true}
	sigDriveVelocity = signal{scale: 0.1, start: 32, length: 32, signed: true}
	sigSteerAngle    = signal{scale: 2 * math.Pi / 65536, start: 0, length: 16}
)

func checkActuatorID(id uint32) error {
	if id > maxActuatorID {
		return errors.Errorf("actuator id %#x exceeds %#x", id, maxActuatorID)
	}
	return nil
}

func newCommandFrame(id uint32, mode byte) canbus.Frame {
	frame := canbus.Frame{
		ID:   id,
		Data: make([]byte, 8),
		Kind: canbus.SFF,
	}
	sigMode.insert(frame.Data, float64(mode))
	return frame
}

func velocityFrame(id uint32, rpm float64) canbus.Frame {
	frame := newCommandFrame(id, modeVelocity)
	sigVelocityCmd.insert(frame.Data, rpm)
	return frame
}

// positionFrame commands a steer position. Continuous targets are tracked the short way
// around by the controller.
func positionFrame(id uint32, angle float64, continuous bool) canbus.Frame {
	frame := newCommandFrame(id, modePosition)
	if continuous {
		sigWrap.insert(frame.Data, 1)
	}
	sigPositionCmd.insert(frame.Data, angle)
	return frame
}

func disableFrame(id uint32) canbus.Frame {
	return newCommandFrame(id, modeDisabled)
}

// gainFrames returns one frame per gain, value as a little-endian float32 in bytes 4-7.
func gainFrames(id uint32, gains pid.Gains) []canbus.Frame {
	values := []struct {
		mode  byte
		value float64
	}{
		{modeGainP, gains.P},
		{modeGainI, gains.I},
		{modeGainD, gains.D},
		{modeGainFF, gains.FF},
	}
	frames := make([]canbus.Frame, 0, len(values))
	for _, v := range values {
		frame := newCommandFrame(id, v.mode)
		binary.LittleEndian.PutUint32(frame.Data[4:8], math.Float32bits(float32(v.value)))
		frames = append(frames, frame)
	}
	return frames
}
