package main

import (
	"context"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/ky28059/GRT2023/drivetrain"
)

// headingSource supplies one orientation sample per control cycle.
type headingSource interface {
	Sample(ctx context.Context) drivetrain.GyroSample
}

// orientationReader is the part of a movement sensor the base reads.
type orientationReader interface {
	Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error)
}

// sensorHeading reads yaw and pitch from a movement sensor.
type sensorHeading struct {
	sensor      orientationReader
	invertPitch bool
	logger      logging.Logger
}

func (s *sensorHeading) Sample(ctx context.Context) drivetrain.GyroSample {
	o, err := s.sensor.Orientation(ctx, nil)
	if err != nil || o == nil {
		s.logger.Debugw("orientation unavailable", "error", err)
		return drivetrain.GyroSample{}
	}
	angles := o.EulerAngles()
	pitch := angles.Pitch
	if s.invertPitch {
		pitch = -pitch
	}
	return drivetrain.GyroSample{Yaw: angles.Yaw, Pitch: pitch, Connected: true}
}

// noHeading is used when no sensor is configured; odometry runs on wheels alone.
type noHeading struct{}

func (noHeading) Sample(context.Context) drivetrain.GyroSample {
	return drivetrain.GyroSample{}
}

// worldHeading reads the simulated chassis gyro.
type worldHeading struct {
	sample func() drivetrain.GyroSample
}

func (w worldHeading) Sample(context.Context) drivetrain.GyroSample {
	return w.sample()
}
