package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	viamutils "go.viam.com/utils"

	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	rdkutils "go.viam.com/rdk/utils"

	"github.com/ky28059/GRT2023/balance"
	"github.com/ky28059/GRT2023/drivetrain"
	"github.com/ky28059/GRT2023/kinematics"
	"github.com/ky28059/GRT2023/sim"
	"github.com/ky28059/GRT2023/swervemodule"
)

type swerveBase struct {
	resource.Named
	logger logging.Logger

	// mu serializes the control cycle with every command and query.
	mu         sync.Mutex
	conf       *Config
	geometries []spatialmath.Geometry
	drive      *drivetrain.Drivetrain
	balancer   *balance.Controller
	heading    headingSource
	world      *sim.World
	sims       []*swervemodule.Sim
	canModules []*swervemodule.CAN

	tx canTx
	rx canRx

	telemetryLock sync.RWMutex
	telemetry     map[string]interface{}

	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// newSwerveBase opens the CAN sockets when any module needs them and starts the control loop.
func newSwerveBase(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (base.Base, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}

	var tx canTx
	var rx canRx
	if !newConf.allSim() {
		socketSend, socketRecv, err := openCAN(newConf.channel(), feedbackFilters(newConf))
		if err != nil {
			return nil, err
		}
		tx, rx = socketSend, socketRecv
	}

	b, err := makeSwerveBase(ctx, deps, conf, newConf, logger, tx, rx)
	if err != nil {
		if tx != nil {
			err = multierr.Combine(err, tx.Close(), rx.Close())
		}
		return nil, err
	}
	b.start()
	return b, nil
}

// makeSwerveBase builds the base on the given bus halves, which may be nil when every module
// is simulated. Background threads are not started.
func makeSwerveBase(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	newConf *Config,
	logger logging.Logger,
	tx canTx,
	rx canRx,
) (*swerveBase, error) {
	geometries, err := frameGeometries(conf)
	if err != nil {
		return nil, err
	}

	kin, err := kinematics.New(newConf.layout())
	if err != nil {
		return nil, err
	}

	b := &swerveBase{
		Named:      conf.ResourceName().AsNamed(),
		logger:     logger,
		conf:       newConf,
		geometries: geometries,
		tx:         tx,
		rx:         rx,
		telemetry:  map[string]interface{}{},
	}

	var modules [kinematics.NumModules]swervemodule.Module
	if newConf.allSim() {
		var cfgs [kinematics.NumModules]swervemodule.SimConfig
		for i, m := range newConf.Modules {
			cfgs[i] = swervemodule.DefaultSimConfig()
			cfgs[i].AngleOffset = m.AngleOffsetRad
			cfgs[i].SteerGains = newConf.simSteerGains()
		}
		b.world = sim.NewWorld(kin, cfgs, kinematics.Pose{}, 0)
		modules = b.world.DriveModules()
	} else {
		for i, m := range newConf.Modules {
			switch m.Type {
			case moduleTypeCAN:
				if tx == nil {
					return nil, errors.New("CAN modules configured without a CAN bus")
				}
				mod, err := swervemodule.NewCAN(tx, swervemodule.CANConfig{
					DriveID:     m.DriveCANID,
					SteerID:     m.SteerCANID,
					AngleOffset: m.AngleOffsetRad,
					Conversions: newConf.conversions(),
					DriveGains:  newConf.driveGains(),
					SteerGains:  newConf.steerGains(),
				}, logger)
				if err != nil {
					return nil, errors.Wrapf(err, "module %d", i)
				}
				if err := mod.Configure(); err != nil {
					return nil, errors.Wrapf(err, "configuring module %d", i)
				}
				b.canModules = append(b.canModules, mod)
				modules[i] = mod
			default:
				simCfg := swervemodule.DefaultSimConfig()
				simCfg.AngleOffset = m.AngleOffsetRad
				simCfg.SteerGains = newConf.simSteerGains()
				mod := swervemodule.NewSim(simCfg)
				b.sims = append(b.sims, mod)
				modules[i] = mod
			}
		}
	}

	switch {
	case newConf.MovementSensor != "":
		ms, err := movementsensor.FromDependencies(deps, newConf.MovementSensor)
		if err != nil {
			return nil, err
		}
		b.heading = &sensorHeading{sensor: ms, invertPitch: newConf.InvertPitch, logger: logger}
	case b.world != nil:
		b.heading = worldHeading{sample: b.world.Sample}
	default:
		logger.Warnw("no movement sensor configured, heading is estimated from wheels only")
		b.heading = noHeading{}
	}

	b.drive, err = drivetrain.New(modules, kin, newConf.drivetrainConfig(), b.heading.Sample(ctx), logger)
	if err != nil {
		return nil, err
	}
	b.balancer, err = balance.New(b.drive, newConf.balanceConfig(), logger)
	if err != nil {
		return nil, err
	}
	b.publishTelemetry()
	return b, nil
}

func frameGeometries(conf resource.Config) ([]spatialmath.Geometry, error) {
	var geometries = []spatialmath.Geometry{}
	if conf.Frame != nil {
		frame, err := conf.Frame.ParseConfig()
		if err != nil {
			return nil, err
		}
		geometries = append(geometries, frame.Geometry())
	}
	return geometries, nil
}

// start launches the control thread and, on a CAN bus, the feedback thread.
func (b *swerveBase) start() {
	cancelCtx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	period := b.conf.controlPeriod()
	b.activeBackgroundWorkers.Add(1)
	viamutils.ManagedGo(func() {
		b.controlThread(cancelCtx, period)
	}, b.activeBackgroundWorkers.Done)

	if b.rx != nil {
		handlers := make([]swervemodule.FeedbackHandler, 0, len(b.canModules))
		for _, m := range b.canModules {
			handlers = append(handlers, m)
		}
		b.activeBackgroundWorkers.Add(1)
		viamutils.ManagedGo(func() {
			swervemodule.ReceiveFeedback(cancelCtx, b.rx, b.logger, handlers...)
		}, b.activeBackgroundWorkers.Done)
	}
}

// cancelBalance ends an active balance. The caller holds mu.
func (b *swerveBase) cancelBalance(reason string) {
	if b.balancer.Active() {
		b.balancer.End(true)
		b.logger.Infow("balance cancelled", "reason", reason)
	}
}

func (b *swerveBase) setCommand(cmd drivetrain.ChassisCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelBalance("motion command")
	b.drive.SetChassisCommand(cmd)
}

func fieldRelative(extra map[string]interface{}) bool {
	v, ok := extra["field_relative"].(bool)
	return ok && v
}

// MoveStraight drives along the robot's forward axis for the time distanceMm takes at mmPerSec.
// The speed is limited by max_velocity_mps, so the distance covered may be shorter.
func (b *swerveBase) MoveStraight(ctx context.Context, distanceMm int, mmPerSec float64, extra map[string]interface{}) error {
	if distanceMm == 0 || mmPerSec == 0 {
		return b.Stop(ctx, extra)
	}
	speed := math.Abs(mmPerSec) / 1000
	if (distanceMm < 0) != (mmPerSec < 0) {
		speed = -speed
	}
	b.setCommand(drivetrain.ChassisCommand{Vx: speed})
	defer b.Stop(ctx, extra)

	wait := time.Duration(math.Abs(float64(distanceMm)/mmPerSec) * float64(time.Second))
	if !viamutils.SelectContextOrWait(ctx, wait) {
		return ctx.Err()
	}
	return nil
}

// Spin turns in place by angleDeg at degsPerSec.
func (b *swerveBase) Spin(ctx context.Context, angleDeg, degsPerSec float64, extra map[string]interface{}) error {
	if angleDeg == 0 || degsPerSec == 0 {
		return b.Stop(ctx, extra)
	}
	omega := rdkutils.DegToRad(math.Abs(degsPerSec))
	if (angleDeg < 0) != (degsPerSec < 0) {
		omega = -omega
	}
	b.setCommand(drivetrain.ChassisCommand{Omega: omega})
	defer b.Stop(ctx, extra)

	wait := time.Duration(math.Abs(angleDeg/degsPerSec) * float64(time.Second))
	if !viamutils.SelectContextOrWait(ctx, wait) {
		return ctx.Err()
	}
	return nil
}

// SetPower sets the linear and angular [-1, 1] drive power. linear.Y drives forward and
// linear.X strafes right. Pass "field_relative": true in extra to drive in the field frame.
func (b *swerveBase) SetPower(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	b.logger.Debugw("SetPower with ",
		"linear.X", linear.X,
		"linear.Y", linear.Y,
		"linear.Z", linear.Z,
		"angular.X", angular.X,
		"angular.Y", angular.Y,
		"angular.Z", angular.Z,
	)

	// Some vector components do not apply to a 2D base
	if linear.Z != 0 {
		b.logger.Warnw("Linear Z command non-zero and has no effect")
	}
	if angular.X != 0 {
		b.logger.Warnw("Angular X command non-zero and has no effect")
	}
	if angular.Y != 0 {
		b.logger.Warnw("Angular Y command non-zero and has no effect")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelBalance("motion command")
	b.drive.SetDrivePowers(linear.Y, -linear.X, angular.Z, !fieldRelative(extra))
	return nil
}

// SetVelocity sets the linear (mmPerSec) and angular (degsPerSec) velocity.
func (b *swerveBase) SetVelocity(ctx context.Context, linear, angular r3.Vector, extra map[string]interface{}) error {
	if !finiteVector(linear) || !finiteVector(angular) {
		return errors.Errorf("velocity must be finite, got linear %v angular %v", linear, angular)
	}
	b.setCommand(drivetrain.ChassisCommand{
		Vx:            linear.Y / 1000,
		Vy:            -linear.X / 1000,
		Omega:         rdkutils.DegToRad(angular.Z),
		FieldRelative: fieldRelative(extra),
	})
	return nil
}

// finiteVector reports whether no component of v is NaN or infinite.
func finiteVector(v r3.Vector) bool {
	n := v.Norm2()
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

// Stop zeroes the command. The base locks its wheels once the idle timeout passes.
func (b *swerveBase) Stop(ctx context.Context, extra map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelBalance("stop")
	b.drive.Stop()
	return nil
}

func (b *swerveBase) IsMoving(ctx context.Context) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drive.IsMoving() || !b.drive.Command().IsZero(), nil
}

func (b *swerveBase) Properties(ctx context.Context, extra map[string]interface{}) (base.Properties, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range b.drive.Kinematics().Layout() {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return base.Properties{
		WidthMeters:              maxY - minY,
		WheelCircumferenceMeters: math.Pi * b.conf.conversions().WheelDiameter,
	}, nil
}

func (b *swerveBase) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.geometries, nil
}

// Reconfigure applies limits, gains and balance settings in place. Changes to the modules,
// the bus or the sensor require a rebuild.
func (b *swerveBase) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	geometries, err := frameGeometries(conf)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conf.requiresRebuild(newConf) {
		return resource.NewMustRebuildError(conf.ResourceName())
	}
	if err := b.drive.SetConfig(newConf.drivetrainConfig()); err != nil {
		return err
	}
	if err := b.balancer.SetConfig(newConf.balanceConfig()); err != nil {
		return err
	}
	if sh, ok := b.heading.(*sensorHeading); ok {
		sh.invertPitch = newConf.InvertPitch
	}

	var gainErr error
	for _, m := range b.canModules {
		gainErr = multierr.Append(gainErr, m.SetGains(newConf.driveGains(), newConf.steerGains()))
	}
	for _, m := range b.simModules() {
		m.SetSteerGains(newConf.simSteerGains())
	}
	b.conf = newConf
	b.geometries = geometries
	return gainErr
}

// simModules returns every simulated module, in the world or standalone.
func (b *swerveBase) simModules() []*swervemodule.Sim {
	if b.world != nil {
		return b.world.Modules[:]
	}
	return b.sims
}

// Close stops the threads, disables the actuators and releases the bus.
func (b *swerveBase) Close(ctx context.Context) error {
	var err error
	if b.cancel != nil {
		b.cancel()
	}
	if b.rx != nil {
		err = multierr.Append(err, b.rx.Close())
	}
	b.activeBackgroundWorkers.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelBalance("close")
	b.drive.Stop()
	for _, m := range b.canModules {
		err = multierr.Append(err, m.Disable())
	}
	if b.tx != nil {
		err = multierr.Append(err, b.tx.Close())
	}
	return err
}
