package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/robot"
	"github.com/gwillem/armteleop/pkg/sim"
	"github.com/gwillem/armteleop/pkg/teleop"
	"github.com/gwillem/armteleop/pkg/urscript"
)

// simHome is a folded, upright arm.
var simHome = robot.JointVector{0, -90, 90, -90, -90, 0}

// connect opens the configured backend. Source and dispatcher may be the
// same value; the controller closes both.
func connect(ctx context.Context, cfg *robot.Config, logger *zap.Logger) (teleop.StateSource, teleop.Dispatcher, error) {
	switch cfg.Backend {
	case robot.BackendUR:
		rt, err := urscript.DialRealtime(ctx, cfg.UR, logger.Named("realtime"))
		if err != nil {
			return nil, nil, err
		}
		return rt, urscript.NewClient(cfg.UR, urscript.WithLogger(logger.Named("urscript"))), nil

	case robot.BackendFeetech:
		arm, err := robot.NewArm(cfg.Arm.Port, cfg.Arm.Calibration, cfg.Joints)
		if err != nil {
			return nil, nil, err
		}
		if err := arm.Enable(ctx); err != nil {
			arm.Close()
			return nil, nil, fmt.Errorf("enable torque: %w", err)
		}
		return arm, arm, nil

	case robot.BackendSim:
		r := sim.New(
			sim.WithHome(simHome),
			sim.WithTick(cfg.Period()),
			sim.WithLogger(logger.Named("sim")),
		)
		return r, r, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// loadConfig reads and validates the configuration file.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("no usable configuration in %s (run 'armteleop setup' first): %w", opts.Config, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", opts.Config, err)
	}
	return cfg, nil
}
