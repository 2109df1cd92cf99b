package robot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armteleop/pkg/pose"
)

// ErrUnsupportedMode is returned when an arm cannot execute a control mode.
var ErrUnsupportedMode = errors.New("control mode not supported by arm")

// Arm is a serial-bus servo arm. It reports joint angles and accepts joint
// motions; it has no kinematic model, so its reported pose is always the
// identity and TCP motions are refused.
type Arm struct {
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
	joints      JointTable
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration, joints JointTable) (*Arm, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	group := feetech.NewServoGroupByIDs(bus, cal.MotorIDs()...)

	return &Arm{
		bus:         bus,
		group:       group,
		calibration: cal,
		joints:      joints,
	}, nil
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadJoints reads current positions from all servos in degrees.
func (a *Arm) ReadJoints(ctx context.Context) (JointVector, error) {
	var joints JointVector
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return joints, fmt.Errorf("read positions: %w", err)
	}

	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		meta, ok := a.metadata(name)
		if !ok {
			continue
		}
		joints[meta.ID-1] = cal.ToDegrees(raw, meta)
	}

	return joints, nil
}

// ReadState reads a snapshot of the arm.
func (a *Arm) ReadState(ctx context.Context) (Snapshot, error) {
	joints, err := a.ReadJoints(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Joints:       joints,
		Pose:         pose.Identity,
		SpeedPercent: 100,
		Connected:    true,
		Safety:       SafetyNormal,
		Program:      ProgramStopped,
		Time:         time.Now(),
	}, nil
}

// WriteJoints writes target angles in degrees to all servos.
func (a *Arm) WriteJoints(ctx context.Context, joints JointVector) error {
	rawPositions := make(feetech.PositionMap, len(a.calibration))
	for _, meta := range a.joints {
		cal, ok := a.calibration[meta.Name]
		if !ok {
			continue
		}
		rawPositions[cal.ID] = cal.FromDegrees(joints.Get(meta.ID), meta)
	}

	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}

	return nil
}

// Dispatch executes a joint motion. Servos move at their own profile speed.
func (a *Arm) Dispatch(ctx context.Context, cmd Command) error {
	if cmd.Mode != ModeJoint {
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, cmd.Mode)
	}
	return a.WriteJoints(ctx, cmd.Joints)
}

// Stop holds the arm where it currently is.
func (a *Arm) Stop(ctx context.Context) error {
	joints, err := a.ReadJoints(ctx)
	if err != nil {
		return err
	}
	return a.WriteJoints(ctx, joints)
}

func (a *Arm) metadata(name JointName) (JointMetadata, bool) {
	for _, m := range a.joints {
		if m.Name == name {
			return m, true
		}
	}
	return JointMetadata{}, false
}
