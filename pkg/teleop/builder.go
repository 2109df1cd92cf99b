package teleop

import (
	"fmt"
	"math"
	"sync"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// Precision is the number of decimals kept on every pose component after a
// transform, so repeated compose/invert cycles do not accumulate noise.
const Precision = 4

// CoordinateMode selects the frame pose edits are expressed in.
type CoordinateMode string

const (
	CoordinateBase CoordinateMode = "base"
	CoordinateTool CoordinateMode = "tool"
)

// Builder turns operator edits and jogs into absolute targets in the store.
type Builder struct {
	store  *Store
	joints robot.JointTable

	mu    sync.Mutex
	coord CoordinateMode
}

// NewBuilder creates a builder in base coordinates.
func NewBuilder(store *Store, joints robot.JointTable) *Builder {
	if len(joints) == 0 {
		joints = robot.DefaultJoints()
	}
	return &Builder{
		store:  store,
		joints: joints,
		coord:  CoordinateBase,
	}
}

// CoordinateMode returns the current coordinate mode.
func (b *Builder) CoordinateMode() CoordinateMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coord
}

// SetCoordinateMode switches between base and tool coordinates.
func (b *Builder) SetCoordinateMode(m CoordinateMode) error {
	if m != CoordinateBase && m != CoordinateTool {
		return fmt.Errorf("%w: coordinate mode %q", ErrInvalidInput, m)
	}
	b.mu.Lock()
	b.coord = m
	b.mu.Unlock()
	return nil
}

// ToggleCoordinateMode flips base and tool and returns the new mode.
func (b *Builder) ToggleCoordinateMode() CoordinateMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.coord == CoordinateBase {
		b.coord = CoordinateTool
	} else {
		b.coord = CoordinateBase
	}
	return b.coord
}

// Joints returns the joint metadata the builder clamps against.
func (b *Builder) Joints() robot.JointTable {
	return b.joints
}

// SetJoint sets target joint id to angle, clamped to the joint limits.
func (b *Builder) SetJoint(id int, angle float64) error {
	meta, err := b.meta(id)
	if err != nil {
		return err
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("%w: joint %d angle %v", ErrInvalidInput, id, angle)
	}
	if err := b.store.SetTargetJoint(id, meta.Clamp(angle)); err != nil {
		return err
	}
	b.useMode(robot.ModeJoint)
	return nil
}

// JogJoint moves target joint id by steps times its configured increment.
func (b *Builder) JogJoint(id int, steps float64) error {
	meta, err := b.meta(id)
	if err != nil {
		return err
	}
	err = b.store.EditTargetJoint(id, func(current float64) float64 {
		return meta.Clamp(current + steps*meta.Step)
	})
	if err != nil {
		return err
	}
	b.useMode(robot.ModeJoint)
	return nil
}

// JogPose moves the target by step (meters or radians) along one axis. In
// base mode the axis is the base frame axis; in tool mode it is the axis of
// the current target's own frame, so repeated jogs compound before a commit.
func (b *Builder) JogPose(axis pose.Axis, step float64) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: axis %v", ErrInvalidInput, axis)
	}
	coord := b.CoordinateMode()
	err := b.store.EditTargetPose(func(_, target pose.Pose) pose.Pose {
		if coord == CoordinateTool {
			return pose.Round(pose.Compose(target, pose.UnitDelta(axis, step)), Precision)
		}
		return pose.Round(target.With(axis, target.Get(axis)+step), Precision)
	})
	if err != nil {
		return err
	}
	b.useMode(robot.ModeTCP)
	return nil
}

// JogTranslation jogs a translation axis by mm millimeters.
func (b *Builder) JogTranslation(axis pose.Axis, mm float64) error {
	if axis.IsRotation() {
		return fmt.Errorf("%w: %v is not a translation axis", ErrInvalidInput, axis)
	}
	return b.JogPose(axis, mm/1000)
}

// JogRotation jogs a rotation axis by deg degrees.
func (b *Builder) JogRotation(axis pose.Axis, deg float64) error {
	if !axis.IsRotation() {
		return fmt.Errorf("%w: %v is not a rotation axis", ErrInvalidInput, axis)
	}
	return b.JogPose(axis, deg*math.Pi/180)
}

// SetPoseField sets one component of the displayed pose. In tool mode the
// value is relative to the actual tool frame and is converted back to the
// base frame before it reaches the store.
func (b *Builder) SetPoseField(axis pose.Axis, value float64) error {
	if !axis.Valid() {
		return fmt.Errorf("%w: axis %v", ErrInvalidInput, axis)
	}
	coord := b.CoordinateMode()
	err := b.store.EditTargetPose(func(actual, target pose.Pose) pose.Pose {
		if coord == CoordinateTool {
			rel := relative(actual, target).With(axis, value)
			return pose.Round(pose.Compose(actual, rel), Precision)
		}
		return pose.Round(target.With(axis, value), Precision)
	})
	if err != nil {
		return err
	}
	b.useMode(robot.ModeTCP)
	return nil
}

// DisplayPose returns the target pose in the current coordinate mode.
func (b *Builder) DisplayPose() pose.Pose {
	return b.DisplayPoseOf(b.store.State())
}

// DisplayPoseOf returns the target pose of s in the current coordinate mode.
func (b *Builder) DisplayPoseOf(s State) pose.Pose {
	if b.CoordinateMode() == CoordinateTool {
		return relative(s.ActualPose, s.TargetPose)
	}
	return s.TargetPose
}

// relative expresses target in the frame of actual.
func relative(actual, target pose.Pose) pose.Pose {
	return pose.Round(pose.Compose(pose.Invert(actual), target), Precision)
}

func (b *Builder) meta(id int) (robot.JointMetadata, error) {
	meta, ok := b.joints.ByID(id)
	if !ok {
		return meta, fmt.Errorf("%w: %d", ErrUnknownJoint, id)
	}
	return meta, nil
}

// useMode makes the edited representation govern the next motion. Editing
// during a motion leaves the mode alone.
func (b *Builder) useMode(m robot.ControlMode) {
	_ = b.store.SetControlMode(m)
}
