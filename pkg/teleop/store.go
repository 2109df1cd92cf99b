package teleop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// Phase is the reconciliation state derived from the dirty and moving flags.
type Phase string

const (
	PhaseIdleClean Phase = "idle-clean"
	PhaseIdleDirty Phase = "idle-dirty"
	PhaseMoving    Phase = "moving"
)

// State is a copy of everything the store tracks.
type State struct {
	ActualJoints robot.JointVector
	TargetJoints robot.JointVector
	ActualPose   pose.Pose
	TargetPose   pose.Pose
	Dirty        bool
	Moving       bool
	Mode         robot.ControlMode
	Progress     float64 // 0..1 while moving

	Connected    bool
	SpeedPercent float64
	ToolOffset   pose.Pose
	Safety       robot.SafetyState
	Program      robot.ProgramState
	Timestamp    time.Time
}

// Phase returns the reconciliation phase.
func (s State) Phase() Phase {
	switch {
	case s.Moving:
		return PhaseMoving
	case s.Dirty:
		return PhaseIdleDirty
	}
	return PhaseIdleClean
}

// JointDelta returns target minus actual joints.
func (s State) JointDelta() robot.JointVector {
	return robot.Delta(s.TargetJoints, s.ActualJoints)
}

// Store holds the actual and target robot state. All mutation goes through
// its methods, which run to completion under one lock.
type Store struct {
	mu sync.Mutex
	s  State

	poseTol  pose.Tolerance
	jointTol float64
	motion   robot.MotionConfig

	// commitSeq identifies the latest commit so a late rollback cannot undo a
	// newer motion.
	commitSeq uint64
	// resync routes the next snapshot through the drift update after a stop.
	resync bool
	start  distance

	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTolerance overrides the pose and joint equivalence tolerances.
func WithTolerance(p pose.Tolerance, jointDeg float64) StoreOption {
	return func(st *Store) {
		st.poseTol = p
		st.jointTol = jointDeg
	}
}

// WithHome sets the initial actual and target configuration.
func WithHome(joints robot.JointVector, p pose.Pose) StoreOption {
	return func(st *Store) {
		st.s.ActualJoints, st.s.TargetJoints = joints, joints
		st.s.ActualPose, st.s.TargetPose = p, p
	}
}

// WithControlMode sets the initial control mode.
func WithControlMode(m robot.ControlMode) StoreOption {
	return func(st *Store) {
		st.s.Mode = m
	}
}

// WithMotion sets the speed and acceleration attached to committed motions.
func WithMotion(m robot.MotionConfig) StoreOption {
	return func(st *Store) {
		st.motion = m
	}
}

// WithStoreLogger sets the logger for state transitions.
func WithStoreLogger(l *zap.Logger) StoreOption {
	return func(st *Store) {
		st.logger = l
	}
}

// NewStore creates a store at the home configuration: zero joints, identity
// pose, joint control mode.
func NewStore(opts ...StoreOption) *Store {
	cfg := robot.DefaultConfig()
	st := &Store{
		s:        State{Mode: robot.ModeJoint},
		poseTol:  pose.DefaultTolerance,
		jointTol: robot.DefaultJointTolerance,
		motion:   cfg.Motion,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// NewStoreFromConfig creates a store with tolerances, motion and control
// mode taken from cfg.
func NewStoreFromConfig(cfg *robot.Config, opts ...StoreOption) *Store {
	base := []StoreOption{
		WithTolerance(cfg.Tolerance.Pose(), cfg.Tolerance.JointDeg),
		WithMotion(cfg.Motion),
		WithControlMode(cfg.Mode),
	}
	return NewStore(append(base, opts...)...)
}

// State returns a copy of the current state.
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}

// Phase returns the current reconciliation phase.
func (st *Store) Phase() Phase {
	return st.State().Phase()
}

// SetTargetJoint replaces one target joint angle.
func (st *Store) SetTargetJoint(id int, angle float64) error {
	return st.EditTargetJoint(id, func(float64) float64 { return angle })
}

// EditTargetJoint replaces target joint id with fn(current) atomically.
func (st *Store) EditTargetJoint(id int, fn func(current float64) float64) error {
	if id < 1 || id > robot.NumJoints {
		return fmt.Errorf("%w: %d", ErrUnknownJoint, id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	target := st.s.TargetJoints.With(id, fn(st.s.TargetJoints.Get(id)))
	if !target.Valid() {
		return fmt.Errorf("%w: joint %d angle %v", ErrInvalidInput, id, target.Get(id))
	}
	st.s.TargetJoints = target
	st.s.Dirty = !st.jointsMatch(target, st.s.ActualJoints)
	return nil
}

// SetTargetJoints replaces all target joint angles.
func (st *Store) SetTargetJoints(joints robot.JointVector) error {
	if !joints.Valid() {
		return fmt.Errorf("%w: joints %v", ErrInvalidInput, joints)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.TargetJoints = joints
	st.s.Dirty = !st.jointsMatch(joints, st.s.ActualJoints)
	return nil
}

// SetTargetPose replaces the target pose.
func (st *Store) SetTargetPose(p pose.Pose) error {
	return st.EditTargetPose(func(_, _ pose.Pose) pose.Pose { return p })
}

// EditTargetPose replaces the target pose with fn(actual, target) atomically.
func (st *Store) EditTargetPose(fn func(actual, target pose.Pose) pose.Pose) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	p := fn(st.s.ActualPose, st.s.TargetPose)
	if !p.Valid() {
		return fmt.Errorf("%w: pose %v", ErrInvalidInput, p)
	}
	st.s.TargetPose = p
	st.s.Dirty = !st.posesMatch(p, st.s.ActualPose)
	return nil
}

// ResetTargetToActual discards target edits. Callers must check Moving
// first; resetting during a motion makes completion detection compare
// against the actual state.
func (st *Store) ResetTargetToActual() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.resetLocked()
}

// ResetIfIdle discards target edits unless a motion is in flight, in which
// case it returns ErrMoving and leaves the targets alone.
func (st *Store) ResetIfIdle() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Moving {
		return ErrMoving
	}
	st.resetLocked()
	return nil
}

func (st *Store) resetLocked() {
	st.s.TargetJoints = st.s.ActualJoints
	st.s.TargetPose = st.s.ActualPose
	st.s.Dirty = false
}

// SetControlMode selects which target representation governs motions.
// The mode cannot change while moving.
func (st *Store) SetControlMode(m robot.ControlMode) error {
	if m != robot.ModeJoint && m != robot.ModeTCP {
		return fmt.Errorf("%w: control mode %q", ErrInvalidInput, m)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.Mode == m {
		return nil
	}
	if st.s.Moving {
		return ErrMoving
	}
	st.s.Mode = m
	return nil
}

// SetConnected records a transport-level connection change without touching
// the joint or pose vectors.
func (st *Store) SetConnected(connected bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Connected = connected
}

// Dispatcher sends motions to the controller.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd robot.Command) error
	Stop(ctx context.Context) error
}

// Commit sends the current target to d and returns the command it built.
// It returns false without error when there is nothing to apply or a motion
// is already in flight. If dispatch fails the store rolls back to idle-dirty.
func (st *Store) Commit(ctx context.Context, d Dispatcher) (robot.Command, bool, error) {
	st.mu.Lock()
	if st.s.Moving || !st.s.Dirty {
		phase := st.s.Phase()
		st.mu.Unlock()
		st.logger.Debug("commit ignored", zap.String("phase", string(phase)))
		return robot.Command{}, false, nil
	}
	st.s.Moving = true
	st.s.Progress = 0
	// A new motion supersedes any pending stop resync.
	st.resync = false
	st.commitSeq++
	seq := st.commitSeq
	st.start = st.distanceLocked()
	cmd := st.commandLocked()
	st.mu.Unlock()

	st.logger.Info("commit",
		zap.String("id", cmd.ID),
		zap.String("mode", string(cmd.Mode)),
		zap.Float64s("joints", cmd.Joints[:]),
		zap.Stringer("pose", cmd.Pose))

	if err := d.Dispatch(ctx, cmd); err != nil {
		st.mu.Lock()
		if st.s.Moving && st.commitSeq == seq {
			st.s.Moving = false
			st.s.Dirty = true
			st.s.Progress = 0
		}
		st.mu.Unlock()
		st.logger.Warn("dispatch failed, rolled back", zap.String("id", cmd.ID), zap.Error(err))
		return cmd, false, fmt.Errorf("%w: %w", ErrDispatchFailure, err)
	}
	return cmd, true, nil
}

func (st *Store) commandLocked() robot.Command {
	cmd := robot.Command{
		ID:   uuid.New().String(),
		Mode: st.s.Mode,
	}
	switch st.s.Mode {
	case robot.ModeTCP:
		cmd.Pose = st.s.TargetPose
		cmd.Speed = st.motion.LinearSpeed
		cmd.Acceleration = st.motion.LinearAcceleration
	default:
		cmd.Joints = st.s.TargetJoints
		cmd.Speed = st.motion.JointSpeed
		cmd.Acceleration = st.motion.JointAcceleration
	}
	return cmd
}

// EmergencyStop forces the store out of the moving state. The next snapshot
// recomputes the dirty flag against whatever actual state it carries.
func (st *Store) EmergencyStop() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.stopLocked()
	st.logger.Warn("emergency stop")
}

func (st *Store) stopLocked() {
	st.s.Moving = false
	st.resync = true
}

func (st *Store) jointsMatch(a, b robot.JointVector) bool {
	return a.Equivalent(b, st.jointTol)
}

func (st *Store) posesMatch(a, b pose.Pose) bool {
	return pose.Equivalent(a, b, st.poseTol)
}
