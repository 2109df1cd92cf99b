// Package sim provides a simulated six-joint arm that accepts motions and
// reports snapshots, for running the teleoperation core without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// Fallback speeds for commands that carry none.
const (
	defaultJointSpeed  = 0.5 // rad/s
	defaultLinearSpeed = 0.1 // m/s
	rotationSpeed      = 0.5 // rad/s, for pose motions
)

var (
	// ErrDisconnected is returned by Dispatch while the robot is offline.
	ErrDisconnected = errors.New("simulated robot disconnected")
	// ErrSafetyStop is returned by Dispatch while a safety stop is active.
	ErrSafetyStop = errors.New("simulated robot is safety stopped")
)

// Robot is a simulated arm. Every ReadState advances the simulation by one
// tick, so a motion's progress depends on how often the robot is polled.
// Joint motions move every joint toward its goal at the commanded speed and
// derive the pose from forward kinematics. Pose motions interpolate the tool
// pose in its own frame and leave the joint angles where they were.
type Robot struct {
	model  DH
	tick   time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	joints    robot.JointVector
	pose      pose.Pose
	goal      *robot.Command
	slider    float64
	safety    robot.SafetyState
	connected bool
	moves     int
}

// Option configures a Robot.
type Option func(*Robot)

// WithHome sets the starting joint angles.
func WithHome(joints robot.JointVector) Option {
	return func(r *Robot) { r.joints = joints }
}

// WithTick sets the simulated time per ReadState.
func WithTick(d time.Duration) Option {
	return func(r *Robot) { r.tick = d }
}

// WithModel replaces the UR5 kinematic model.
func WithModel(dh DH) Option {
	return func(r *Robot) { r.model = dh }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Robot) { r.logger = l }
}

// New creates a connected simulated robot at rest.
func New(opts ...Option) *Robot {
	r := &Robot{
		model:     UR5,
		tick:      100 * time.Millisecond,
		logger:    zap.NewNop(),
		slider:    1,
		safety:    robot.SafetyNormal,
		connected: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.pose = r.model.Forward(r.joints)
	return r
}

// ReadState advances the simulation one tick and returns the new state.
func (r *Robot) ReadState(context.Context) (robot.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return robot.Snapshot{Time: time.Now()}, nil
	}
	r.advance()

	program := robot.ProgramStopped
	if r.goal != nil {
		program = robot.ProgramRunning
	}
	return robot.Snapshot{
		Joints:       r.joints,
		Pose:         r.pose,
		ToolOffset:   pose.Identity,
		SpeedPercent: r.slider * 100,
		Connected:    true,
		Safety:       r.safety,
		Program:      program,
		Time:         time.Now(),
	}, nil
}

// Dispatch starts a motion, replacing any motion in progress.
func (r *Robot) Dispatch(_ context.Context, cmd robot.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case !r.connected:
		return ErrDisconnected
	case r.safety.Stopped():
		return fmt.Errorf("%w: %s", ErrSafetyStop, r.safety)
	}
	switch cmd.Mode {
	case robot.ModeJoint:
		if !cmd.Joints.Valid() {
			return fmt.Errorf("invalid joints %v", cmd.Joints)
		}
	case robot.ModeTCP:
		if !cmd.Pose.Valid() {
			return fmt.Errorf("invalid pose %v", cmd.Pose)
		}
	default:
		return fmt.Errorf("unknown control mode %q", cmd.Mode)
	}

	r.goal = &cmd
	r.moves++
	r.logger.Debug("motion started", zap.String("id", cmd.ID), zap.String("mode", string(cmd.Mode)))
	return nil
}

// Stop abandons the current motion.
func (r *Robot) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return ErrDisconnected
	}
	r.goal = nil
	return nil
}

// SetSpeed sets the speed slider, clamped to [0, 1].
func (r *Robot) SetSpeed(_ context.Context, fraction float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slider = math.Max(0, math.Min(1, fraction))
	return nil
}

// SetSafety changes the safety state. Stopping states abandon the motion.
func (r *Robot) SetSafety(s robot.SafetyState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.safety = s
	if s.Stopped() {
		r.goal = nil
	}
}

// SetConnected simulates a link loss or recovery.
func (r *Robot) SetConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
}

// Moving reports whether a motion is in progress.
func (r *Robot) Moving() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.goal != nil
}

// Moves returns how many motions were accepted.
func (r *Robot) Moves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.moves
}

func (r *Robot) advance() {
	if r.goal == nil {
		return
	}
	var done bool
	if r.goal.Mode == robot.ModeTCP {
		done = r.advancePose()
	} else {
		done = r.advanceJoints()
	}
	if done {
		r.logger.Debug("motion finished", zap.String("id", r.goal.ID))
		r.goal = nil
	}
}

func (r *Robot) advanceJoints() bool {
	speed := r.goal.Speed
	if speed <= 0 {
		speed = defaultJointSpeed
	}
	step := speed * r.slider * r.tick.Seconds() * 180 / math.Pi

	done := true
	for i, goal := range r.goal.Joints {
		d := goal - r.joints[i]
		if math.Abs(d) <= step {
			r.joints[i] = goal
			continue
		}
		r.joints[i] += math.Copysign(step, d)
		done = false
	}
	r.pose = r.model.Forward(r.joints)
	return done
}

func (r *Robot) advancePose() bool {
	speed := r.goal.Speed
	if speed <= 0 {
		speed = defaultLinearSpeed
	}
	linear := speed * r.slider * r.tick.Seconds()
	angular := rotationSpeed * r.slider * r.tick.Seconds()

	delta := pose.Compose(pose.Invert(r.pose), r.goal.Pose)
	f := 1.0
	if d := delta.Translation.Norm(); d > linear {
		f = linear / d
	}
	if a := delta.Rotation.Norm(); a > angular {
		f = math.Min(f, angular/a)
	}
	if f >= 1 {
		r.pose = r.goal.Pose
		return true
	}
	r.pose = pose.Compose(r.pose, pose.Pose{
		Translation: delta.Translation.Mul(f),
		Rotation:    delta.Rotation.Mul(f),
	})
	return false
}
