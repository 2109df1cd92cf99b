package teleop

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// Transition names what a snapshot did to the store.
type Transition int

const (
	// TransitionStatus updated connection and status fields only.
	TransitionStatus Transition = iota
	// TransitionGhostFollow copied the snapshot into both actual and target.
	TransitionGhostFollow
	// TransitionDrift updated the actual state and recomputed the dirty flag.
	TransitionDrift
	// TransitionComplete finished a motion.
	TransitionComplete
	// TransitionSafetyStop ended a motion because the controller stopped.
	TransitionSafetyStop
)

func (t Transition) String() string {
	switch t {
	case TransitionStatus:
		return "status"
	case TransitionGhostFollow:
		return "ghost-follow"
	case TransitionDrift:
		return "drift"
	case TransitionComplete:
		return "complete"
	case TransitionSafetyStop:
		return "safety-stop"
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

// distance between target and actual, used for motion progress.
type distance struct {
	joints   float64 // degrees, largest joint
	position float64 // meters, largest axis
	rotation float64 // radians
}

// IngestSnapshot applies an actual-state reading. It is the only way the
// actual state changes. Snapshots with non-finite values are rejected and
// leave the store untouched.
func (st *Store) IngestSnapshot(snap robot.Snapshot) (Transition, error) {
	if !snap.Joints.Valid() || !snap.Pose.Valid() || !snap.ToolOffset.Valid() {
		return TransitionStatus, fmt.Errorf("%w: snapshot joints %v pose %v", ErrInvalidInput, snap.Joints, snap.Pose)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	tr := st.reconcileLocked(snap)
	if tr != TransitionDrift && tr != TransitionStatus {
		st.logger.Debug("snapshot",
			zap.Stringer("transition", tr),
			zap.String("phase", string(st.s.Phase())))
	}
	return tr, nil
}

func (st *Store) reconcileLocked(snap robot.Snapshot) Transition {
	st.s.Connected = snap.Connected
	st.s.SpeedPercent = snap.SpeedPercent
	st.s.ToolOffset = snap.ToolOffset
	st.s.Safety = snap.Safety
	st.s.Program = snap.Program
	st.s.Timestamp = snap.Time

	if !snap.Connected {
		return TransitionStatus
	}

	if st.s.Moving && snap.Safety.Stopped() {
		st.stopLocked()
		st.resync = false
		st.driftLocked(snap)
		st.logger.Warn("motion ended by controller", zap.Stringer("safety", snap.Safety))
		return TransitionSafetyStop
	}

	switch {
	case st.resync:
		st.resync = false
		st.driftLocked(snap)
		return TransitionDrift

	case !st.s.Moving && !st.s.Dirty:
		st.s.ActualJoints, st.s.TargetJoints = snap.Joints, snap.Joints
		st.s.ActualPose, st.s.TargetPose = snap.Pose, snap.Pose
		return TransitionGhostFollow

	case st.s.Moving:
		if st.completeLocked(snap) {
			return TransitionComplete
		}
		st.driftLocked(snap)
		st.s.Progress = st.progressLocked()
		return TransitionDrift
	}

	st.driftLocked(snap)
	return TransitionDrift
}

// completeLocked finishes the motion if the governing representation has
// reached its target. The other representation is snapped to the actual
// value because kinematic drift can leave it slightly off.
func (st *Store) completeLocked(snap robot.Snapshot) bool {
	jointsDone := st.jointsMatch(snap.Joints, st.s.TargetJoints)
	poseDone := st.posesMatch(snap.Pose, st.s.TargetPose)

	governing := jointsDone
	if st.s.Mode == robot.ModeTCP {
		governing = poseDone
	}
	if !governing && !(jointsDone && poseDone) {
		return false
	}

	st.s.ActualJoints = snap.Joints
	st.s.ActualPose = snap.Pose
	if st.s.Mode == robot.ModeTCP {
		st.s.TargetJoints = snap.Joints
	} else {
		st.s.TargetPose = snap.Pose
	}
	st.s.Moving = false
	st.s.Dirty = false
	st.s.Progress = 1
	return true
}

func (st *Store) driftLocked(snap robot.Snapshot) {
	st.s.ActualJoints = snap.Joints
	st.s.ActualPose = snap.Pose
	st.s.Dirty = !st.jointsMatch(st.s.TargetJoints, st.s.ActualJoints) ||
		!st.posesMatch(st.s.TargetPose, st.s.ActualPose)
}

func (st *Store) distanceLocked() distance {
	pos, rot := pose.Distance(st.s.TargetPose, st.s.ActualPose)
	return distance{
		joints:   robot.Delta(st.s.TargetJoints, st.s.ActualJoints).MaxAbs(),
		position: pos,
		rotation: rot,
	}
}

// progressLocked returns the fraction of the commit-time distance covered
// in the governing representation.
func (st *Store) progressLocked() float64 {
	now := st.distanceLocked()
	if st.s.Mode != robot.ModeTCP {
		return fraction(st.start.joints, now.joints)
	}
	p := fraction(st.start.position, now.position)
	r := fraction(st.start.rotation, now.rotation)
	switch {
	case st.start.position == 0:
		return r
	case st.start.rotation == 0:
		return p
	}
	return math.Min(p, r)
}

func fraction(start, remaining float64) float64 {
	if start <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-remaining/start))
}
