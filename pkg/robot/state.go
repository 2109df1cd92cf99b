package robot

import (
	"time"

	"github.com/gwillem/armteleop/pkg/pose"
)

// ControlMode selects which target representation drives a motion.
type ControlMode string

const (
	ModeJoint ControlMode = "joint"
	ModeTCP   ControlMode = "tcp"
)

// SafetyState mirrors the controller safety mode.
type SafetyState int

const (
	SafetyUnknown SafetyState = iota
	SafetyNormal
	SafetyReduced
	SafetyProtectiveStop
	SafetyRecovery
	SafetySafeguardStop
	SafetySystemEmergencyStop
	SafetyRobotEmergencyStop
	SafetyViolation
	SafetyFault
)

// Stopped reports whether the safety state halts motion.
func (s SafetyState) Stopped() bool {
	return s >= SafetyProtectiveStop
}

func (s SafetyState) String() string {
	switch s {
	case SafetyNormal:
		return "normal"
	case SafetyReduced:
		return "reduced"
	case SafetyProtectiveStop:
		return "protective stop"
	case SafetyRecovery:
		return "recovery"
	case SafetySafeguardStop:
		return "safeguard stop"
	case SafetySystemEmergencyStop:
		return "system emergency stop"
	case SafetyRobotEmergencyStop:
		return "robot emergency stop"
	case SafetyViolation:
		return "violation"
	case SafetyFault:
		return "fault"
	}
	return "unknown"
}

// ProgramState mirrors the controller program state.
type ProgramState int

const (
	ProgramUnknown ProgramState = iota
	ProgramStopped
	ProgramRunning
	ProgramPaused
)

func (s ProgramState) String() string {
	switch s {
	case ProgramStopped:
		return "stopped"
	case ProgramRunning:
		return "running"
	case ProgramPaused:
		return "paused"
	}
	return "unknown"
}

// Snapshot is one reading of the actual robot state.
type Snapshot struct {
	Joints       JointVector // degrees
	Pose         pose.Pose   // base frame TCP
	ToolOffset   pose.Pose
	SpeedPercent float64
	Connected    bool
	Safety       SafetyState
	Program      ProgramState
	Time         time.Time
}

// Command is a motion sent to the controller.
type Command struct {
	ID           string
	Mode         ControlMode
	Joints       JointVector // degrees, used in ModeJoint
	Pose         pose.Pose   // used in ModeTCP
	Speed        float64     // rad/s in ModeJoint, m/s in ModeTCP
	Acceleration float64     // rad/s² in ModeJoint, m/s² in ModeTCP
}
