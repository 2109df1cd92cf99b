// Package armteleop is the control-state core for teleoperating a 6-axis
// robot arm from a terminal.
//
// The operator edits a target (joint angles or a tool pose) while the arm
// reports its actual state. The target is only sent to the arm on apply, and
// motions are detected as finished when the arm's reported state matches the
// target within tolerance.
//
// # Installation
//
//	go install github.com/gwillem/armteleop/cmd/armteleop@latest
//
// # Usage
//
// Pick a backend (UR controller, serial servo arm or simulator):
//
//	armteleop setup
//
// Then start teleoperation:
//
//	armteleop teleoperate
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armteleop: CLI with setup, teleoperate, info and journal commands
//   - pkg/pose: Pose algebra (compose, invert, tolerant equivalence)
//   - pkg/robot: Joint metadata, snapshots, configuration and the servo arm
//   - pkg/teleop: Dual-state store, reconciliation, command builder, controller
//   - pkg/urscript: URScript dispatch and realtime state for UR controllers
//   - pkg/sim: Simulated arm with UR5 forward kinematics
//   - pkg/journal: SQLite log of operator actions
package armteleop
