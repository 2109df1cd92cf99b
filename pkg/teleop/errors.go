package teleop

import "errors"

var (
	// ErrInvalidInput rejects non-finite joint or pose values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownJoint rejects joint ids outside 1..6.
	ErrUnknownJoint = errors.New("unknown joint")
	// ErrDispatchFailure wraps a dispatcher error after the commit was rolled back.
	ErrDispatchFailure = errors.New("dispatch failed")
	// ErrMoving is returned by operations that are only valid while idle.
	ErrMoving = errors.New("motion in progress")
	// ErrSpeedUnsupported is returned when the dispatcher cannot change speed.
	ErrSpeedUnsupported = errors.New("speed control not supported")
	// ErrProgramUnsupported is returned when the dispatcher cannot run programs.
	ErrProgramUnsupported = errors.New("program control not supported")
	// ErrAlreadyRunning is returned by Start on a running controller.
	ErrAlreadyRunning = errors.New("already running")
)
