// Package urscript drives a Universal Robots controller over its TCP
// interfaces: URScript lines on the secondary port, the dashboard server
// for program control, and the realtime stream for state.
package urscript

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// StopDeceleration is the joint deceleration used by stopj, in rad/s².
const StopDeceleration = 10

// MoveJ returns a movej line. Joint angles are given in degrees.
func MoveJ(joints robot.JointVector, acceleration, speed float64) string {
	q := make([]string, len(joints))
	for i, deg := range joints {
		q[i] = num(deg * math.Pi / 180)
	}
	return fmt.Sprintf("movej([%s], a=%s, v=%s)", strings.Join(q, ","), num(acceleration), num(speed))
}

// MoveL returns a movel line to p in the base frame.
func MoveL(p pose.Pose, acceleration, speed float64) string {
	a := p.Array()
	v := make([]string, len(a))
	for i, x := range a {
		v[i] = num(x)
	}
	return fmt.Sprintf("movel(p[%s], a=%s, v=%s)", strings.Join(v, ","), num(acceleration), num(speed))
}

// StopJ returns a stopj line.
func StopJ() string {
	return fmt.Sprintf("stopj(%d)", StopDeceleration)
}

// SpeedSlider returns a set_speed_slider_fraction line, clamping fraction
// to [0, 1].
func SpeedSlider(fraction float64) string {
	fraction = math.Max(0, math.Min(1, fraction))
	return fmt.Sprintf("set_speed_slider_fraction(%s)", num(fraction))
}

// Script renders cmd as a single URScript line.
func Script(cmd robot.Command) (string, error) {
	switch cmd.Mode {
	case robot.ModeJoint:
		if !cmd.Joints.Valid() {
			return "", fmt.Errorf("invalid joints %v", cmd.Joints)
		}
		return MoveJ(cmd.Joints, cmd.Acceleration, cmd.Speed), nil
	case robot.ModeTCP:
		if !cmd.Pose.Valid() {
			return "", fmt.Errorf("invalid pose %v", cmd.Pose)
		}
		return MoveL(cmd.Pose, cmd.Acceleration, cmd.Speed), nil
	}
	return "", fmt.Errorf("unknown control mode %q", cmd.Mode)
}

func num(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
