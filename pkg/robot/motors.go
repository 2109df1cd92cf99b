// Package robot describes the 6-axis arm: joint metadata, joint vectors,
// state snapshots, motion commands and the servo-bus arm adapter.
package robot

import "fmt"

// NumJoints is the number of articulated axes.
const NumJoints = 6

// JointName identifies a joint in the arm.
type JointName string

// Joint names, matching joint IDs 1-6.
const (
	Base     JointName = "base"
	Shoulder JointName = "shoulder"
	Elbow    JointName = "elbow"
	Wrist1   JointName = "wrist1"
	Wrist2   JointName = "wrist2"
	Wrist3   JointName = "wrist3"
)

// AllJoints returns all joint names in order (matching joint IDs 1-6).
func AllJoints() []JointName {
	return []JointName{
		Base,
		Shoulder,
		Elbow,
		Wrist1,
		Wrist2,
		Wrist3,
	}
}

// JointMetadata is the static description of one axis.
type JointMetadata struct {
	ID   int       `json:"id"`
	Name JointName `json:"name"`
	Min  float64   `json:"min"`  // degrees
	Max  float64   `json:"max"`  // degrees
	Step float64   `json:"step"` // default jog increment, degrees
}

// Clamp limits angle to [Min, Max].
func (m JointMetadata) Clamp(angle float64) float64 {
	if angle < m.Min {
		return m.Min
	}
	if angle > m.Max {
		return m.Max
	}
	return angle
}

// JointTable holds metadata for every joint, ordered by ID.
type JointTable []JointMetadata

// DefaultJoints returns metadata for a UR-style arm: ±360° on every joint
// and a 1° jog step.
func DefaultJoints() JointTable {
	table := make(JointTable, 0, NumJoints)
	for i, name := range AllJoints() {
		table = append(table, JointMetadata{
			ID:   i + 1,
			Name: name,
			Min:  -360,
			Max:  360,
			Step: 1,
		})
	}
	return table
}

// ByID returns the metadata for joint id.
func (t JointTable) ByID(id int) (JointMetadata, bool) {
	for _, m := range t {
		if m.ID == id {
			return m, true
		}
	}
	return JointMetadata{}, false
}

// SetStep overrides the jog increment of joint id.
func (t JointTable) SetStep(id int, step float64) error {
	if step <= 0 {
		return fmt.Errorf("step must be positive, got %g", step)
	}
	for i := range t {
		if t[i].ID == id {
			t[i].Step = step
			return nil
		}
	}
	return fmt.Errorf("unknown joint %d", id)
}

// Validate checks that the table describes joints 1-6 with sane bounds.
func (t JointTable) Validate() error {
	if len(t) != NumJoints {
		return fmt.Errorf("expected %d joints, got %d", NumJoints, len(t))
	}
	for i, m := range t {
		if m.ID != i+1 {
			return fmt.Errorf("joint %d has id %d", i+1, m.ID)
		}
		if m.Min >= m.Max {
			return fmt.Errorf("joint %d: min %g >= max %g", m.ID, m.Min, m.Max)
		}
		if m.Step <= 0 {
			return fmt.Errorf("joint %d: step must be positive", m.ID)
		}
	}
	return nil
}
