package robot

import (
	"encoding/json"
	"fmt"
	"os"
)

// MotorCalibration holds calibration data for a single servo.
type MotorCalibration struct {
	ID           int `json:"id"`
	DriveMode    int `json:"drive_mode"`
	HomingOffset int `json:"homing_offset"`
	RangeMin     int `json:"range_min"`
	RangeMax     int `json:"range_max"`
}

// Calibration holds calibration data for all servos, keyed by joint name.
type Calibration map[JointName]MotorCalibration

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var raw map[string]MotorCalibration
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}

	cal := make(Calibration, len(raw))
	for name, mc := range raw {
		cal[JointName(name)] = mc
	}

	return cal, nil
}

// Normalize converts a raw servo position to a normalized value in the range [-100, 100].
func (c MotorCalibration) Normalize(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	return (float64(raw-c.RangeMin)/rangeSize)*200 - 100
}

// Denormalize converts a normalized value [-100, 100] to a raw servo position.
func (c MotorCalibration) Denormalize(norm float64) int {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int((norm+100)/200*rangeSize) + c.RangeMin
}

// ToDegrees maps a raw servo position onto the joint's [Min, Max] range.
// The calibrated servo range spans the full joint range.
func (c MotorCalibration) ToDegrees(raw int, m JointMetadata) float64 {
	return m.Min + (c.Normalize(raw)+100)/200*(m.Max-m.Min)
}

// FromDegrees is the inverse of ToDegrees. Angles outside [Min, Max] are clamped.
func (c MotorCalibration) FromDegrees(deg float64, m JointMetadata) int {
	span := m.Max - m.Min
	if span == 0 {
		return c.RangeMin
	}
	return c.Denormalize((m.Clamp(deg)-m.Min)/span*200 - 100)
}

// MotorIDs returns the servo IDs for all joints in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// AllJoints keeps the ordering stable
	for _, name := range AllJoints() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// ByID returns joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (JointName, MotorCalibration, bool) {
	for name, mc := range c {
		if mc.ID == id {
			return name, mc, true
		}
	}
	return "", MotorCalibration{}, false
}
