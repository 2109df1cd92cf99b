package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gwillem/armteleop/pkg/pose"
)

// DefaultJournalFile is where operator actions are logged unless configured.
const DefaultJournalFile = "armteleop.db"

// Backend selects how the core talks to the arm.
type Backend string

const (
	BackendUR      Backend = "ur"
	BackendFeetech Backend = "feetech"
	BackendSim     Backend = "sim"
)

// Config holds the teleoperation configuration.
type Config struct {
	Backend   Backend      `json:"backend"`
	UR        URConfig     `json:"ur,omitempty"`
	Arm       ArmConfig    `json:"arm,omitempty"`
	Joints    JointTable   `json:"joints"`
	Tolerance Tolerance    `json:"tolerance"`
	Motion    MotionConfig `json:"motion"`
	Mode      ControlMode  `json:"control_mode"`
	Hz        int          `json:"hz"`
	Journal   string       `json:"journal,omitempty"`
}

// URConfig holds the network endpoints of a UR controller.
type URConfig struct {
	Host          string `json:"host"`
	ScriptPort    int    `json:"script_port"`
	DashboardPort int    `json:"dashboard_port"`
	RealtimePort  int    `json:"realtime_port"`
}

// ArmConfig holds configuration for a serial servo arm.
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// Tolerance holds the equivalence tolerances in operator units.
type Tolerance struct {
	PositionM   float64 `json:"position_m"`
	RotationDeg float64 `json:"rotation_deg"`
	JointDeg    float64 `json:"joint_deg"`
}

// Pose converts the tolerance to pose algebra units.
func (t Tolerance) Pose() pose.Tolerance {
	return pose.Tolerance{
		Position: t.PositionM,
		Rotation: t.RotationDeg * math.Pi / 180,
	}
}

// MotionConfig holds speed and acceleration for committed motions.
type MotionConfig struct {
	JointSpeed         float64 `json:"joint_speed"`
	JointAcceleration  float64 `json:"joint_acceleration"`
	LinearSpeed        float64 `json:"linear_speed"`
	LinearAcceleration float64 `json:"linear_acceleration"`
}

// DefaultConfig returns a simulator configuration with default tolerances.
func DefaultConfig() *Config {
	cfg := &Config{Backend: BackendSim}
	return cfg.WithDefaults()
}

// WithDefaults fills unset fields with defaults and returns c.
func (c *Config) WithDefaults() *Config {
	if c.Backend == "" {
		c.Backend = BackendSim
	}
	if c.UR.ScriptPort == 0 {
		c.UR.ScriptPort = 30002
	}
	if c.UR.DashboardPort == 0 {
		c.UR.DashboardPort = 29999
	}
	if c.UR.RealtimePort == 0 {
		c.UR.RealtimePort = 30003
	}
	if len(c.Joints) == 0 {
		c.Joints = DefaultJoints()
	}
	if c.Tolerance.PositionM == 0 {
		c.Tolerance.PositionM = pose.DefaultTolerance.Position
	}
	if c.Tolerance.RotationDeg == 0 {
		c.Tolerance.RotationDeg = 0.4
	}
	if c.Tolerance.JointDeg == 0 {
		c.Tolerance.JointDeg = DefaultJointTolerance
	}
	if c.Motion.JointSpeed == 0 {
		c.Motion.JointSpeed = 0.5
	}
	if c.Motion.JointAcceleration == 0 {
		c.Motion.JointAcceleration = 0.5
	}
	if c.Motion.LinearSpeed == 0 {
		c.Motion.LinearSpeed = 0.1
	}
	if c.Motion.LinearAcceleration == 0 {
		c.Motion.LinearAcceleration = 0.5
	}
	if c.Mode == "" {
		c.Mode = ModeJoint
	}
	if c.Hz <= 0 {
		c.Hz = 10
	}
	if c.Journal == "" {
		c.Journal = DefaultJournalFile
	}
	return c
}

// Period returns the snapshot poll interval.
func (c *Config) Period() time.Duration {
	if c.Hz <= 0 {
		return 100 * time.Millisecond
	}
	return time.Second / time.Duration(c.Hz)
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendUR:
		if c.UR.Host == "" {
			errs = append(errs, errors.New("ur backend needs a host"))
		}
	case BackendFeetech:
		if c.Arm.Port == "" {
			errs = append(errs, errors.New("feetech backend needs a serial port"))
		}
		if !c.Arm.IsCalibrated() {
			errs = append(errs, errors.New("feetech arm is not calibrated"))
		}
	case BackendSim:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Mode != ModeJoint && c.Mode != ModeTCP {
		errs = append(errs, fmt.Errorf("unknown control mode %q", c.Mode))
	}
	if err := c.Joints.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("joints: %w", err))
	}
	if c.Tolerance.PositionM < 0 || c.Tolerance.RotationDeg < 0 || c.Tolerance.JointDeg < 0 {
		errs = append(errs, errors.New("tolerances must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfigFrom loads configuration from a specific file and fills in defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.WithDefaults(), nil
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if a config file exists at path
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
