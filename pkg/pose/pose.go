// Package pose implements the spatial algebra used to move between the robot
// base frame and the tool frame.
//
// A Pose is a translation in meters plus an axis-angle rotation in radians:
// the rotation vector points along the rotation axis and its length is the
// rotation angle. No canonical form is enforced on the rotation, so two poses
// are compared with Equivalent rather than ==.
package pose

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Pose is a 6-DOF position and orientation.
type Pose struct {
	Translation r3.Vector // meters
	Rotation    r3.Vector // axis-angle, radians
}

// Identity is the zero translation, zero rotation pose.
var Identity = Pose{}

// Axis indexes one of the six pose components.
type Axis int

const (
	X Axis = iota
	Y
	Z
	RX
	RY
	RZ
)

// Axes returns all pose axes in [x, y, z, rx, ry, rz] order.
func Axes() []Axis {
	return []Axis{X, Y, Z, RX, RY, RZ}
}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	case RX:
		return "rx"
	case RY:
		return "ry"
	case RZ:
		return "rz"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// IsRotation reports whether the axis is one of rx, ry, rz.
func (a Axis) IsRotation() bool {
	return a >= RX && a <= RZ
}

// Valid reports whether a is one of the six pose axes.
func (a Axis) Valid() bool {
	return a >= X && a <= RZ
}

// New builds a pose from the [x, y, z, rx, ry, rz] components.
func New(x, y, z, rx, ry, rz float64) Pose {
	return Pose{
		Translation: r3.Vector{X: x, Y: y, Z: z},
		Rotation:    r3.Vector{X: rx, Y: ry, Z: rz},
	}
}

// FromArray converts a 6-tuple into a Pose.
func FromArray(a [6]float64) Pose {
	return New(a[0], a[1], a[2], a[3], a[4], a[5])
}

// Array returns the pose as [x, y, z, rx, ry, rz].
func (p Pose) Array() [6]float64 {
	return [6]float64{
		p.Translation.X, p.Translation.Y, p.Translation.Z,
		p.Rotation.X, p.Rotation.Y, p.Rotation.Z,
	}
}

// Get returns the component for axis a. Unknown axes return 0.
func (p Pose) Get(a Axis) float64 {
	if !a.Valid() {
		return 0
	}
	return p.Array()[a]
}

// With returns a copy of p with the component for axis a replaced.
func (p Pose) With(a Axis, v float64) Pose {
	if !a.Valid() {
		return p
	}
	arr := p.Array()
	arr[a] = v
	return FromArray(arr)
}

// Valid reports whether every component is finite.
func (p Pose) Valid() bool {
	for _, v := range p.Array() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	return fmt.Sprintf("p[%.4f, %.4f, %.4f, %.4f, %.4f, %.4f]",
		p.Translation.X, p.Translation.Y, p.Translation.Z,
		p.Rotation.X, p.Rotation.Y, p.Rotation.Z)
}

// Compose applies p2, expressed in the frame of p1, and returns the result in
// p1's parent frame.
func Compose(p1, p2 Pose) Pose {
	q1 := ToQuat(p1.Rotation)
	q2 := ToQuat(p2.Rotation)
	return Pose{
		Translation: p1.Translation.Add(rotate(q1, p2.Translation)),
		Rotation:    FromQuat(mul(q1, q2)),
	}
}

// Invert returns the pose q such that Compose(p, q) is the identity.
func Invert(p Pose) Pose {
	qi := conj(ToQuat(p.Rotation))
	return Pose{
		Translation: rotate(qi, p.Translation).Mul(-1),
		Rotation:    FromQuat(qi),
	}
}

// Rotate rotates v by the axis-angle rotation r.
func Rotate(r, v r3.Vector) r3.Vector {
	return rotate(ToQuat(r), v)
}

// Tolerance bounds how far apart two poses may be and still be equivalent.
type Tolerance struct {
	Position float64 `json:"position"` // max per-axis translation difference, meters
	Rotation float64 `json:"rotation"` // max angular distance, radians
}

// DefaultTolerance is 2 mm and roughly 0.4 degrees.
var DefaultTolerance = Tolerance{
	Position: 0.002,
	Rotation: 0.4 * math.Pi / 180,
}

// Equivalent reports whether a and b describe the same pose within tol.
// Rotations are compared as unit quaternions, so opposite-axis and 2π
// wraparound representations of one rotation are equal.
func Equivalent(a, b Pose, tol Tolerance) bool {
	d := a.Translation.Sub(b.Translation)
	if math.Abs(d.X) > tol.Position || math.Abs(d.Y) > tol.Position || math.Abs(d.Z) > tol.Position {
		return false
	}
	return AngularDistance(a.Rotation, b.Rotation) <= tol.Rotation
}

// AngularDistance returns the angle in radians of the rotation taking a to b.
func AngularDistance(a, b r3.Vector) float64 {
	return 2 * math.Acos(clamp(math.Abs(dot(ToQuat(a), ToQuat(b)))))
}

// Distance returns the largest per-axis translation difference and the
// angular distance between a and b.
func Distance(a, b Pose) (position, rotation float64) {
	d := a.Translation.Sub(b.Translation)
	position = math.Max(math.Abs(d.X), math.Max(math.Abs(d.Y), math.Abs(d.Z)))
	return position, AngularDistance(a.Rotation, b.Rotation)
}

// UnitDelta returns a pose that moves step along (or about) a single axis.
func UnitDelta(a Axis, step float64) Pose {
	return Identity.With(a, step)
}

// Round rounds every component of p to the given number of decimal places.
func Round(p Pose, places int) Pose {
	scale := math.Pow(10, float64(places))
	arr := p.Array()
	for i, v := range arr {
		arr[i] = math.Round(v*scale) / scale
	}
	return FromArray(arr)
}
