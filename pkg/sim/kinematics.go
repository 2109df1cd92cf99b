package sim

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/gwillem/armteleop/pkg/pose"
	"github.com/gwillem/armteleop/pkg/robot"
)

// DH holds Denavit-Hartenberg parameters for a six-joint arm. Lengths are in
// meters, twists in radians.
type DH struct {
	D     [robot.NumJoints]float64
	A     [robot.NumJoints]float64
	Alpha [robot.NumJoints]float64
}

// UR5 is the kinematic model of a UR5 arm.
var UR5 = DH{
	D:     [6]float64{0.089159, 0, 0, 0.10915, 0.09465, 0.0823},
	A:     [6]float64{0, -0.425, -0.39225, 0, 0, 0},
	Alpha: [6]float64{math.Pi / 2, 0, 0, math.Pi / 2, -math.Pi / 2, 0},
}

// Forward returns the tool pose in the base frame for joint angles in degrees.
func (dh DH) Forward(joints robot.JointVector) pose.Pose {
	t := mat.NewDense(4, 4, nil)
	for i := range 4 {
		t.Set(i, i, 1)
	}
	for i, deg := range joints {
		var next mat.Dense
		next.Mul(t, dh.link(i, deg*math.Pi/180))
		t = &next
	}

	return pose.Pose{
		Translation: r3.Vector{X: t.At(0, 3), Y: t.At(1, 3), Z: t.At(2, 3)},
		Rotation:    pose.FromQuat(rotationQuat(t)),
	}
}

func (dh DH) link(i int, theta float64) *mat.Dense {
	ct, st := math.Cos(theta), math.Sin(theta)
	ca, sa := math.Cos(dh.Alpha[i]), math.Sin(dh.Alpha[i])
	return mat.NewDense(4, 4, []float64{
		ct, -st * ca, st * sa, dh.A[i] * ct,
		st, ct * ca, -ct * sa, dh.A[i] * st,
		0, sa, ca, dh.D[i],
		0, 0, 0, 1,
	})
}

// rotationQuat extracts the rotation of a homogeneous transform.
func rotationQuat(m mat.Matrix) quat.Number {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	switch tr := m00 + m11 + m22; {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		return quat.Number{Real: s / 4, Imag: (m21 - m12) / s, Jmag: (m02 - m20) / s, Kmag: (m10 - m01) / s}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		return quat.Number{Real: (m21 - m12) / s, Imag: s / 4, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		return quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: s / 4, Kmag: (m12 + m21) / s}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		return quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: s / 4}
	}
}
