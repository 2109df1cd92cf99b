package pose

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// zeroAngle is the rotation magnitude below which a rotation is the identity.
const zeroAngle = 1e-6

var identityQuat = quat.Number{Real: 1}

// ToQuat converts an axis-angle vector to a unit quaternion.
func ToQuat(r r3.Vector) quat.Number {
	theta := r.Norm()
	if theta < zeroAngle {
		return identityQuat
	}
	axis := r.Mul(1 / theta)
	s := math.Sin(theta / 2)
	return quat.Number{
		Real: math.Cos(theta / 2),
		Imag: axis.X * s,
		Jmag: axis.Y * s,
		Kmag: axis.Z * s,
	}
}

// FromQuat converts a quaternion to an axis-angle vector with angle in [0, π].
// The quaternion does not need to be normalized.
func FromQuat(q quat.Number) r3.Vector {
	n := quat.Abs(q)
	if n < zeroAngle {
		return r3.Vector{}
	}
	q = quat.Scale(1/n, q)
	// q and -q are the same rotation; pick the shorter way round.
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	w := clamp(q.Real)
	s := math.Sqrt(1 - w*w)
	if s < zeroAngle {
		return r3.Vector{}
	}
	theta := 2 * math.Acos(w)
	return r3.Vector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}.Mul(theta / s)
}

func mul(a, b quat.Number) quat.Number {
	return quat.Mul(a, b)
}

func conj(q quat.Number) quat.Number {
	return quat.Conj(q)
}

func dot(a, b quat.Number) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// rotate applies the unit quaternion q to v.
func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// clamp bounds x to [-1, 1] so acos and asin never see overshoot.
func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
