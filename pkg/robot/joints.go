package robot

import "math"

// DefaultJointTolerance is the per-joint equivalence tolerance in degrees.
const DefaultJointTolerance = 0.1

// JointVector holds one angle per joint in degrees. Index 0 is joint ID 1.
type JointVector [NumJoints]float64

// Get returns the angle of joint id (1-based).
func (v JointVector) Get(id int) float64 {
	return v[id-1]
}

// With returns a copy of v with joint id set to angle.
func (v JointVector) With(id int, angle float64) JointVector {
	v[id-1] = angle
	return v
}

// Valid reports whether every angle is finite.
func (v JointVector) Valid() bool {
	for _, a := range v {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return false
		}
	}
	return true
}

// Equivalent reports whether every joint of v is within tol degrees of o.
func (v JointVector) Equivalent(o JointVector, tol float64) bool {
	return JointsEquivalent(v[:], o[:], tol)
}

// JointsEquivalent reports whether a and b have the same length and every
// pairwise difference is at most tol.
func JointsEquivalent(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// Delta returns target - actual per joint.
func Delta(target, actual JointVector) JointVector {
	var d JointVector
	for i := range d {
		d[i] = target[i] - actual[i]
	}
	return d
}

// MaxAbs returns the largest absolute component of v.
func (v JointVector) MaxAbs() float64 {
	var m float64
	for _, a := range v {
		m = math.Max(m, math.Abs(a))
	}
	return m
}
