package pose

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomPose(rng *rand.Rand) Pose {
	axis := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Normalize()
	angle := (rng.Float64()*2 - 1) * math.Pi
	return Pose{
		Translation: r3.Vector{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		},
		Rotation: axis.Mul(angle),
	}
}

func TestCompose(t *testing.T) {
	quarter := math.Pi / 2

	tests := []struct {
		name string
		p1   Pose
		p2   Pose
		want Pose
	}{
		{
			name: "identity left",
			p1:   Identity,
			p2:   New(0.1, 0.2, 0.3, 0, 0, 0.5),
			want: New(0.1, 0.2, 0.3, 0, 0, 0.5),
		},
		{
			name: "identity right",
			p1:   New(0.1, 0.2, 0.3, 0.4, 0, 0),
			p2:   Identity,
			want: New(0.1, 0.2, 0.3, 0.4, 0, 0),
		},
		{
			name: "translation in rotated frame",
			p1:   New(1, 0, 0, 0, 0, quarter),
			p2:   New(1, 0, 0, 0, 0, 0),
			want: New(1, 1, 0, 0, 0, quarter),
		},
		{
			name: "rotations about the same axis add",
			p1:   New(0, 0, 0, 0.3, 0, 0),
			p2:   New(0, 0, 0, 0.2, 0, 0),
			want: New(0, 0, 0, 0.5, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.p1, tt.p2)
			assert.True(t, Equivalent(got, tt.want, DefaultTolerance), "Compose = %v, want %v", got, tt.want)
		})
	}
}

func TestInvert_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		p := randomPose(rng)
		got := Compose(p, Invert(p))
		require.True(t, Equivalent(got, Identity, DefaultTolerance), "Compose(%v, Invert) = %v", p, got)
		got = Compose(Invert(p), p)
		require.True(t, Equivalent(got, Identity, DefaultTolerance), "Compose(Invert, %v) = %v", p, got)
	}
}

func TestCompose_Associative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		a, b, c := randomPose(rng), randomPose(rng), randomPose(rng)
		left := Compose(Compose(a, b), c)
		right := Compose(a, Compose(b, c))
		require.True(t, Equivalent(left, right, DefaultTolerance), "(ab)c = %v, a(bc) = %v", left, right)
	}
}

func TestEquivalent_ReflexiveSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		a, b := randomPose(rng), randomPose(rng)
		assert.True(t, Equivalent(a, a, DefaultTolerance))
		assert.Equal(t, Equivalent(a, b, DefaultTolerance), Equivalent(b, a, DefaultTolerance))
	}
}

func TestEquivalent_EquivalentRotations(t *testing.T) {
	quarter := math.Pi / 2

	tests := []struct {
		name string
		a    Pose
		b    Pose
	}{
		{"wrapped by 2pi", New(0.2, 0, 0.1, 0, 0, quarter), New(0.2, 0, 0.1, 0, 0, quarter+2*math.Pi)},
		{"opposite axis, complementary angle", New(0.2, 0, 0.1, 0, 0, quarter), New(0.2, 0, 0.1, 0, 0, quarter-2*math.Pi)},
		{"half turn either way", New(0, 0, 0, math.Pi, 0, 0), New(0, 0, 0, -math.Pi, 0, 0)},
		{"tilted axis wrapped", New(0, 0, 0, 0.3, 0.4, 0), New(0, 0, 0, 0.3-0.6*2*math.Pi, 0.4-0.8*2*math.Pi, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Equivalent(tt.a, tt.b, DefaultTolerance))
			assert.True(t, Equivalent(tt.b, tt.a, DefaultTolerance))
		})
	}
}

func TestEquivalent_Tolerance(t *testing.T) {
	deg := math.Pi / 180

	tests := []struct {
		name string
		b    Pose
		want bool
	}{
		{"within position", New(0.0019, -0.0019, 0.001, 0, 0, 0), true},
		{"outside position", New(0.0021, 0, 0, 0, 0, 0), false},
		{"within rotation", New(0, 0, 0, 0, 0.3*deg, 0), true},
		{"outside rotation", New(0, 0, 0, 0, 0.5*deg, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equivalent(Identity, tt.b, DefaultTolerance))
		})
	}
}

func TestToQuat_ZeroRotation(t *testing.T) {
	q := ToQuat(r3.Vector{X: 1e-9})
	assert.Equal(t, 1.0, q.Real)
	assert.Zero(t, q.Imag)

	v := FromQuat(q)
	assert.Equal(t, r3.Vector{}, v)
}

func TestFromQuat_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 200; i++ {
		r := randomPose(rng).Rotation
		back := FromQuat(ToQuat(r))
		assert.InDelta(t, 0, AngularDistance(r, back), 1e-6)
		assert.LessOrEqual(t, back.Norm(), math.Pi+1e-9)
	}
}

func TestRotate(t *testing.T) {
	got := Rotate(r3.Vector{Z: math.Pi / 2}, r3.Vector{X: 1})
	assert.InDelta(t, 0, got.X, 1e-12)
	assert.InDelta(t, 1, got.Y, 1e-12)
	assert.InDelta(t, 0, got.Z, 1e-12)
}

func TestRound(t *testing.T) {
	got := Round(New(0.123456, -0.00004, 1.00006, 0.5, 0, 3.14159265), 4)
	assert.Equal(t, [6]float64{0.1235, 0, 1.0001, 0.5, 0, 3.1416}, got.Array())
}

func TestValid(t *testing.T) {
	assert.True(t, New(1, 2, 3, 0, 0, 0).Valid())
	assert.False(t, New(math.NaN(), 0, 0, 0, 0, 0).Valid())
	assert.False(t, New(0, 0, 0, 0, math.Inf(1), 0).Valid())
}

func TestGetWith(t *testing.T) {
	p := New(1, 2, 3, 4, 5, 6)
	for i, a := range Axes() {
		assert.Equal(t, float64(i+1), p.Get(a), a.String())
	}
	assert.Equal(t, 9.0, p.With(RY, 9).Get(RY))
	assert.Equal(t, p, p.With(Axis(7), 9))
	assert.True(t, RX.IsRotation())
	assert.False(t, Z.IsRotation())
}

func TestUnitDelta(t *testing.T) {
	assert.Equal(t, New(0, 0.01, 0, 0, 0, 0), UnitDelta(Y, 0.01))
	assert.Equal(t, New(0, 0, 0, 0, 0, -0.1), UnitDelta(RZ, -0.1))
}
