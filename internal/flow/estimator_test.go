package flow

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corner is a sharp bright quadrant whose corner sits on the tracked pixel.
func corner(x, y int) uint8 {
	if x >= 8 && y >= 8 {
		return 200
	}
	return 40
}

func shiftRight(f func(x, y int) uint8) func(x, y int) uint8 {
	return func(x, y int) uint8 { return f(x-1, y) }
}

func randomSample(rng *rand.Rand, n int) Sample {
	return GenerateSample(n, func(x, y int) uint8 { return uint8(rng.Intn(256)) })
}

func TestEstimator_BoundaryRejection(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(DefaultConfig())
	s := FilledSample(DefaultSize, 0)

	tests := []struct {
		at     Coordinate
		reject bool
	}{
		{Coordinate{1, 1}, true},
		{Coordinate{0, 8}, true},
		{Coordinate{8, 1}, true},
		{Coordinate{2, 2}, false},
		{Coordinate{8, 8}, false},
		{Coordinate{13, 13}, false},
		{Coordinate{14, 8}, true},
		{Coordinate{8, 14}, true},
		{Coordinate{-1, 8}, true},
	}
	for _, tt := range tests {
		_, err := est.Estimate(s, s, tt.at)
		if tt.reject {
			assert.ErrorIs(t, err, ErrOutOfBounds, "coordinate %v", tt.at)
		} else {
			assert.NoError(t, err, "coordinate %v", tt.at)
		}
	}
}

func TestEstimator_CentralMarginIncludesDifferenceTap(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(Config{Radius: 1, Gradient: Central})
	s := FilledSample(DefaultSize, 0)

	assert.Equal(t, 2, est.Margin())
	_, err := est.Estimate(s, s, Coordinate{1, 1})
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = est.Estimate(s, s, Coordinate{2, 2})
	assert.NoError(t, err)
	_, err = est.Estimate(s, s, Coordinate{13, 13})
	assert.NoError(t, err)
	_, err = est.Estimate(s, s, Coordinate{14, 14})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestEstimator_CentralDifferentiatesPreviousFrame(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(Config{Radius: 1, Gradient: Central})
	textured := GenerateSample(DefaultSize, corner)
	flat := FilledSample(DefaultSize, 40)

	sol, err := est.Solve(textured, flat, Coordinate{8, 8})
	require.NoError(t, err)
	assert.False(t, sol.Singular)
	assert.Positive(t, sol.Det)

	// Texture only in the next frame leaves the spatial gradients at zero.
	sol, err = est.Solve(flat, textured, Coordinate{8, 8})
	require.NoError(t, err)
	assert.True(t, sol.Singular)
	assert.Zero(t, sol.Tensor.At(0, 0))
	assert.Zero(t, sol.Tensor.At(1, 1))

	// The four-tap scheme averages both frames, so either order has texture.
	sol, err = MustNewEstimator(DefaultConfig()).Solve(flat, textured, Coordinate{8, 8})
	require.NoError(t, err)
	assert.False(t, sol.Singular)
}

func TestEstimator_DimensionMismatch(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(DefaultConfig())

	_, err := est.Estimate(FilledSample(16, 1), FilledSample(12, 1), Coordinate{5, 5})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = est.Estimate(Sample{}, Sample{}, Coordinate{5, 5})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEstimator_TensorSymmetry(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))

	for _, cfg := range []Config{DefaultConfig(), {Radius: 1, Gradient: Central}, {Radius: 1, Gradient: FourTap}} {
		est := MustNewEstimator(cfg)
		for i := 0; i < 200; i++ {
			prev, next := randomSample(rng, DefaultSize), randomSample(rng, DefaultSize)
			sol, err := est.Solve(prev, next, Center(DefaultSize))
			require.NoError(t, err)
			assert.Equal(t, sol.Tensor.At(0, 1), sol.Tensor.At(1, 0))
			assert.Equal(t, sol.Tensor.At(0, 0)*sol.Tensor.At(1, 1)-sol.Tensor.At(0, 1)*sol.Tensor.At(0, 1), sol.Det)
		}
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	est := MustNewEstimator(DefaultConfig())

	for i := 0; i < 50; i++ {
		prev, next := randomSample(rng, DefaultSize), randomSample(rng, DefaultSize)
		first, err := est.Estimate(prev, next, Coordinate{8, 8})
		require.NoError(t, err)
		second, err := est.Estimate(prev, next, Coordinate{8, 8})
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestEstimator_SingularWindow(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{DefaultConfig(), {Radius: 1, Gradient: Central}} {
		est := MustNewEstimator(cfg)

		// flat frames with different brightness: It != 0 but no gradient
		sol, err := est.Solve(FilledSample(16, 10), FilledSample(16, 90), Coordinate{8, 8})
		require.NoError(t, err)
		assert.True(t, sol.Singular)
		assert.Equal(t, Vector{}, sol.Flow)
		assert.Zero(t, sol.Det)
	}
}

func TestEstimator_SingularOneDimensionalEdge(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(DefaultConfig())
	edge := func(x, y int) uint8 {
		if x >= 8 {
			return 200
		}
		return 40
	}

	sol, err := est.Solve(GenerateSample(16, edge), GenerateSample(16, shiftRight(edge)), Coordinate{8, 8})
	require.NoError(t, err)
	assert.True(t, sol.Singular, "a pure vertical edge has no vertical gradient")
	assert.Equal(t, Vector{}, sol.Flow)
}

func TestEstimator_NoMotion(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(DefaultConfig())

	flat := FilledSample(16, 0)
	v, err := est.Estimate(flat, flat, Coordinate{8, 8})
	require.NoError(t, err)
	assert.Equal(t, Vector{U: 0, V: 0}, v)

	textured := GenerateSample(16, corner)
	v, err = est.Estimate(textured, textured, Coordinate{8, 8})
	require.NoError(t, err)
	assert.Zero(t, v.U)
	assert.Zero(t, v.V)
}

func TestEstimator_RightShift(t *testing.T) {
	t.Parallel()
	est := MustNewEstimator(DefaultConfig())

	prev := GenerateSample(16, corner)
	next := GenerateSample(16, shiftRight(corner))

	v, err := est.Estimate(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	assert.Greater(t, v.U, 0.0)
	assert.InDelta(t, 1.0, v.U, 0.05)
	assert.InDelta(t, 0.0, v.V, 0.05)
}

func TestEstimator_RightShiftSmoothBowl(t *testing.T) {
	t.Parallel()
	bowl := func(x, y int) uint8 {
		return uint8(min(255, 3*(x-8)*(x-8)+2*(y-8)*(y-8)+20))
	}
	prev := GenerateSample(16, bowl)
	next := GenerateSample(16, shiftRight(bowl))

	v, err := MustNewEstimator(DefaultConfig()).Estimate(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v.U, 1e-9)
	assert.InDelta(t, 0.0, v.V, 1e-9)

	// The central scheme does not halve its differences, so it reports the
	// same motion at half scale.
	v, err = MustNewEstimator(Config{Radius: 1, Gradient: Central}).Estimate(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, v.U, 1e-9)
	assert.InDelta(t, 0.0, v.V, 1e-9)
}

func TestEstimator_DownShift(t *testing.T) {
	t.Parallel()
	prev := GenerateSample(16, corner)
	next := GenerateSample(16, func(x, y int) uint8 { return corner(x, y-1) })

	v, err := MustNewEstimator(DefaultConfig()).Estimate(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v.U, 0.05)
	assert.InDelta(t, 1.0, v.V, 0.05)
}

func TestEstimator_Epsilon(t *testing.T) {
	t.Parallel()
	prev := GenerateSample(16, corner)
	next := GenerateSample(16, shiftRight(corner))

	strict := MustNewEstimator(DefaultConfig())
	sol, err := strict.Solve(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	require.False(t, sol.Singular)

	loose := MustNewEstimator(Config{Radius: 2, Gradient: FourTap, Epsilon: sol.Det * 2})
	sol, err = loose.Solve(prev, next, Coordinate{8, 8})
	require.NoError(t, err)
	assert.True(t, sol.Singular)
	assert.Equal(t, Vector{}, sol.Flow)
}

func TestNewEstimator_InvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := NewEstimator(Config{Radius: 0})
	assert.Error(t, err)
	_, err = NewEstimator(Config{Radius: 2, Gradient: Gradient(9)})
	assert.Error(t, err)
	_, err = NewEstimator(Config{Radius: 2, Epsilon: -1})
	assert.Error(t, err)
}

func TestParseGradient(t *testing.T) {
	t.Parallel()
	g, err := ParseGradient("Central")
	require.NoError(t, err)
	assert.Equal(t, Central, g)

	g, err = ParseGradient("")
	require.NoError(t, err)
	assert.Equal(t, FourTap, g)
	assert.Equal(t, "fourtap", g.String())

	_, err = ParseGradient("sobel")
	assert.Error(t, err)
}
