package series

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

func TestAngle(t *testing.T) {
	tests := []struct {
		name string
		v    flow.Vector
		want float64
	}{
		{"right", flow.Vector{U: 1}, 0},
		{"down", flow.Vector{V: 1}, math.Pi / 2},
		{"left", flow.Vector{U: -1}, math.Pi},
		{"up", flow.Vector{V: -1}, 3 * math.Pi / 2},
		{"zero", flow.Vector{}, 0},
		{"fourth quadrant", flow.Vector{U: 1, V: -1}, 7 * math.Pi / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.v)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.Less(t, got, 2*math.Pi)
		})
	}
}

func TestPolar_OrdersByFrame(t *testing.T) {
	samples := []FlowSample{
		{Frame: 2, U: 0, V: 2},
		{Frame: 0, U: 3, V: 4},
		{Frame: 1, U: -1, V: 0},
	}
	mag, ang := Polar(samples)

	assert.Equal(t, []int{0, 1, 2}, mag.Frames)
	assert.Equal(t, []int{0, 1, 2}, ang.Frames)
	assert.InDeltaSlice(t, []float64{5, 1, 2}, mag.Values, 1e-12)
	assert.InDeltaSlice(t, []float64{math.Atan2(4, 3), math.Pi, math.Pi / 2}, ang.Values, 1e-12)
	assert.Equal(t, 2, samples[0].Frame, "input must not be reordered")
}

func TestMovingAverage(t *testing.T) {
	got, err := MovingAverage([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 4, 5}, got)

	got, err = MovingAverage([]float64{1, 2}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = MovingAverage([]float64{1}, 0)
	assert.Error(t, err)
}

func TestMedianFilter(t *testing.T) {
	tests := []struct {
		name string
		data []float64
		w    int
		want []float64
	}{
		{"odd window", []float64{1, 5, 2, 8, 3}, 3, []float64{1, 2, 5, 3, 3}},
		{"even window takes upper median", []float64{4, 1, 3, 2}, 4, []float64{4, 4, 3, 2}},
		{"window wider than data", []float64{1, 2}, 8, []float64{2, 2}},
		{"single", []float64{7}, 8, []float64{7}},
		{"empty", []float64{}, 8, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MedianFilter(tt.data, tt.w)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("MedianFilter() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err := MedianFilter([]float64{1}, -1)
	assert.Error(t, err)
}

func TestReflect(t *testing.T) {
	// d c b a | a b c d | d c b a
	want := map[int]int{-5: 3, -4: 3, -3: 2, -2: 1, -1: 0, 0: 0, 3: 3, 4: 3, 5: 2, 7: 0, 8: 0}
	for i, w := range want {
		assert.Equal(t, w, reflect(i, 4), "reflect(%d, 4)", i)
	}
}

func ramp(n int) Series {
	s := Series{Frames: make([]int, n), Values: make([]float64, n)}
	for i := range n {
		s.Frames[i] = i
		s.Values[i] = float64(i)
	}
	return s
}

func TestSmooth_Default(t *testing.T) {
	out, err := Smooth(ramp(120), DefaultSmoothOptions())
	require.NoError(t, err)
	require.Equal(t, 116, out.Len())
	assert.Equal(t, 0, out.Frames[0])
	assert.Equal(t, 115, out.Frames[115])
	// Averages of a ramp are a ramp shifted by two; the median keeps the
	// interior of a monotonic series.
	assert.InDelta(t, 50.0, out.Values[48], 1e-12)
}

func TestSmooth_SkipsZeroWindows(t *testing.T) {
	in := ramp(10)
	out, err := Smooth(in, SmoothOptions{})
	require.NoError(t, err)
	assert.Equal(t, in.Values, out.Values)

	_, err = Smooth(in, SmoothOptions{Median: -1})
	assert.Error(t, err)
}

func TestAlign_TruncatesToShorter(t *testing.T) {
	a, b := Align(ramp(120), ramp(95))
	require.Equal(t, 95, a.Len())
	require.Equal(t, 95, b.Len())
	assert.Equal(t, a.Frames, b.Frames)
	assert.Equal(t, 0, a.Frames[0])
	assert.Equal(t, 94, a.Frames[94])
}

func TestCompare(t *testing.T) {
	a := Series{Frames: []int{0, 1, 2}, Values: []float64{1, 2, 3}}
	b := Series{Frames: []int{0, 1, 2, 3}, Values: []float64{2, 4, 6, 8}}

	c, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, 3, c.N)
	assert.InDelta(t, 2.0, c.MAE, 1e-12)
	assert.InDelta(t, math.Sqrt(14.0/3), c.RMSE, 1e-12)
	assert.InDelta(t, 1.0, c.Correlation, 1e-12)
	assert.InDelta(t, 2.0, c.MeanA, 1e-12)
	assert.InDelta(t, 4.0, c.MeanB, 1e-12)
}

func TestCompare_Identical(t *testing.T) {
	c, err := Compare(ramp(20), ramp(20))
	require.NoError(t, err)
	assert.Zero(t, c.MAE)
	assert.Zero(t, c.RMSE)
}

func TestCompare_Empty(t *testing.T) {
	_, err := Compare(ramp(0), ramp(5))
	assert.ErrorIs(t, err, ErrEmpty)
}
