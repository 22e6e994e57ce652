// Package series turns per-frame flow vectors into magnitude and angle
// series and prepares pairs of series for element-wise comparison.
package series

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

// ErrEmpty is returned when a comparison has nothing to compare.
var ErrEmpty = errors.New("empty series")

// FlowSample is one flow estimate tagged with the frame that produced it.
type FlowSample struct {
	Frame int     `json:"frame"`
	U     float64 `json:"u"`
	V     float64 `json:"v"`
}

// NewFlowSample tags v with its frame index.
func NewFlowSample(frame int, v flow.Vector) FlowSample {
	return FlowSample{Frame: frame, U: v.U, V: v.V}
}

// Vector returns the flow component of s.
func (s FlowSample) Vector() flow.Vector { return flow.Vector{U: s.U, V: s.V} }

// Series is a scalar value per frame. Frames and Values have equal length.
type Series struct {
	Frames []int
	Values []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Values) }

// Truncate returns the first n points of s. It shares storage with s.
func (s Series) Truncate(n int) Series {
	if n >= s.Len() {
		return s
	}
	return Series{Frames: s.Frames[:n], Values: s.Values[:n]}
}

// Magnitude is the euclidean length of v.
func Magnitude(v flow.Vector) float64 { return math.Hypot(v.U, v.V) }

// Angle is the direction of v in radians, in [0, 2π).
func Angle(v flow.Vector) float64 {
	a := math.Atan2(v.V, v.U)
	if a < 0 {
		a += 2 * math.Pi
	}
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// Polar splits samples into magnitude and angle series. Samples are
// ordered by frame first; the input is not modified.
func Polar(samples []FlowSample) (magnitude, angle Series) {
	ordered := make([]FlowSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Frame < ordered[j].Frame })

	magnitude = Series{Frames: make([]int, len(ordered)), Values: make([]float64, len(ordered))}
	angle = Series{Frames: make([]int, len(ordered)), Values: make([]float64, len(ordered))}
	for i, s := range ordered {
		magnitude.Frames[i], angle.Frames[i] = s.Frame, s.Frame
		magnitude.Values[i] = Magnitude(s.Vector())
		angle.Values[i] = Angle(s.Vector())
	}
	return magnitude, angle
}

// MovingAverage returns the mean of every full window of w consecutive
// values. The result has len(data)-w+1 points and is empty when data is
// shorter than w.
func MovingAverage(data []float64, w int) ([]float64, error) {
	if w <= 0 {
		return nil, fmt.Errorf("invalid moving average window %d", w)
	}
	if len(data) < w {
		return []float64{}, nil
	}
	out := make([]float64, len(data)-w+1)
	var sum float64
	for i, x := range data {
		sum += x
		if i >= w {
			sum -= data[i-w]
		}
		if i >= w-1 {
			out[i-w+1] = sum / float64(w)
		}
	}
	return out, nil
}

// MedianFilter replaces every value with the median of the w values
// around it, [i-w/2, i+w-w/2-1], mirroring the data at both ends
// (d c b a | a b c d | d c b a). For even w the upper median is used.
// The output has the same length as data.
func MedianFilter(data []float64, w int) ([]float64, error) {
	if w <= 0 {
		return nil, fmt.Errorf("invalid median window %d", w)
	}
	n := len(data)
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	window := make([]float64, w)
	for i := range data {
		for k := range window {
			window[k] = data[reflect(i-w/2+k, n)]
		}
		sort.Float64s(window)
		out[i] = window[w/2]
	}
	return out, nil
}

func reflect(i, n int) int {
	p := 2 * n
	i %= p
	if i < 0 {
		i += p
	}
	if i >= n {
		i = p - 1 - i
	}
	return i
}
