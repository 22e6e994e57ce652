package series

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SmoothOptions sets the filter windows applied before comparison.
// A zero window skips that filter.
type SmoothOptions struct {
	MovingAverage int `json:"moving_average"`
	Median        int `json:"median"`
}

// DefaultSmoothOptions matches the bench charts: a 5-point moving average
// followed by an 8-point median.
func DefaultSmoothOptions() SmoothOptions {
	return SmoothOptions{MovingAverage: 5, Median: 8}
}

// Validate rejects negative windows.
func (o SmoothOptions) Validate() error {
	if o.MovingAverage < 0 {
		return fmt.Errorf("invalid moving average window %d", o.MovingAverage)
	}
	if o.Median < 0 {
		return fmt.Errorf("invalid median window %d", o.Median)
	}
	return nil
}

// Smooth applies the moving average and then the median filter to s. The
// moving average shortens the series; the result keeps the leading frame
// indices.
func Smooth(s Series, opts SmoothOptions) (Series, error) {
	if err := opts.Validate(); err != nil {
		return Series{}, err
	}
	values := s.Values
	var err error
	if opts.MovingAverage > 0 {
		if values, err = MovingAverage(values, opts.MovingAverage); err != nil {
			return Series{}, err
		}
	}
	if opts.Median > 0 {
		if values, err = MedianFilter(values, opts.Median); err != nil {
			return Series{}, err
		}
	}
	frames := make([]int, len(values))
	copy(frames, s.Frames)
	return Series{Frames: frames, Values: values}, nil
}

// Align truncates a and b to the shorter of the two.
func Align(a, b Series) (Series, Series) {
	n := min(a.Len(), b.Len())
	return a.Truncate(n), b.Truncate(n)
}

// Comparison summarizes how closely two aligned series agree.
type Comparison struct {
	N    int     `json:"n"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	// Correlation is NaN when either series is constant.
	Correlation float64 `json:"correlation"`
	MeanA       float64 `json:"mean_a"`
	MeanB       float64 `json:"mean_b"`
}

// Compare aligns a and b and measures their agreement on the common prefix.
func Compare(a, b Series) (Comparison, error) {
	a, b = Align(a, b)
	n := a.Len()
	if n == 0 {
		return Comparison{}, ErrEmpty
	}
	return Comparison{
		N:           n,
		MAE:         floats.Distance(a.Values, b.Values, 1) / float64(n),
		RMSE:        floats.Distance(a.Values, b.Values, 2) / math.Sqrt(float64(n)),
		Correlation: stat.Correlation(a.Values, b.Values, nil),
		MeanA:       stat.Mean(a.Values, nil),
		MeanB:       stat.Mean(b.Values, nil),
	}, nil
}
