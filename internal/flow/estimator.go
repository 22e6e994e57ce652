package flow

import (
	"fmt"
	"math"
	"strings"
)

// Gradient selects how spatial and temporal derivatives are sampled.
type Gradient int

const (
	// FourTap evaluates 2×2 kernels on the sub-windows of a (2r+1)² window,
	// averaging both frames. The window itself is the only data read.
	FourTap Gradient = iota
	// Central takes spatial central differences on the previous frame only,
	// plus the per-pixel temporal difference. It reads one pixel beyond the
	// window on each side.
	Central
)

func (g Gradient) String() string {
	switch g {
	case FourTap:
		return "fourtap"
	case Central:
		return "central"
	default:
		return fmt.Sprintf("Gradient(%d)", int(g))
	}
}

// ParseGradient parses "fourtap" or "central".
func ParseGradient(s string) (Gradient, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fourtap", "four-tap":
		return FourTap, nil
	case "central":
		return Central, nil
	default:
		return 0, fmt.Errorf("unknown gradient scheme %q: expected fourtap or central", s)
	}
}

// Config holds the fixed estimator parameters.
type Config struct {
	// Radius is the window half-width r (window is 2r+1 on a side).
	Radius int
	// Gradient selects the derivative scheme.
	Gradient Gradient
	// Epsilon is the determinant magnitude at or below which the system is
	// treated as singular. Zero means only an exact zero is singular.
	Epsilon float64
}

// DefaultConfig returns the 5×5 four-tap configuration.
func DefaultConfig() Config {
	return Config{Radius: 2, Gradient: FourTap}
}

// Solution is the full result of one estimation.
type Solution struct {
	Flow     Vector
	Tensor   StructureTensor
	B        [2]float64
	Det      float64
	Singular bool
}

// Estimator computes Lucas-Kanade flow at a single coordinate. It holds no
// state between calls.
type Estimator struct {
	cfg Config
}

// NewEstimator validates cfg and returns an estimator.
func NewEstimator(cfg Config) (*Estimator, error) {
	if cfg.Radius < 1 {
		return nil, fmt.Errorf("invalid window radius %d: must be at least 1", cfg.Radius)
	}
	if cfg.Gradient != FourTap && cfg.Gradient != Central {
		return nil, fmt.Errorf("invalid gradient scheme %v", cfg.Gradient)
	}
	if cfg.Epsilon < 0 || math.IsNaN(cfg.Epsilon) {
		return nil, fmt.Errorf("invalid determinant epsilon %v", cfg.Epsilon)
	}
	return &Estimator{cfg: cfg}, nil
}

// MustNewEstimator is NewEstimator for configurations known to be valid.
func MustNewEstimator(cfg Config) *Estimator {
	e, err := NewEstimator(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config { return e.cfg }

// Margin is the minimum distance between the coordinate and any sample edge.
func (e *Estimator) Margin() int {
	if e.cfg.Gradient == Central {
		return e.cfg.Radius + 1
	}
	return e.cfg.Radius
}

// Check validates the inputs without computing anything.
func (e *Estimator) Check(prev, next Sample, at Coordinate) error {
	if prev.n == 0 || next.n == 0 {
		return fmt.Errorf("%w: empty sample", ErrDimensionMismatch)
	}
	if prev.n != next.n {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, prev.n, prev.n, next.n, next.n)
	}
	m := e.Margin()
	hi := prev.n - 1 - m
	if at.X < m || at.Y < m || at.X > hi || at.Y > hi {
		return fmt.Errorf("%w: %v needs margin %d in %dx%d sample", ErrOutOfBounds, at, m, prev.n, prev.n)
	}
	return nil
}

// Estimate returns the flow at at. A singular system yields the zero vector
// and no error.
func (e *Estimator) Estimate(prev, next Sample, at Coordinate) (Vector, error) {
	sol, err := e.Solve(prev, next, at)
	if err != nil {
		return Vector{}, err
	}
	return sol.Flow, nil
}

// Solve assembles the structure tensor and solves it by Cramer's rule.
// The temporal gradient is next − prev.
func (e *Estimator) Solve(prev, next Sample, at Coordinate) (Solution, error) {
	if err := e.Check(prev, next, at); err != nil {
		return Solution{}, err
	}

	sol := Solution{Tensor: newStructureTensor()}
	add := func(ix, iy, it float64) {
		sol.Tensor.accumulate(ix, iy)
		sol.B[0] += ix * it
		sol.B[1] += iy * it
	}

	r := e.cfg.Radius
	switch e.cfg.Gradient {
	case FourTap:
		for j := -r; j < r; j++ {
			for i := -r; i < r; i++ {
				add(fourTap(prev, next, at.X+i, at.Y+j))
			}
		}
	case Central:
		for j := -r; j <= r; j++ {
			for i := -r; i <= r; i++ {
				add(central(prev, next, at.X+i, at.Y+j))
			}
		}
	}

	a := sol.Tensor
	sol.Det = a.Det()
	if math.Abs(sol.Det) <= e.cfg.Epsilon {
		sol.Singular = true
		return sol, nil
	}

	b0, b1 := -sol.B[0], -sol.B[1]
	sol.Flow = Vector{
		U: (a.At(1, 1)*b0 - a.At(0, 1)*b1) / sol.Det,
		V: (a.At(0, 0)*b1 - a.At(0, 1)*b0) / sol.Det,
	}
	return sol, nil
}

// fourTap returns Ix, Iy, It for the 2×2 sub-window whose top-left pixel is
// (x, y), averaged across both frames.
func fourTap(prev, next Sample, x, y int) (ix, iy, it float64) {
	p00, p10, p01, p11 := prev.value(x, y), prev.value(x+1, y), prev.value(x, y+1), prev.value(x+1, y+1)
	n00, n10, n01, n11 := next.value(x, y), next.value(x+1, y), next.value(x, y+1), next.value(x+1, y+1)

	ix = 0.25 * ((p10 - p00) + (p11 - p01) + (n10 - n00) + (n11 - n01))
	iy = 0.25 * ((p01 - p00) + (p11 - p10) + (n01 - n00) + (n11 - n10))
	it = 0.25 * ((n00 + n10 + n01 + n11) - (p00 + p10 + p01 + p11))
	return ix, iy, it
}

func central(prev, next Sample, x, y int) (ix, iy, it float64) {
	ix = prev.value(x+1, y) - prev.value(x-1, y)
	iy = prev.value(x, y+1) - prev.value(x, y-1)
	it = next.value(x, y) - prev.value(x, y)
	return ix, iy, it
}
