package flow

import (
	"bytes"
	"fmt"
)

// DefaultSize is the edge length of the canonical working sample.
const DefaultSize = 16

// Sample is an immutable N×N grayscale frame stored row-major.
type Sample struct {
	n   int
	pix []uint8
}

// NewSample builds an n×n sample from row-major pixels. The pixels are
// copied so later changes to pix do not affect the sample.
func NewSample(n int, pix []uint8) (Sample, error) {
	if n <= 0 {
		return Sample{}, fmt.Errorf("%w: size %d", ErrDimensionMismatch, n)
	}
	if len(pix) != n*n {
		return Sample{}, fmt.Errorf("%w: %d pixels for %dx%d sample", ErrDimensionMismatch, len(pix), n, n)
	}
	cp := make([]uint8, len(pix))
	copy(cp, pix)
	return Sample{n: n, pix: cp}, nil
}

// SampleFromRows builds a sample from a square slice of rows.
func SampleFromRows(rows [][]uint8) (Sample, error) {
	n := len(rows)
	pix := make([]uint8, 0, n*n)
	for y, row := range rows {
		if len(row) != n {
			return Sample{}, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, y, len(row), n)
		}
		pix = append(pix, row...)
	}
	return NewSample(n, pix)
}

// FilledSample returns an n×n sample with every pixel set to v.
func FilledSample(n int, v uint8) Sample {
	pix := make([]uint8, n*n)
	for i := range pix {
		pix[i] = v
	}
	return Sample{n: n, pix: pix}
}

// GenerateSample builds an n×n sample by evaluating f at every (x, y), with
// x the column and y the row.
func GenerateSample(n int, f func(x, y int) uint8) Sample {
	pix := make([]uint8, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			pix[y*n+x] = f(x, y)
		}
	}
	return Sample{n: n, pix: pix}
}

// Size returns the edge length of the sample.
func (s Sample) Size() int { return s.n }

// At returns the intensity at column x, row y.
func (s Sample) At(x, y int) uint8 {
	return s.pix[y*s.n+x]
}

// Pix returns a copy of the row-major pixel data.
func (s Sample) Pix() []uint8 {
	cp := make([]uint8, len(s.pix))
	copy(cp, s.pix)
	return cp
}

// Equal reports whether both samples have the same size and pixels.
func (s Sample) Equal(other Sample) bool {
	return s.n == other.n && bytes.Equal(s.pix, other.pix)
}

func (s Sample) value(x, y int) float64 {
	return float64(s.pix[y*s.n+x])
}

// Coordinate identifies a pixel by column X and row Y.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Center returns the coordinate conventionally tracked in an n×n sample.
func Center(n int) Coordinate {
	return Coordinate{X: n / 2, Y: n / 2}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}
