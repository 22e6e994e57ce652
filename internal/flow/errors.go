package flow

import "errors"

var (
	// ErrOutOfBounds is returned when the estimation window around a
	// coordinate would read outside the sample.
	ErrOutOfBounds = errors.New("coordinate window out of bounds")

	// ErrDimensionMismatch is returned when two samples differ in size or a
	// sample is not a non-empty square.
	ErrDimensionMismatch = errors.New("sample dimension mismatch")

	// ErrFixedPointOverflow is returned when a scaled flow component does not
	// fit the requested integer width.
	ErrFixedPointOverflow = errors.New("fixed-point overflow")
)
