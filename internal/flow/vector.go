package flow

import (
	"fmt"
	"math"
)

// Vector is a flow displacement in pixels: U horizontal, V vertical.
type Vector struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// Fixed is the scaled integer form of a Vector used on the wire.
type Fixed struct {
	U int16 `json:"u"`
	V int16 `json:"v"`
}

// Fixed scales v into signed 16-bit fixed point, truncating toward zero.
func (v Vector) Fixed(scale float64) (Fixed, error) {
	return v.FixedBits(scale, 16)
}

// FixedBits scales v into a signed fixed-point value of the given bit width
// (8 or 16), truncating toward zero. Values outside the width are an error.
func (v Vector) FixedBits(scale float64, bits int) (Fixed, error) {
	u, err := Truncate(v.U, scale, bits)
	if err != nil {
		return Fixed{}, fmt.Errorf("u: %w", err)
	}
	w, err := Truncate(v.V, scale, bits)
	if err != nil {
		return Fixed{}, fmt.Errorf("v: %w", err)
	}
	return Fixed{U: int16(u), V: int16(w)}, nil
}

// Vector converts the fixed-point form back to pixels.
func (f Fixed) Vector(scale float64) Vector {
	return Vector{U: float64(f.U) / scale, V: float64(f.V) / scale}
}

// Truncate returns trunc(x·scale) when it fits a signed integer of the given
// bit width.
func Truncate(x, scale float64, bits int) (int64, error) {
	if bits != 8 && bits != 16 {
		return 0, fmt.Errorf("unsupported fixed-point width %d", bits)
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0, fmt.Errorf("invalid fixed-point scale %v", scale)
	}
	if math.IsNaN(x) {
		return 0, fmt.Errorf("%w: NaN", ErrFixedPointOverflow)
	}
	scaled := math.Trunc(x * scale)
	limit := float64(int64(1) << (bits - 1))
	if scaled >= limit || scaled < -limit {
		return 0, fmt.Errorf("%w: %v×%v does not fit int%d", ErrFixedPointOverflow, x, scale, bits)
	}
	return int64(scaled), nil
}
