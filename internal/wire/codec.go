// Package wire implements the byte layout exchanged with the flow peer: a
// raw row-major frame going out and a fixed-size flow vector coming back.
// There is no framing, length prefix or checksum; both sides rely on the
// fixed message sizes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

// DefaultScale is the fixed-point factor of the canonical deployment.
const DefaultScale = 10000

// ErrPayloadSize is returned when a payload does not have the exact size
// required by the message type.
var ErrPayloadSize = errors.New("unexpected payload size")

// Format identifies a flow response layout. Formats are configured, never
// detected from the data.
type Format int

const (
	// FormatBE16 is two signed 16-bit big-endian integers, u then v.
	FormatBE16 Format = iota
	// FormatLegacy8 is two signed bytes, u then v, from early firmware.
	FormatLegacy8
)

// Size returns the response length in bytes.
func (f Format) Size() int {
	switch f {
	case FormatLegacy8:
		return 2
	default:
		return 4
	}
}

// Bits returns the width of each component.
func (f Format) Bits() int {
	if f == FormatLegacy8 {
		return 8
	}
	return 16
}

func (f Format) String() string {
	switch f {
	case FormatBE16:
		return "be16"
	case FormatLegacy8:
		return "legacy8"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat parses "be16" or "legacy8".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "be16":
		return FormatBE16, nil
	case "legacy8", "le8":
		return FormatLegacy8, nil
	default:
		return 0, fmt.Errorf("unknown flow format %q: expected be16 or legacy8", s)
	}
}

// EncodeSample returns the request payload for s: one byte per pixel in
// row-major order.
func EncodeSample(s flow.Sample) []byte {
	return s.Pix()
}

// DecodeSample rebuilds an n×n sample from a request payload.
func DecodeSample(b []byte, n int) (flow.Sample, error) {
	if n <= 0 || len(b) != n*n {
		return flow.Sample{}, fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(b), n*n)
	}
	return flow.NewSample(n, b)
}

// Codec converts flow vectors to and from response payloads. Both ends of a
// link must use the same Format and Scale.
type Codec struct {
	Format Format
	Scale  float64
}

// DefaultCodec returns the canonical big-endian ×10000 codec.
func DefaultCodec() Codec {
	return Codec{Format: FormatBE16, Scale: DefaultScale}
}

// Validate checks the codec parameters.
func (c Codec) Validate() error {
	if c.Format != FormatBE16 && c.Format != FormatLegacy8 {
		return fmt.Errorf("invalid flow format %v", c.Format)
	}
	if !(c.Scale > 0) {
		return fmt.Errorf("invalid scale %v: must be positive", c.Scale)
	}
	return nil
}

// ResponseSize is the number of bytes in one flow response.
func (c Codec) ResponseSize() int { return c.Format.Size() }

// EncodeFlow scales v and writes it in the codec's format.
func (c Codec) EncodeFlow(v flow.Vector) ([]byte, error) {
	fixed, err := v.FixedBits(c.Scale, c.Format.Bits())
	if err != nil {
		return nil, err
	}
	return c.EncodeFixed(fixed), nil
}

// EncodeFixed writes an already scaled vector. Components must fit the
// format's width; callers get that from flow.Vector.FixedBits.
func (c Codec) EncodeFixed(f flow.Fixed) []byte {
	if c.Format == FormatLegacy8 {
		return []byte{byte(int8(f.U)), byte(int8(f.V))}
	}
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], uint16(f.U))
	binary.BigEndian.PutUint16(b[2:4], uint16(f.V))
	return b
}

// DecodeFlow parses a response payload into its fixed-point and real forms.
func (c Codec) DecodeFlow(b []byte) (flow.Vector, flow.Fixed, error) {
	if len(b) != c.Format.Size() {
		return flow.Vector{}, flow.Fixed{}, fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(b), c.Format.Size())
	}
	var f flow.Fixed
	if c.Format == FormatLegacy8 {
		f = flow.Fixed{U: int16(int8(b[0])), V: int16(int8(b[1]))}
	} else {
		f = flow.Fixed{
			U: int16(binary.BigEndian.Uint16(b[0:2])),
			V: int16(binary.BigEndian.Uint16(b[2:4])),
		}
	}
	return f.Vector(c.Scale), f, nil
}
