// Package preprocess turns decoded video frames into the fixed-size
// grayscale samples the estimator and the peer work on.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"golang.org/x/image/draw"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

// Mode selects how a frame is reduced to the sample size.
type Mode int

const (
	// Resize scales the whole frame down to the sample size.
	Resize Mode = iota
	// Crop keeps the centre of the frame at its native resolution.
	Crop
)

func (m Mode) String() string {
	switch m {
	case Resize:
		return "resize"
	case Crop:
		return "crop"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "resize" or "crop". Empty means resize.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "resize":
		return Resize, nil
	case "crop":
		return Crop, nil
	default:
		return 0, fmt.Errorf("unknown preprocess mode %q: expected resize or crop", s)
	}
}

// Options controls frame conversion.
type Options struct {
	Size int
	Mode Mode
}

// DefaultOptions resizes to the canonical 16×16 sample.
func DefaultOptions() Options {
	return Options{Size: flow.DefaultSize, Mode: Resize}
}

// Convert reduces img to a Size×Size grayscale sample.
func Convert(img image.Image, opts Options) (flow.Sample, error) {
	if opts.Size <= 0 {
		return flow.Sample{}, fmt.Errorf("invalid sample size %d", opts.Size)
	}
	b := img.Bounds()
	if b.Empty() {
		return flow.Sample{}, fmt.Errorf("empty image")
	}

	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)

	dst := image.NewGray(image.Rect(0, 0, opts.Size, opts.Size))
	switch opts.Mode {
	case Resize:
		draw.CatmullRom.Scale(dst, dst.Bounds(), gray, b, draw.Src, nil)
	case Crop:
		if b.Dx() < opts.Size || b.Dy() < opts.Size {
			return flow.Sample{}, fmt.Errorf("frame %dx%d is smaller than the %dx%d crop", b.Dx(), b.Dy(), opts.Size, opts.Size)
		}
		origin := image.Pt(b.Min.X+(b.Dx()-opts.Size)/2, b.Min.Y+(b.Dy()-opts.Size)/2)
		draw.Draw(dst, dst.Bounds(), gray, origin, draw.Src)
	default:
		return flow.Sample{}, fmt.Errorf("invalid preprocess mode %v", opts.Mode)
	}
	return flow.NewSample(opts.Size, dst.Pix)
}

// Image returns s as a grayscale image.
func Image(s flow.Sample) *image.Gray {
	n := s.Size()
	img := image.NewGray(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.SetGray(x, y, color.Gray{Y: s.At(x, y)})
		}
	}
	return img
}

// Upscale enlarges s by an integer factor with nearest-neighbour
// sampling so individual sample pixels stay visible.
func Upscale(s flow.Sample, factor int) (*image.Gray, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("invalid upscale factor %d", factor)
	}
	src := Image(s)
	dst := image.NewGray(image.Rect(0, 0, s.Size()*factor, s.Size()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Decode reads one image and converts it.
func Decode(r io.Reader, opts Options) (flow.Sample, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return flow.Sample{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return Convert(img, opts)
}
