package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/session"
)

// dumpingSource saves every sample it passes on as frame_NNNN.png and,
// with an upscale factor above one, frame_NNNN_upscaled.png.
type dumpingSource struct {
	src     session.FrameSource
	dir     string
	upscale int
	n       int
}

// withFrameDump wraps src when dir is set.
func withFrameDump(src session.FrameSource, dir string, upscale int) (session.FrameSource, error) {
	if dir == "" {
		return src, nil
	}
	if upscale <= 0 {
		return nil, fmt.Errorf("invalid --upscale %d: must be positive", upscale)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &dumpingSource{src: src, dir: dir, upscale: upscale}, nil
}

func (d *dumpingSource) Next() (flow.Sample, error) {
	s, err := d.src.Next()
	if err != nil {
		return s, err
	}
	name := fmt.Sprintf("frame_%04d", d.n)
	if err := preprocess.SavePNG(filepath.Join(d.dir, name+".png"), s, 1); err != nil {
		return s, fmt.Errorf("failed to save %s: %w", name, err)
	}
	if d.upscale > 1 {
		if err := preprocess.SavePNG(filepath.Join(d.dir, name+"_upscaled.png"), s, d.upscale); err != nil {
			return s, fmt.Errorf("failed to save %s preview: %w", name, err)
		}
	}
	d.n++
	return s, nil
}
