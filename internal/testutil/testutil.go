// Package testutil provides shared test fixtures: synthetic frames with
// known motion and helpers to lay them out on disk the way extracted video
// frames are.
package testutil

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
)

// Corner returns a pattern that is hi in the quadrant x >= cx, y >= cy and
// lo elsewhere. Its corner gives the window gradients in both axes.
func Corner(cx, cy int, lo, hi uint8) func(x, y int) uint8 {
	return func(x, y int) uint8 {
		if x >= cx && y >= cy {
			return hi
		}
		return lo
	}
}

// MovingCorner returns n frames of a 16×16 corner pattern whose corner
// starts at (startX, 8) and moves right by one pixel every step frames.
func MovingCorner(n, startX, step int) []flow.Sample {
	if step <= 0 {
		step = 1
	}
	out := make([]flow.Sample, n)
	for i := range out {
		out[i] = flow.GenerateSample(flow.DefaultSize, Corner(startX+i/step, 8, 30, 220))
	}
	return out
}

// WriteFrameDir writes samples as frame_0000.png, frame_0001.png, ... into
// a fresh temporary directory and returns it.
func WriteFrameDir(t *testing.T, samples []flow.Sample) string {
	t.Helper()
	dir := t.TempDir()
	for i, s := range samples {
		path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i))
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("create %s: %v", path, err)
		}
		if err := png.Encode(f, preprocess.Image(s)); err != nil {
			f.Close()
			t.Fatalf("encode %s: %v", path, err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("close %s: %v", path, err)
		}
	}
	return dir
}
