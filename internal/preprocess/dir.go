package preprocess

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Frame decoders.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

var frameExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// DirSource yields the frames of a directory of extracted video frames in
// file name order, e.g. frame_0000.png, frame_0001.png.
type DirSource struct {
	opts  Options
	paths []string
	i     int
}

// NewDirSource lists the image files in dir. Other files are ignored.
func NewDirSource(dir string, opts Options) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	sort.Strings(paths)
	return &DirSource{opts: opts, paths: paths}, nil
}

// Len returns the number of frames in the directory.
func (d *DirSource) Len() int { return len(d.paths) }

// Paths returns the frame files in the order they are yielded.
func (d *DirSource) Paths() []string { return append([]string(nil), d.paths...) }

// Next decodes the next frame and returns io.EOF after the last one.
func (d *DirSource) Next() (flow.Sample, error) {
	if d.i >= len(d.paths) {
		return flow.Sample{}, io.EOF
	}
	path := d.paths[d.i]
	d.i++
	return LoadFile(path, d.opts)
}

// LoadFile decodes and converts the image at path.
func LoadFile(path string, opts Options) (flow.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return flow.Sample{}, err
	}
	defer f.Close()

	s, err := Decode(f, opts)
	if err != nil {
		return flow.Sample{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// SavePNG writes s to path, enlarged by factor.
func SavePNG(path string, s flow.Sample, factor int) error {
	img, err := Upscale(s, factor)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
