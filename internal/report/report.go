// Package report renders comparison charts of two flow series: static PNG
// plots for archiving and an interactive HTML page for browsing.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

// Trace is one named series on a chart.
type Trace struct {
	Name   string
	Series series.Series
}

// Comparison holds the magnitude and angle traces of two estimators. Angle
// traces are in radians and are drawn in degrees.
type Comparison struct {
	Title     string
	Magnitude [2]Trace
	Angle     [2]Trace
	// Stats are shown as subtitles when set.
	MagnitudeStats *series.Comparison
	AngleStats     *series.Comparison
}

var palette = [2]color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

const (
	magnitudeFile = "magnitude.png"
	angleFile     = "angle.png"
	htmlFile      = "comparison.html"
)

func degrees(s series.Series) series.Series {
	out := series.Series{Frames: s.Frames, Values: make([]float64, len(s.Values))}
	for i, v := range s.Values {
		out.Values[i] = v * 180 / math.Pi
	}
	return out
}

func xys(s series.Series) plotter.XYs {
	pts := make(plotter.XYs, s.Len())
	for i := range pts {
		pts[i] = plotter.XY{X: float64(s.Frames[i]), Y: s.Values[i]}
	}
	return pts
}

func subtitle(c *series.Comparison) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("n=%d MAE=%.4g RMSE=%.4g r=%.3f", c.N, c.MAE, c.RMSE, c.Correlation)
}

func linePlot(title, yLabel string, traces [2]Trace) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	for i, tr := range traces {
		if tr.Series.Len() == 0 {
			continue
		}
		line, err := plotter.NewLine(xys(tr.Series))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tr.Name, err)
		}
		line.Color = palette[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(tr.Name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG saves magnitude.png and angle.png into dir and returns their
// paths.
func WritePNG(dir string, c Comparison) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	title := func(kind string, stats *series.Comparison) string {
		t := fmt.Sprintf("%s - flow %s", c.Title, kind)
		if s := subtitle(stats); s != "" {
			t += "\n" + s
		}
		return t
	}

	mag, err := linePlot(title("magnitude", c.MagnitudeStats), "Magnitude (px/frame)", c.Magnitude)
	if err != nil {
		return nil, err
	}
	angTraces := [2]Trace{
		{Name: c.Angle[0].Name, Series: degrees(c.Angle[0].Series)},
		{Name: c.Angle[1].Name, Series: degrees(c.Angle[1].Series)},
	}
	ang, err := linePlot(title("angle", c.AngleStats), "Angle (degrees)", angTraces)
	if err != nil {
		return nil, err
	}

	charts := []struct {
		name string
		plot *plot.Plot
	}{
		{magnitudeFile, mag},
		{angleFile, ang},
	}
	var files []string
	for _, ch := range charts {
		path := filepath.Join(dir, ch.name)
		if err := ch.plot.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
			return files, fmt.Errorf("failed to save %s: %w", ch.name, err)
		}
		files = append(files, path)
	}
	return files, nil
}
