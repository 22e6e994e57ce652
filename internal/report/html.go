package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

// HTMLOptions controls the interactive page.
type HTMLOptions struct {
	// AssetsHost serves echarts.min.js. Empty uses the go-echarts default.
	AssetsHost string
}

func lineChart(title, sub, yName string, traces [2]Trace, o HTMLOptions) *charts.Line {
	line := charts.NewLine()
	initOpts := opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: sub}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	longest := traces[0].Series
	if traces[1].Series.Len() > longest.Len() {
		longest = traces[1].Series
	}
	line.SetXAxis(longest.Frames)

	for _, tr := range traces {
		data := make([]opts.LineData, tr.Series.Len())
		for i, v := range tr.Series.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(tr.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

// RenderHTML writes a page with the magnitude and angle charts.
func RenderHTML(w io.Writer, c Comparison, o HTMLOptions) error {
	mag := lineChart(c.Title+" - magnitude", subtitle(c.MagnitudeStats), "px/frame", c.Magnitude, o)
	angTraces := [2]Trace{
		{Name: c.Angle[0].Name, Series: degrees(c.Angle[0].Series)},
		{Name: c.Angle[1].Name, Series: degrees(c.Angle[1].Series)},
	}
	ang := lineChart(c.Title+" - angle", subtitle(c.AngleStats), "degrees", angTraces, o)

	page := components.NewPage()
	page.PageTitle = c.Title
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(mag, ang)
	return page.Render(w)
}

// WriteHTML renders the page to comparison.html in dir and returns its path.
func WriteHTML(dir string, c Comparison, o HTMLOptions) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path = filepath.Join(dir, htmlFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)
	if err := RenderHTML(bw, c, o); err != nil {
		return "", fmt.Errorf("render %s: %w", htmlFile, err)
	}
	return path, bw.Flush()
}

// Build smooths both flow series, aligns them and computes the statistics
// that annotate the charts.
func Build(title string, names [2]string, a, b []series.FlowSample, smooth series.SmoothOptions) (Comparison, error) {
	magA, angA := series.Polar(a)
	magB, angB := series.Polar(b)

	var err error
	for _, s := range []*series.Series{&magA, &angA, &magB, &angB} {
		if *s, err = series.Smooth(*s, smooth); err != nil {
			return Comparison{}, err
		}
	}
	magA, magB = series.Align(magA, magB)
	angA, angB = series.Align(angA, angB)

	c := Comparison{
		Title:     title,
		Magnitude: [2]Trace{{names[0], magA}, {names[1], magB}},
		Angle:     [2]Trace{{names[0], angA}, {names[1], angB}},
	}
	if stats, err := series.Compare(magA, magB); err == nil {
		c.MagnitudeStats = &stats
	}
	if stats, err := series.Compare(angA, angB); err == nil {
		c.AngleStats = &stats
	}
	return c, nil
}
