package reference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

var csvHeader = []string{"frame", "u", "v"}

// Table is an Oracle backed by precomputed flows keyed by frame.
type Table struct {
	flows map[int]flow.Vector
}

// NewTable builds an oracle from samples. Later samples for the same
// frame replace earlier ones.
func NewTable(samples []series.FlowSample) *Table {
	t := &Table{flows: make(map[int]flow.Vector, len(samples))}
	for _, s := range samples {
		t.flows[s.Frame] = s.Vector()
	}
	return t
}

// Flow implements Oracle. Only frame is consulted.
func (t *Table) Flow(frame int, _, _ flow.Sample, _ flow.Coordinate) (flow.Vector, error) {
	v, ok := t.flows[frame]
	if !ok {
		return flow.Vector{}, fmt.Errorf("%w %d", ErrNoReference, frame)
	}
	return v, nil
}

// Samples returns the table ordered by frame.
func (t *Table) Samples() []series.FlowSample {
	out := make([]series.FlowSample, 0, len(t.flows))
	for frame, v := range t.flows {
		out = append(out, series.NewFlowSample(frame, v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out
}

// ReadCSV parses frame,u,v rows. The header row is required.
func ReadCSV(r io.Reader) ([]series.FlowSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reference csv: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("reference csv header: %w", err)
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, fmt.Errorf("reference csv: column %d is %q, want %q", i, header[i], name)
		}
	}

	var out []series.FlowSample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reference csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("reference csv line %d: %w", line, err)
		}
		out = append(out, s)
	}
}

func parseRecord(rec []string) (series.FlowSample, error) {
	frame, err := strconv.Atoi(rec[0])
	if err != nil {
		return series.FlowSample{}, fmt.Errorf("frame: %w", err)
	}
	u, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return series.FlowSample{}, fmt.Errorf("u: %w", err)
	}
	v, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return series.FlowSample{}, fmt.Errorf("v: %w", err)
	}
	return series.FlowSample{Frame: frame, U: u, V: v}, nil
}

// LoadCSV reads a reference export from path.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()

	samples, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewTable(samples), nil
}

// WriteCSV writes samples in the format ReadCSV accepts.
func WriteCSV(w io.Writer, samples []series.FlowSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{
			strconv.Itoa(s.Frame),
			strconv.FormatFloat(s.U, 'g', -1, 64),
			strconv.FormatFloat(s.V, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
