package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
)

// FrameSource yields preprocessed samples in order and io.EOF when done.
type FrameSource interface {
	Next() (flow.Sample, error)
}

// SliceSource is a FrameSource over samples held in memory.
type SliceSource struct {
	samples []flow.Sample
	i       int
}

// NewSliceSource returns a source yielding samples in order.
func NewSliceSource(samples ...flow.Sample) *SliceSource {
	return &SliceSource{samples: samples}
}

// Next implements FrameSource.
func (s *SliceSource) Next() (flow.Sample, error) {
	if s.i >= len(s.samples) {
		return flow.Sample{}, io.EOF
	}
	sample := s.samples[s.i]
	s.i++
	return sample, nil
}

// RunOptions controls Run.
type RunOptions struct {
	// MaxFrames stops the run after this many frames. Zero means no limit.
	MaxFrames int
	// OnExchange is called after every successful exchange, including the
	// first frame which has no flow. An error aborts the run.
	OnExchange func(ex Exchange, sample flow.Sample) error
	// OnError decides whether the run continues after a failed exchange.
	// Nil aborts on the first failure.
	OnError func(err *FrameError) bool
}

// Summary counts what happened during a run.
type Summary struct {
	Frames   int
	Flows    int
	Failures int
}

// Run sends frames from src one at a time until the source is exhausted,
// MaxFrames is reached, ctx is cancelled or an exchange fails and OnError
// declines to continue. Cancellation is only observed between frames.
func (s *Session) Run(ctx context.Context, src FrameSource, opts RunOptions) (Summary, error) {
	var sum Summary
	for opts.MaxFrames <= 0 || sum.Frames < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		sample, err := src.Next()
		if errors.Is(err, io.EOF) {
			return sum, nil
		}
		if err != nil {
			return sum, fmt.Errorf("failed to read frame %d: %w", sum.Frames, err)
		}

		ex, err := s.Exchange(sample)
		sum.Frames++
		if err != nil {
			sum.Failures++
			var fe *FrameError
			if !errors.As(err, &fe) {
				return sum, err
			}
			monitoring.Logf("exchange failed: %v", fe)
			if opts.OnError == nil || !opts.OnError(fe) {
				return sum, fe
			}
			continue
		}

		if ex.HasFlow {
			sum.Flows++
		}
		if opts.OnExchange != nil {
			if err := opts.OnExchange(ex, sample); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// ContinueOnTimeouts is an OnError policy that skips frames whose response
// timed out or arrived short and aborts on anything else.
func ContinueOnTimeouts(err *FrameError) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrShortRead)
}
