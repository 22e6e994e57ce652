// Package peer is a host-side stand-in for the flow firmware. It speaks the
// same wire protocol and runs the same estimator as the host reference, so a
// bench run can be exercised end to end without hardware.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/wire"
)

// Config describes what the peer computes and how it answers.
type Config struct {
	Estimator flow.Config
	Codec     wire.Codec
	// SampleSize is the edge length of incoming frames.
	SampleSize int
	// At is the coordinate the flow is estimated at.
	At flow.Coordinate
}

// DefaultConfig mirrors the canonical firmware build.
func DefaultConfig() Config {
	return Config{
		Estimator:  flow.DefaultConfig(),
		Codec:      wire.DefaultCodec(),
		SampleSize: flow.DefaultSize,
		At:         flow.Center(flow.DefaultSize),
	}
}

// Peer keeps the previous frame between requests, as the device does.
type Peer struct {
	cfg  Config
	est  *flow.Estimator
	prev flow.Sample
	have bool
	n    int
}

// New validates cfg and returns a peer with no previous frame.
func New(cfg Config) (*Peer, error) {
	est, err := flow.NewEstimator(cfg.Estimator)
	if err != nil {
		return nil, err
	}
	if err := cfg.Codec.Validate(); err != nil {
		return nil, err
	}
	if err := est.Check(flow.FilledSample(cfg.SampleSize, 0), flow.FilledSample(cfg.SampleSize, 0), cfg.At); err != nil {
		return nil, fmt.Errorf("peer coordinate: %w", err)
	}
	return &Peer{cfg: cfg, est: est}, nil
}

// Handle consumes one frame and returns the response payload. The first
// frame has no response.
func (p *Peer) Handle(frame flow.Sample) ([]byte, error) {
	defer func() { p.n++ }()
	if !p.have {
		p.prev, p.have = frame, true
		return nil, nil
	}

	v, err := p.est.Estimate(p.prev, frame, p.cfg.At)
	p.prev = frame
	if err != nil {
		return nil, err
	}

	fixed, err := v.FixedBits(p.cfg.Codec.Scale, p.cfg.Codec.Format.Bits())
	if errors.Is(err, flow.ErrFixedPointOverflow) {
		fixed = saturate(v, p.cfg.Codec)
		monitoring.Logf("peer frame %d: flow %+v saturated to %+v", p.n, v, fixed)
	} else if err != nil {
		return nil, err
	}
	return p.cfg.Codec.EncodeFixed(fixed), nil
}

// Serve answers frames read from rw until the stream ends, ctx is done or an
// error occurs. A clean end of stream between frames returns nil.
func (p *Peer) Serve(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, p.cfg.SampleSize*p.cfg.SampleSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(rw, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("peer read frame %d: %w", p.n, err)
		}

		frame, err := wire.DecodeSample(buf, p.cfg.SampleSize)
		if err != nil {
			return err
		}
		resp, err := p.Handle(frame)
		if err != nil {
			return fmt.Errorf("peer frame %d: %w", p.n-1, err)
		}
		if resp == nil {
			continue
		}
		if _, err := rw.Write(resp); err != nil {
			return fmt.Errorf("peer write response %d: %w", p.n-1, err)
		}
	}
}

func saturate(v flow.Vector, c wire.Codec) flow.Fixed {
	limit := float64(int64(1)<<(c.Format.Bits()-1)) - 1
	clamp := func(x float64) int16 {
		if math.IsNaN(x) {
			return 0
		}
		return int16(math.Max(-limit-1, math.Min(limit, math.Trunc(x*c.Scale))))
	}
	return flow.Fixed{U: clamp(v.U), V: clamp(v.V)}
}
