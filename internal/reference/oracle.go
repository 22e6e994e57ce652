// Package reference supplies ground-truth flow to compare the peer against.
// Flows are either recomputed locally with the host estimator or loaded from
// an export produced by an external vision library.
package reference

import (
	"errors"
	"fmt"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
)

// ErrNoReference is returned when an oracle has no flow for a frame.
var ErrNoReference = errors.New("no reference flow for frame")

// Oracle returns the reference flow between prev and next, where next is
// frame number frame of the run.
type Oracle interface {
	Flow(frame int, prev, next flow.Sample, at flow.Coordinate) (flow.Vector, error)
}

// Local recomputes the reference on the host with the same estimator the
// peer runs.
type Local struct {
	est *flow.Estimator
}

// NewLocal returns a host oracle using cfg.
func NewLocal(cfg flow.Config) (*Local, error) {
	est, err := flow.NewEstimator(cfg)
	if err != nil {
		return nil, err
	}
	return &Local{est: est}, nil
}

// Flow implements Oracle.
func (l *Local) Flow(frame int, prev, next flow.Sample, at flow.Coordinate) (flow.Vector, error) {
	v, err := l.est.Estimate(prev, next, at)
	if err != nil {
		return flow.Vector{}, fmt.Errorf("reference frame %d: %w", frame, err)
	}
	return v, nil
}
