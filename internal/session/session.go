// Package session drives request/response exchanges with a flow peer over a
// serial transport. A Session owns its port from Open until Close; exchanges
// are strictly sequential and never retried.
package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/wire"
)

// DefaultReadTimeout bounds the wait for one flow response.
const DefaultReadTimeout = 2 * time.Second

// Options configures a session.
type Options struct {
	// SampleSize is the edge length of every frame sent.
	SampleSize int
	// Codec decodes the peer's responses.
	Codec wire.Codec
	// ReadTimeout bounds the whole response read of one exchange.
	ReadTimeout time.Duration
	// Port is used when the session opens the port itself.
	Port serialport.PortOptions
}

// DefaultOptions returns the canonical 16×16, big-endian ×10000 setup.
func DefaultOptions() Options {
	return Options{
		SampleSize:  flow.DefaultSize,
		Codec:       wire.DefaultCodec(),
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.SampleSize <= 0 {
		return fmt.Errorf("invalid sample size %d", o.SampleSize)
	}
	if err := o.Codec.Validate(); err != nil {
		return err
	}
	if o.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout %v: must be positive", o.ReadTimeout)
	}
	return nil
}

// Exchange is the outcome of sending one frame.
type Exchange struct {
	// Frame is the zero-based index of the frame within the session.
	Frame int
	// HasFlow is false for the first frame, which only primes the peer.
	HasFlow bool
	Flow    flow.Vector
	Fixed   flow.Fixed
	Raw     []byte
}

// Session exclusively owns one serial port.
type Session struct {
	port serialport.SerialPorter
	opts Options

	frames  int
	stale   bool
	desync  bool
	closed  bool
	buf     []byte
	timeout time.Duration
}

// Open acquires the port at path through factory.
func Open(factory serialport.SerialPortFactory, path string, opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	port, err := factory.Open(path, opts.Port)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s, err := New(port, opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

// New takes ownership of an already open port.
func New(port serialport.SerialPorter, opts Options) (*Session, error) {
	if port == nil {
		return nil, errors.New("nil serial port")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		port: port,
		opts: opts,
		buf:  make([]byte, opts.Codec.ResponseSize()),
	}, nil
}

// With opens a session, runs fn and closes the session on every path.
func With(factory serialport.SerialPortFactory, path string, opts Options, fn func(*Session) error) (err error) {
	s, err := Open(factory, path, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", path, cerr))
		}
	}()
	return fn(s)
}

// Frames returns how many frames have been written.
func (s *Session) Frames() int { return s.frames }

// Options returns the session options.
func (s *Session) Options() Options { return s.opts }

// Close releases the port. Calling Close more than once is safe.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// Exchange sends sample and, from the second frame on, reads and decodes the
// peer's flow response.
func (s *Session) Exchange(sample flow.Sample) (Exchange, error) {
	if s.closed {
		return Exchange{}, ErrClosed
	}
	if s.desync {
		return Exchange{}, ErrDesynchronized
	}
	if sample.Size() != s.opts.SampleSize {
		return Exchange{}, fmt.Errorf("%w: sample is %dx%d, session sends %dx%d",
			flow.ErrDimensionMismatch, sample.Size(), sample.Size(), s.opts.SampleSize, s.opts.SampleSize)
	}

	if s.stale {
		s.discardInput()
	}

	ex := Exchange{Frame: s.frames}
	payload := wire.EncodeSample(sample)
	n, err := s.port.Write(payload)
	if err != nil || n != len(payload) {
		s.desync = true
		if err == nil {
			err = fmt.Errorf("wrote %d of %d bytes", n, len(payload))
		}
		return ex, &FrameError{Frame: ex.Frame, Err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
	}
	s.frames++

	if ex.Frame == 0 {
		return ex, nil
	}

	if err := s.readResponse(); err != nil {
		s.stale = true
		return ex, &FrameError{Frame: ex.Frame, Err: err}
	}

	v, fixed, err := s.opts.Codec.DecodeFlow(s.buf)
	if err != nil {
		return ex, &FrameError{Frame: ex.Frame, Err: err}
	}
	ex.HasFlow = true
	ex.Flow = v
	ex.Fixed = fixed
	ex.Raw = append([]byte(nil), s.buf...)
	return ex, nil
}

// readResponse fills s.buf within one ReadTimeout. Ports without timeout
// support block until data or an error arrives.
func (s *Session) readResponse() error {
	tp, hasTimeout := s.port.(serialport.TimeoutSerialPorter)
	deadline := time.Now().Add(s.opts.ReadTimeout)

	got := 0
	for got < len(s.buf) {
		if hasTimeout {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return s.readTimeoutErr(got)
			}
			if err := s.setTimeout(tp, remaining); err != nil {
				return fmt.Errorf("failed to set read timeout: %w", err)
			}
		}

		n, err := s.port.Read(s.buf[got:])
		got += n
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: %d of %d bytes before end of stream", ErrShortRead, got, len(s.buf))
			}
			return err
		}
		if n == 0 {
			return s.readTimeoutErr(got)
		}
	}
	return nil
}

func (s *Session) setTimeout(tp serialport.TimeoutSerialPorter, d time.Duration) error {
	if d == s.timeout {
		return nil
	}
	if err := tp.SetReadTimeout(d); err != nil {
		return err
	}
	s.timeout = d
	return nil
}

func (s *Session) readTimeoutErr(got int) error {
	if got == 0 {
		return fmt.Errorf("%w after %v", ErrTimeout, s.opts.ReadTimeout)
	}
	return fmt.Errorf("%w: %d of %d bytes before timeout", ErrShortRead, got, len(s.buf))
}

// discardInput drops bytes left over from a failed exchange so a late
// response is not read as the next one.
func (s *Session) discardInput() {
	s.stale = false
	r, ok := s.port.(serialport.InputResetter)
	if !ok {
		return
	}
	if err := r.ResetInputBuffer(); err != nil {
		monitoring.Logf("failed to discard stale serial input: %v", err)
	}
}
