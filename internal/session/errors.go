package session

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means no response byte arrived within the read timeout.
	ErrTimeout = errors.New("timed out waiting for flow response")

	// ErrShortRead means the response ended before its fixed size.
	ErrShortRead = errors.New("short flow response")

	// ErrWriteFailed means the frame could not be written in full.
	ErrWriteFailed = errors.New("failed to write frame to serial port")

	// ErrClosed is returned by exchanges on a closed session.
	ErrClosed = errors.New("session closed")

	// ErrDesynchronized is returned after a failed write: the peer may hold
	// a partial frame, so byte framing can no longer be trusted.
	ErrDesynchronized = errors.New("session desynchronized by failed write")
)

// FrameError attaches the frame index to an exchange failure.
type FrameError struct {
	Frame int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }
