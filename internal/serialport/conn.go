package serialport

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// drainQuiet is how long ResetInputBuffer waits for more input before it
// treats the connection as drained.
const drainQuiet = 10 * time.Millisecond

// ConnPort adapts a net.Conn to TimeoutSerialPorter with serial-port read
// semantics: a read that hits the timeout returns (0, nil). It also
// implements InputResetter, since a TCP bridge buffers late replies in the
// kernel just as a UART driver does.
type ConnPort struct {
	conn net.Conn

	mu      sync.Mutex
	timeout time.Duration
}

// NewConnPort wraps conn. Reads block until data arrives until a timeout is
// set.
func NewConnPort(conn net.Conn) *ConnPort {
	return &ConnPort{conn: conn}
}

// SetReadTimeout implements TimeoutSerialPorter.
func (c *ConnPort) SetReadTimeout(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
	return nil
}

func (c *ConnPort) Read(p []byte) (int, error) {
	c.mu.Lock()
	timeout := c.timeout
	c.mu.Unlock()

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

// ResetInputBuffer discards everything already received, reading until no
// byte arrives for drainQuiet.
func (c *ConnPort) ResetInputBuffer() error {
	buf := make([]byte, 512)
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(drainQuiet)); err != nil {
			return err
		}
		n, err := c.conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

func (c *ConnPort) Write(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Close closes the underlying connection.
func (c *ConnPort) Close() error {
	return c.conn.Close()
}
