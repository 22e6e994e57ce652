package serialport

import (
	"fmt"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
)

// tcpPrefix selects a raw TCP bridge (ser2net and similar) instead of a
// local device node.
const tcpPrefix = "tcp://"

// RealFactory opens local serial devices through go.bug.st/serial, or a
// TCP serial bridge when the path starts with tcp://.
type RealFactory struct {
	// DialTimeout bounds connecting to a TCP bridge.
	DialTimeout time.Duration
}

// Open implements SerialPortFactory.
func (f RealFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	if addr, ok := strings.CutPrefix(path, tcpPrefix); ok {
		timeout := f.DialTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, fmt.Errorf("dial serial bridge %s: %w", addr, err)
		}
		monitoring.Logf("connected to serial bridge %s", addr)
		return NewConnPort(conn), nil
	}

	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	monitoring.Logf("opened serial port %s (%s)", path, opts)
	return port, nil
}

// ListPorts returns the serial device names visible to the host.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
