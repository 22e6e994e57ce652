package peer

import (
	"context"
	"net"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
)

// Loopback connects p to an in-memory port. The returned channel yields the
// peer's exit error once the host side closes the port.
func Loopback(p *Peer) (*serialport.ConnPort, <-chan error) {
	host, device := net.Pipe()
	done := make(chan error, 1)
	go func() {
		defer device.Close()
		done <- p.Serve(context.Background(), device)
	}()
	return serialport.NewConnPort(host), done
}

// LoopbackFactory opens a fresh loopback peer for every Open call, so a
// session can be pointed at it like a real port. A peer that stops with an
// error is logged through monitoring.Logf.
type LoopbackFactory struct {
	Config Config
}

// Open implements serialport.SerialPortFactory.
func (f LoopbackFactory) Open(string, serialport.PortOptions) (serialport.SerialPorter, error) {
	p, err := New(f.Config)
	if err != nil {
		return nil, err
	}
	port, done := Loopback(p)
	go func() {
		if err := <-done; err != nil {
			monitoring.Logf("loopback peer stopped: %v", err)
		}
	}()
	return port, nil
}
