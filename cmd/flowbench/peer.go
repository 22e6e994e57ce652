package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/peer"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
)

func newPeerCmd(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Serve the simulated flow firmware on a serial port",
		Long: `Acts as the embedded peer: reads frames from the port and answers every
frame after the first with the flow at the configured coordinate. Useful for
testing a host against a second machine or a virtual serial pair.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.GetPort()
			}
			if port == "" {
				return errors.New("no serial port: set --port or \"port\" in the config")
			}
			pc, err := a.cfg.PeerConfig()
			if err != nil {
				return err
			}
			p, err := peer.New(pc)
			if err != nil {
				return err
			}
			return servePeer(cmd.Context(), serialport.RealFactory{}, port, a.cfg.GetSerial(), p)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Serial device or tcp://host:port bridge (overrides the config)")
	return cmd
}

// servePeer answers frames on the port until the host goes away or ctx is
// cancelled.
func servePeer(ctx context.Context, factory serialport.SerialPortFactory, path string, opts serialport.PortOptions, p *peer.Peer) error {
	port, err := factory.Open(path, opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	monitoring.Logf("peer serving on %s", path)
	err = p.Serve(ctx, port)
	if ctx.Err() != nil {
		monitoring.Logf("peer on %s stopped", path)
		return nil
	}
	return err
}
