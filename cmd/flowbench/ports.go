package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
)

func newPortsCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports visible to this host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := serialport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
