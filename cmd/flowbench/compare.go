package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/db"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/report"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		against string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "compare RUN_ID",
		Short: "Compare a recorded run's peer flow against the host or reference flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			src := db.Source(against)
			if !src.Valid() || src == db.SourcePeer {
				return fmt.Errorf("invalid --against %q: expected local or reference", against)
			}

			store, err := a.openDB()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(id)
			if err != nil {
				return err
			}
			peerFlows, err := store.FlowSamples(id, db.SourcePeer)
			if err != nil {
				return err
			}
			other, err := store.FlowSamples(id, src)
			if err != nil {
				return err
			}
			if len(other) == 0 {
				return fmt.Errorf("run %s has no %s flow", id, src)
			}

			title := fmt.Sprintf("%s %s", run.Port, run.StartedAt.Format("2006-01-02 15:04:05"))
			if outDir == "" {
				c, err := report.Build(title, [2]string{"peer", string(src)}, peerFlows, other, a.cfg.SmoothOptions())
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), c)
				return nil
			}
			return writeReport(cmd, outDir, title, [2]string{"peer", string(src)}, peerFlows, other, a.cfg.SmoothOptions())
		},
	}
	cmd.Flags().StringVar(&against, "against", string(db.SourceLocal), "Series to compare with: local or reference")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write PNG and HTML charts to this directory")
	return cmd
}

func printStats(w io.Writer, c report.Comparison) {
	line := func(kind string, s *series.Comparison) {
		if s == nil {
			fmt.Fprintf(w, "%-9s no overlapping frames\n", kind)
			return
		}
		fmt.Fprintf(w, "%-9s n=%d mae=%.6g rmse=%.6g r=%.4f mean=%.6g/%.6g\n",
			kind, s.N, s.MAE, s.RMSE, s.Correlation, s.MeanA, s.MeanB)
	}
	line("magnitude", c.MagnitudeStats)
	line("angle", c.AngleStats)
}

func writeReport(cmd *cobra.Command, dir, title string, names [2]string, a, b []series.FlowSample, smooth series.SmoothOptions) error {
	c, err := report.Build(title, names, a, b, smooth)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), c)

	files, err := report.WritePNG(dir, c)
	if err != nil {
		return err
	}
	page, err := report.WriteHTML(dir, c, report.HTMLOptions{})
	if err != nil {
		return err
	}
	for _, f := range append(files, page) {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f)
	}
	return nil
}
