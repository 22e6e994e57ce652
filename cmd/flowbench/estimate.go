package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/reference"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/session"
)

func newEstimateCmd(a *app) *cobra.Command {
	var (
		frames, out, dumpDir string
		upscale              int
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Run the host estimator over a frame directory and print frame,u,v",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ppOpts, err := a.cfg.PreprocessOptions()
			if err != nil {
				return err
			}
			src, err := preprocess.NewDirSource(frames, ppOpts)
			if err != nil {
				return err
			}
			frameSrc, err := withFrameDump(src, dumpDir, upscale)
			if err != nil {
				return err
			}
			estCfg, err := a.cfg.EstimatorConfig()
			if err != nil {
				return err
			}
			samples, err := estimateDir(frameSrc, estCfg, a.cfg.GetCoordinate())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer func() {
					if cerr := file.Close(); err == nil {
						err = cerr
					}
				}()
				w = file
			}
			return reference.WriteCSV(w, samples)
		},
	}
	cmd.Flags().StringVarP(&frames, "frames", "f", "", "Directory of extracted video frames")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write CSV here instead of stdout")
	cmd.Flags().StringVar(&dumpDir, "dump-frames", "", "Save every preprocessed sample as a PNG in this directory")
	cmd.Flags().IntVar(&upscale, "upscale", 5, "Also save a nearest-neighbour preview enlarged this many times (1 = none)")
	cmd.MarkFlagRequired("frames")
	return cmd
}

// estimateDir returns the host flow between every consecutive pair of
// frames, tagged with the index of the later frame.
func estimateDir(src session.FrameSource, cfg flow.Config, at flow.Coordinate) ([]series.FlowSample, error) {
	est, err := flow.NewEstimator(cfg)
	if err != nil {
		return nil, err
	}
	var (
		out  []series.FlowSample
		prev flow.Sample
	)
	for frame := 0; ; frame++ {
		next, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if frame > 0 {
			v, err := est.Estimate(prev, next, at)
			if err != nil {
				return nil, fmt.Errorf("frame %d: %w", frame, err)
			}
			out = append(out, series.NewFlowSample(frame, v))
		}
		prev = next
	}
}
