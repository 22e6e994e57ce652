package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/db"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/peer"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/reference"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/session"
)

type runFlags struct {
	frames    string
	port      string
	dev       bool
	reference string
	reportDir string
	maxFrames int
	noStore   bool
	dumpDir   string
	upscale   int
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Send a directory of frames to the peer and record its flow",
		Long: `Frames are read in file name order, reduced to the sample size and sent
to the peer one at a time. Every answer is checked against the host
estimator and, when --reference is given, an exported reference CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("max-frames") {
				f.maxFrames = a.cfg.GetMaxFrames()
			}
			return runBench(cmd, a, f)
		},
	}
	cmd.Flags().StringVarP(&f.frames, "frames", "f", "", "Directory of extracted video frames")
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "Serial device or tcp://host:port bridge (overrides the config)")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "Talk to an in-process simulated peer instead of a serial port")
	cmd.Flags().StringVar(&f.reference, "reference", "", "CSV of reference flow (frame,u,v)")
	cmd.Flags().StringVar(&f.reportDir, "report", "", "Write comparison charts to this directory")
	cmd.Flags().IntVarP(&f.maxFrames, "max-frames", "n", 0, "Stop after this many frames (0 = all; default from config)")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "Do not record the run in the store")
	cmd.Flags().StringVar(&f.dumpDir, "dump-frames", "", "Save every sample sent to the peer as a PNG in this directory")
	cmd.Flags().IntVar(&f.upscale, "upscale", 5, "Also save a nearest-neighbour preview enlarged this many times (1 = none)")
	cmd.MarkFlagRequired("frames")
	return cmd
}

// trackingSource remembers the last two samples handed to the session so
// the host side can recompute the flow the peer was asked for.
type trackingSource struct {
	src        session.FrameSource
	prev, last flow.Sample
}

func (t *trackingSource) Next() (flow.Sample, error) {
	s, err := t.src.Next()
	if err == nil {
		t.prev, t.last = t.last, s
	}
	return s, err
}

// benchResult collects the flow series of one run.
type benchResult struct {
	Peer      []series.FlowSample
	Local     []series.FlowSample
	Reference []series.FlowSample
	Summary   session.Summary
}

func runBench(cmd *cobra.Command, a *app, f runFlags) (err error) {
	ctx := cmd.Context()
	cfg := a.cfg

	ppOpts, err := cfg.PreprocessOptions()
	if err != nil {
		return err
	}
	src, err := preprocess.NewDirSource(f.frames, ppOpts)
	if err != nil {
		return err
	}
	frameSrc, err := withFrameDump(src, f.dumpDir, f.upscale)
	if err != nil {
		return err
	}
	sessOpts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	estCfg, err := cfg.EstimatorConfig()
	if err != nil {
		return err
	}
	local, err := reference.NewLocal(estCfg)
	if err != nil {
		return err
	}
	var table *reference.Table
	if f.reference != "" {
		if table, err = reference.LoadCSV(f.reference); err != nil {
			return err
		}
	}

	port := f.port
	if port == "" {
		port = cfg.GetPort()
	}
	var factory serialport.SerialPortFactory = serialport.RealFactory{}
	if f.dev {
		pc, err := cfg.PeerConfig()
		if err != nil {
			return err
		}
		factory = peer.LoopbackFactory{Config: pc}
		port = "loopback"
	} else if port == "" {
		return errors.New("no serial port: set --port, \"port\" in the config, or use --dev")
	}

	var (
		store *db.DB
		run   *db.Run
	)
	if !f.noStore {
		if store, err = a.openDB(); err != nil {
			return err
		}
		defer store.Close()
		run = &db.Run{Port: port, At: cfg.GetCoordinate(), Scale: sessOpts.Codec.Scale, ConfigJSON: cfg.JSON()}
		if err := store.CreateRun(run); err != nil {
			return err
		}
		monitoring.Logf("run %s started on %s", run.ID, port)
	}

	total := src.Len()
	if f.maxFrames > 0 {
		total = min(total, f.maxFrames)
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Exchanging frames"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)

	at := cfg.GetCoordinate()
	tracked := &trackingSource{src: frameSrc}
	var res benchResult
	runOpts := cfg.RunOptions()
	runOpts.MaxFrames = f.maxFrames
	runOpts.OnExchange = func(ex session.Exchange, _ flow.Sample) error {
		bar.Add(1)
		if !ex.HasFlow {
			return nil
		}
		res.Peer = append(res.Peer, series.NewFlowSample(ex.Frame, ex.Flow))

		want, err := local.Flow(ex.Frame, tracked.prev, tracked.last, at)
		if err != nil {
			return err
		}
		res.Local = append(res.Local, series.NewFlowSample(ex.Frame, want))
		if d := series.Magnitude(flow.Vector{U: ex.Flow.U - want.U, V: ex.Flow.V - want.V}); d > 2/sessOpts.Codec.Scale {
			monitoring.Logf("frame %d: peer %+v differs from host %+v", ex.Frame, ex.Flow, want)
		}

		if table != nil {
			ref, err := table.Flow(ex.Frame, tracked.prev, tracked.last, at)
			if err == nil {
				res.Reference = append(res.Reference, series.NewFlowSample(ex.Frame, ref))
			} else if !errors.Is(err, reference.ErrNoReference) {
				return err
			}
		}
		return nil
	}
	onError := runOpts.OnError
	runOpts.OnError = func(fe *session.FrameError) bool {
		bar.Add(1)
		return onError != nil && onError(fe)
	}

	runErr := session.With(factory, port, sessOpts, func(s *session.Session) error {
		var err error
		res.Summary, err = s.Run(ctx, tracked, runOpts)
		return err
	})
	bar.Finish()
	fmt.Fprintln(cmd.ErrOrStderr())

	if store != nil {
		if err := saveRun(store, run, res); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "frames=%d flows=%d failures=%d\n", res.Summary.Frames, res.Summary.Flows, res.Summary.Failures)
	if run != nil {
		fmt.Fprintf(out, "run %s\n", run.ID)
	}

	if f.reportDir != "" {
		against, name := res.Local, "host"
		if table != nil {
			against, name = res.Reference, "reference"
		}
		if err := writeReport(cmd, f.reportDir, port, [2]string{"peer", name}, res.Peer, against, a.cfg.SmoothOptions()); err != nil {
			return err
		}
	}
	return nil
}

func saveRun(store *db.DB, run *db.Run, res benchResult) error {
	if err := store.RecordFlows(run.ID, db.SourcePeer, res.Peer...); err != nil {
		return err
	}
	if err := store.RecordFlows(run.ID, db.SourceLocal, res.Local...); err != nil {
		return err
	}
	if err := store.RecordFlows(run.ID, db.SourceReference, res.Reference...); err != nil {
		return err
	}
	return store.FinishRun(run.ID, res.Summary.Frames, res.Summary.Flows, res.Summary.Failures, time.Now().UTC())
}
