package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/config"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/db"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/monitoring"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/version"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg *config.BenchConfig
}

func (a *app) setup(cmd *cobra.Command) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	monitoring.UseSlog(monitoring.NewConsoleLogger(cmd.ErrOrStderr(), level))

	if a.configPath == "" {
		a.cfg = config.DefaultBenchConfig()
		return nil
	}
	cfg, err := config.LoadBenchConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) database() string {
	if a.dbPath != "" {
		return a.dbPath
	}
	return a.cfg.GetDatabase()
}

func (a *app) openDB() (*db.DB, error) {
	store, err := db.NewDB(a.database())
	if err != nil {
		return nil, fmt.Errorf("failed to open run store %s: %w", a.database(), err)
	}
	return store, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "flowbench",
		Short:         "Optical flow peer bench",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "JSON bench config (default: built-in defaults)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "Run store path (overrides the config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	root.AddCommand(
		newRunCmd(a),
		newEstimateCmd(a),
		newPeerCmd(a),
		newCompareCmd(a),
		newRunsCmd(a),
		newMigrateCmd(a),
		newPortsCmd(a),
	)
	return root
}

// Execute runs the command tree until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
