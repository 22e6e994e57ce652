package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run store schema",
	}

	withDB := func(fn func(*cobra.Command, *db.DB, []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, err := db.OpenDB(a.database())
			if err != nil {
				return err
			}
			defer store.Close()
			return fn(cmd, store, args)
		}
	}
	version := func(cmd *cobra.Command, store *db.DB) error {
		v, dirty, err := store.MigrateVersion()
		if err != nil {
			return err
		}
		latest, err := db.LatestMigrationVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version=%d latest=%d dirty=%t\n", v, latest, dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				if err := store.MigrateUp(); err != nil {
					return err
				}
				return version(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				if err := store.MigrateDown(); err != nil {
					return err
				}
				return version(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, store *db.DB, _ []string) error {
				return version(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "to VERSION",
			Short: "Migrate up or down to VERSION",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, store *db.DB, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := store.MigrateTo(uint(v)); err != nil {
					return err
				}
				return version(cmd, store)
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark VERSION as applied without running it (recovers a dirty schema)",
			Args:  cobra.ExactArgs(1),
			RunE: withDB(func(cmd *cobra.Command, store *db.DB, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				if err := store.MigrateForce(v); err != nil {
					return err
				}
				return version(cmd, store)
			}),
		},
	)
	return cmd
}
