package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddx-ranking-engine/internal/audit"
)

var errNoDSN = errors.New("no database URL: pass --dsn or set audit.dsn")

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL audit schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL URL (default: audit.dsn from config)")

	run := func(action func(cmd *cobra.Command, mr *audit.MigrationRunner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			url := dsn
			if url == "" {
				cfg, err := root.loadConfig()
				if err != nil {
					return err
				}
				url = cfg.Audit.DSN
			}
			if url == "" {
				return errNoDSN
			}

			mr, err := audit.NewMigrationRunner(url, root.logger(cmd))
			if err != nil {
				return err
			}
			defer mr.Close()
			return action(cmd, mr)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, mr *audit.MigrationRunner) error {
				if err := mr.Up(); err != nil {
					return err
				}
				return printVersion(cmd, mr)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, mr *audit.MigrationRunner) error {
				if err := mr.Down(); err != nil {
					return err
				}
				return printVersion(cmd, mr)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			Args:  cobra.NoArgs,
			RunE:  run(printVersion),
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, mr *audit.MigrationRunner) error {
	version, dirty, err := mr.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
