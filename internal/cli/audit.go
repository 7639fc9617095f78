package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ddx-ranking-engine/internal/app"
	"github.com/ddx-ranking-engine/internal/audit"
	"github.com/ddx-ranking-engine/internal/config"
)

var errAuditDisabled = errors.New("audit trail is disabled: set audit.driver to sqlite or postgres")

func newAuditCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect recorded ranking runs",
	}
	cmd.AddCommand(
		newAuditListCmd(root),
		newAuditShowCmd(root),
		newAuditExportCmd(root),
	)
	return cmd
}

// openAudit opens the app and fails when no audit store is configured
func (o *rootOptions) openAudit(cmd *cobra.Command) (*app.App, error) {
	application, err := o.openApp(cmd)
	if err != nil {
		return nil, err
	}
	if application.Audit == nil {
		application.Close()
		return nil, errAuditDisabled
	}
	return application, nil
}

func newAuditListCmd(root *rootOptions) *cobra.Command {
	var (
		limit  int
		offset int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			if offset < 0 {
				return fmt.Errorf("--offset must not be negative, got %d", offset)
			}

			application, err := root.openAudit(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			runs, err := application.Audit.List(cmd.Context(), limit, offset)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			total, err := application.Audit.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count runs: %w", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			renderAuditRuns(cmd.OutOrStdout(), runs, total)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newAuditShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print one recorded run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := root.openAudit(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			record, err := application.Audit.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}
}

func newAuditExportCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every recorded run as one JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := root.openAudit(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			if save && output == "" {
				if err := config.EnsureDataDir(); err != nil {
					return fmt.Errorf("failed to create data directory: %w", err)
				}
				output = filepath.Join(config.ExportDir(), fmt.Sprintf("audit-%s.json", time.Now().UTC().Format("20060102T150405Z")))
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := audit.ExportJSON(cmd.Context(), application.Audit, w); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&save, "save", false, "write a timestamped file under the data directory's exports/")
	return cmd
}
