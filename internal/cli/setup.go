package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddx-ranking-engine/internal/setup"
)

func newSetupCmd() *cobra.Command {
	opts := &setup.Options{}
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the ddx MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&opts.ClientConfigPath, "client-config", "", "MCP client config file (default: the desktop client's config for this OS)")
	cmd.PersistentFlags().StringVar(&opts.ServerName, "name", setup.DefaultServerName, "server entry name")

	register := &cobra.Command{
		Use:   "register",
		Short: "Add or update the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entry, err := setup.Register(*opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s -> %s\n", opts.ServerName, entry.Command)
			fmt.Fprintln(cmd.OutOrStdout(), helpStyle.Render("Restart the MCP client to pick up the change."))
			return nil
		},
	}
	register.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to the MCP server binary (default: search PATH)")
	register.Flags().StringVar(&opts.AppConfigPath, "app-config", "", "ddx config.yaml the server should load")
	register.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory for the server")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := setup.Unregister(*opts)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not registered\n", opts.ServerName)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", opts.ServerName)
			return nil
		},
	}

	var asJSON bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the registration and any problems with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := setup.GetStatus(*opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "client config: %s\n", st.ClientConfigPath)
			fmt.Fprintf(w, "registered:    %t\n", st.Registered)
			if st.Registered {
				fmt.Fprintf(w, "command:       %s\n", st.Command)
			}
			fmt.Fprintf(w, "data dir:      %s\n", st.DataDir)
			for _, issue := range st.Issues {
				fmt.Fprintln(w, warningStyle.Render("! ")+issue)
			}
			return nil
		},
	}
	status.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	cmd.AddCommand(register, remove, status)
	return cmd
}
