// Package cli implements the ddx command line interface
package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ddx-ranking-engine/internal/app"
	"github.com/ddx-ranking-engine/internal/config"
	"github.com/ddx-ranking-engine/internal/domain"
)

// Version is overridden at build time with -ldflags
var Version = "dev"

type rootOptions struct {
	configFile string
	verbose    bool
}

// NewRootCmd builds the ddx command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ddx",
		Short: "Differential diagnosis ranking engine",
		Long: `ddx ranks a differential diagnosis for a patient profile by merging
candidates from a case bank, a symptom label mapping, a clinical QA corpus
and clinical guidelines, then applying demographic, negation and lab
exclusions.

Configuration is read from config.yaml in ., ./config or
/etc/ddx-ranking-engine/, overridable with DDX_* environment variables.

Examples:
  ddx rank --profile patient.json --top-k 5
  ddx sources
  ddx audit list --limit 10
  ddx migrate up --dsn postgres://localhost/ddx?sslmode=disable
  ddx setup register --app-config ./config.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: search ., ./config, /etc/ddx-ranking-engine/)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level to stderr")

	root.AddCommand(
		newRankCmd(opts),
		newSourcesCmd(opts),
		newAuditCmd(opts),
		newMigrateCmd(opts),
		newSetupCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the ddx command tree
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) loadConfig() (*domain.Config, error) {
	manager, err := config.NewManager(o.configFile)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return manager.GetConfig(), nil
}

func (o *rootOptions) logger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{})
	logger.SetLevel(logrus.ErrorLevel)
	if o.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// openApp builds the full application from configuration
func (o *rootOptions) openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, o.logger(cmd))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ddx %s\n", Version)
		},
	}
}
