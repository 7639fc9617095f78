package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ddx-ranking-engine/internal/domain"
)

type rankOptions struct {
	profile string
	topK    int
	json    bool
}

func newRankCmd(root *rootOptions) *cobra.Command {
	opts := &rankOptions{}
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a differential diagnosis for a patient profile",
		Long: `Reads a patient profile (JSON) and prints the ranked differential.

The profile carries symptoms, negations, demographics, labs and an optional
clinical note:

  {
    "symptoms": ["chest pain", "sweating"],
    "negations": ["fever"],
    "demographics": {"gender": "female", "age": 54},
    "labs": {"troponin": "normal", "spo2": "95"},
    "clinical_text": "Crushing chest pain for two hours."
  }

Use --profile - to read the profile from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRank(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.profile, "profile", "p", "", "patient profile JSON file, or - for stdin")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "number of diagnoses to return (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output the full result as JSON")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func runRank(cmd *cobra.Command, root *rootOptions, opts *rankOptions) error {
	profile, err := readProfile(cmd.InOrStdin(), opts.profile)
	if err != nil {
		return err
	}

	application, err := root.openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.Engine.RankDetailed(cmd.Context(), profile, opts.topK)
	if err != nil {
		return fmt.Errorf("ranking failed: %w", err)
	}

	if opts.json {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	renderResult(cmd.OutOrStdout(), result)
	return nil
}

func readProfile(stdin io.Reader, path string) (*domain.PatientProfile, error) {
	var (
		data []byte
		err  error
	)
	switch path {
	case "":
		return nil, errors.New("a profile is required")
	case "-":
		data, err = io.ReadAll(stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile domain.PatientProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

func newSourcesCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List evidence sources and whether their corpora loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := root.openApp(cmd)
			if err != nil {
				return err
			}
			defer application.Close()

			stats := application.Engine.Sources()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			renderSources(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
