package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/pipeline"
	"github.com/todmy/doc-conflicts/internal/report"
)

// NewConflictsCmd creates the conflicts command
func NewConflictsCmd() *cobra.Command {
	var (
		matchesPath string
		outPath     string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Group sentence matches into document conflicts and recommendations",
		Long: `Read the match artifact, aggregate matches by document pair, classify
each pair from its file names and write the conflict report with removal
recommendations.

Examples:
  docconflicts conflicts
  docconflicts conflicts --matches analysis/sentence_matches.json --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			in := matchesPath
			if in == "" {
				in = cfg.MatchesPath
			}
			artifact, err := report.ReadMatchArtifact(in)
			if err != nil {
				return err
			}

			r, err := pipeline.New(*cfg, logger).Conflicts(cmd.Context(), artifact.Matches)
			if err != nil {
				return err
			}

			out := outPath
			if out == "" {
				out = cfg.ReportPath
			}
			if err := report.WriteJSON(out, r); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}

			logger.Info("report written", "path", out)
			printReport(cmd.OutOrStdout(), r, limit, cfg.Thresholds.HighConfidenceCutoff)
			return nil
		},
	}

	cmd.Flags().StringVar(&matchesPath, "matches", "", "Match artifact to read (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Conflict report to write (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 15, "Conflicting pairs to print (0 for all)")

	return cmd
}
