package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/pipeline"
	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/internal/similarity"
)

// NewMatchCmd creates the match command
func NewMatchCmd() *cobra.Command {
	var (
		source  sourceOptions
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find similar sentence pairs across the corpus",
		Long: `Compute pairwise cosine similarity over all sentence embeddings and
write every pair at or above the minimum threshold to the match artifact.

Examples:
  docconflicts match
  docconflicts match --embeddings embeddings/sentence_embeddings.json --out analysis/sentence_matches.json
  docconflicts match --db --corpus hr-policies`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			start := time.Now()

			store, err := source.loadStore(ctx, cfg)
			if err != nil {
				return err
			}

			artifact, matches, err := pipeline.New(*cfg, logger).Match(ctx, store)
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = cfg.MatchesPath
			}
			if err := report.WriteJSON(path, artifact); err != nil {
				return fmt.Errorf("writing matches: %w", err)
			}

			logger.Info("matches written", "path", path, "matches", len(matches), "duration", time.Since(start))
			printMatchSummary(cmd.OutOrStdout(), similarity.Summarize(matches), path)
			return nil
		},
	}

	source.register(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Match artifact to write (default from config)")

	return cmd
}
