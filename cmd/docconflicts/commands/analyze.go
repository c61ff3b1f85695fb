package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/pipeline"
	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/internal/storage"
)

// NewAnalyzeCmd creates the analyze command
func NewAnalyzeCmd() *cobra.Command {
	var (
		source  sourceOptions
		persist bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run matching and conflict analysis in one pass",
		Long: `Run every stage in memory and write both artifacts once all of them
succeeded. With --persist the report is also stored in the database so
the API can serve it.

Examples:
  docconflicts analyze
  docconflicts analyze --db --corpus hr-policies --persist`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			store, err := source.loadStore(ctx, cfg)
			if err != nil {
				return err
			}

			res, err := pipeline.New(*cfg, logger).Run(ctx, store)
			if err != nil {
				return err
			}

			// matches first: after a failed report write, conflicts can rerun from them
			if err := report.WriteJSON(cfg.MatchesPath, res.Artifact); err != nil {
				return fmt.Errorf("writing matches: %w", err)
			}
			if err := report.WriteJSON(cfg.ReportPath, res.Report); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			logger.Info("artifacts written", "matches", cfg.MatchesPath, "report", cfg.ReportPath, "digest", res.Digest)

			if persist {
				db, err := openDB(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				run := &storage.Run{
					Corpus: source.corpusName(cfg),
					Digest: res.Digest,
					Report: res.Report,
				}
				if err := storage.NewPostgresRunRepository(db).Create(ctx, run); err != nil {
					return fmt.Errorf("saving run: %w", err)
				}
				logger.Info("run saved", "run_id", run.ID, "corpus", run.Corpus)
				fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s\n", labelColor("Run ID:"), run.ID)
			}

			printReport(cmd.OutOrStdout(), res.Report, limit, cfg.Thresholds.HighConfidenceCutoff)
			return nil
		},
	}

	source.register(cmd)
	cmd.Flags().BoolVar(&persist, "persist", false, "Store the report in the database")
	cmd.Flags().IntVar(&limit, "limit", 15, "Conflicting pairs to print (0 for all)")

	return cmd
}
