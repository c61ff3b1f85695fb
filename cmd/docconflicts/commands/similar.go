package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/internal/similarity"
	"github.com/todmy/doc-conflicts/internal/storage"
)

// NewSimilarCmd creates the similar command
func NewSimilarCmd() *cobra.Command {
	var (
		source sourceOptions
		k      int
	)

	cmd := &cobra.Command{
		Use:   "similar <sentence_id>",
		Short: "List the sentences most similar to one sentence",
		Long: `Rank every other sentence in the corpus by cosine similarity to the
given sentence and print the top results. With --db the ranking runs
inside Postgres on the pgvector cosine distance.

Examples:
  docconflicts similar leave_policy.md_12
  docconflicts similar leave_policy.md_12 -k 25 --db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k <= 0 {
				return errors.New("-k must be positive")
			}
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			var neighbors []similarity.Neighbor
			if source.fromDB {
				neighbors, err = similarFromDB(cmd.Context(), cfg, source.corpusName(cfg), args[0], k)
			} else {
				var store *embeddings.Store
				store, err = source.loadStore(cmd.Context(), cfg)
				if err == nil {
					neighbors, err = similarity.TopK(store, args[0], k)
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(neighbors) == 0 {
				fmt.Fprintln(out, mutedColor("No other sentences in the corpus"))
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCORE\tSENTENCE\tDOCUMENT\tTEXT")
			for _, n := range neighbors {
				fmt.Fprintf(tw, "%.4f\t%s\t%s\t%s\n", n.Score, n.Record.SentenceID, n.Record.Document, truncate(n.Record.Text, 60))
			}
			return tw.Flush()
		},
	}

	source.register(cmd)
	cmd.Flags().IntVarP(&k, "top", "k", 10, "Number of neighbors to show")

	return cmd
}

func similarFromDB(ctx context.Context, cfg *config.Config, corpus, sentenceID string, k int) ([]similarity.Neighbor, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	results, err := storage.NewPostgresSentenceRepository(db).FindSimilar(ctx, corpus, sentenceID, k)
	if err != nil {
		return nil, err
	}

	neighbors := make([]similarity.Neighbor, len(results))
	for i, r := range results {
		neighbors[i] = similarity.Neighbor{Record: r.Sentence.Record(), Score: r.Similarity}
	}
	return neighbors, nil
}
