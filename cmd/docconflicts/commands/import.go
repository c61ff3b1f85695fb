package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/internal/storage"
)

// NewImportCmd creates the import command
func NewImportCmd() *cobra.Command {
	var (
		source  sourceOptions
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load an embedding artifact into the database",
		Long: `Validate an embedding artifact and store its sentences under a corpus
name so later runs can read them with --db.

Examples:
  docconflicts import --corpus hr-policies
  docconflicts import --embeddings new.json --corpus hr-policies --replace`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			path := source.embeddingsPath
			if path == "" {
				path = cfg.EmbeddingsPath
			}
			store, err := embeddings.LoadFile(path)
			if err != nil {
				return err
			}

			db, err := openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			corpus := source.corpusName(cfg)
			repo := storage.NewPostgresSentenceRepository(db)

			sentences := storage.SentencesFromRecords(corpus, store.Records())

			existing, err := repo.CountByCorpus(ctx, corpus)
			if err != nil {
				return err
			}
			if existing > 0 {
				if !replace {
					return fmt.Errorf("corpus %q already has %d sentences (use --replace)", corpus, existing)
				}
				removed, err := repo.ReplaceCorpus(ctx, corpus, sentences)
				if err != nil {
					return err
				}
				logger.Info("replaced corpus", "corpus", corpus, "removed", removed)
			} else if err := repo.CreateBatch(ctx, sentences); err != nil {
				return err
			}

			logger.Info("corpus imported", "corpus", corpus, "sentences", store.Rows(), "documents", store.Documents())
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d sentences from %d documents into %s\n",
				goodColor("Imported"), store.Rows(), store.Documents(), corpus)
			return nil
		},
	}

	cmd.Flags().StringVar(&source.embeddingsPath, "embeddings", "", "Embedding artifact to read (default from config)")
	cmd.Flags().StringVar(&source.corpus, "corpus", "", "Corpus name (default from config)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace sentences already stored for the corpus")

	return cmd
}
