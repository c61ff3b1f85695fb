package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/internal/storage"
)

// sourceOptions selects where sentence embeddings are read from
type sourceOptions struct {
	embeddingsPath string
	fromDB         bool
	corpus         string
}

func (o *sourceOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.embeddingsPath, "embeddings", "", "Embedding artifact to read (default from config)")
	cmd.Flags().BoolVar(&o.fromDB, "db", false, "Read sentences from the database instead of a file")
	cmd.Flags().StringVar(&o.corpus, "corpus", "", "Corpus name (default from config)")
}

func (o *sourceOptions) corpusName(cfg *config.Config) string {
	if o.corpus != "" {
		return o.corpus
	}
	return cfg.Corpus
}

// loadStore reads the embedding matrix from the file or the database
func (o *sourceOptions) loadStore(ctx context.Context, cfg *config.Config) (*embeddings.Store, error) {
	if o.fromDB {
		db, err := openDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		defer db.Close()

		return embeddings.LoadRepository(ctx, storage.NewPostgresSentenceRepository(db), o.corpusName(cfg))
	}

	path := o.embeddingsPath
	if path == "" {
		path = cfg.EmbeddingsPath
	}
	return embeddings.LoadFile(path)
}

// openDB connects to Postgres and makes sure the schema exists
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url not configured (set DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := storage.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
