package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

-- Sentences with their embeddings, grouped by corpus
CREATE TABLE IF NOT EXISTS sentences (
    id UUID PRIMARY KEY,
    corpus TEXT NOT NULL,
    document TEXT NOT NULL,
    position INTEGER NOT NULL CHECK(position >= 0),
    sentence_id TEXT NOT NULL,
    text TEXT NOT NULL,
    embedding vector NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (corpus, sentence_id)
);

CREATE INDEX IF NOT EXISTS idx_sentences_corpus ON sentences(corpus, document, position);

-- Conflict reports produced by analysis runs
CREATE TABLE IF NOT EXISTS conflict_runs (
    id UUID PRIMARY KEY,
    corpus TEXT NOT NULL,
    digest TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    report JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conflict_runs_corpus ON conflict_runs(corpus, created_at DESC);
`

// Migrate creates the tables used by the repositories if they do not exist
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
