package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/todmy/doc-conflicts/pkg/models"
)

var ErrSentenceNotFound = errors.New("sentence not found")

// Sentence is one stored corpus sentence with its embedding
type Sentence struct {
	ID         uuid.UUID
	Corpus     string
	Document   string
	Position   int
	SentenceID string
	Text       string
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// SentenceRepository defines the interface for sentence storage operations
type SentenceRepository interface {
	CreateBatch(ctx context.Context, sentences []*Sentence) error
	ListByCorpus(ctx context.Context, corpus string) ([]*Sentence, error)
	CountByCorpus(ctx context.Context, corpus string) (int, error)
	DeleteByCorpus(ctx context.Context, corpus string) (int64, error)
	ReplaceCorpus(ctx context.Context, corpus string, sentences []*Sentence) (int64, error)
	FindSimilar(ctx context.Context, corpus, sentenceID string, limit int) ([]*SentenceWithSimilarity, error)
}

// SentenceWithSimilarity represents a sentence with its similarity score
type SentenceWithSimilarity struct {
	Sentence   *Sentence
	Similarity float64
}

// PostgresSentenceRepository implements SentenceRepository using PostgreSQL with pgvector
type PostgresSentenceRepository struct {
	db *sql.DB
}

// NewPostgresSentenceRepository creates a new PostgresSentenceRepository
func NewPostgresSentenceRepository(db *sql.DB) *PostgresSentenceRepository {
	return &PostgresSentenceRepository{db: db}
}

// SentencesFromRecords converts embedding records into rows of one corpus.
// Embeddings are stored as float32, the precision of the vector column.
func SentencesFromRecords(corpus string, records []models.EmbeddingRecord) []*Sentence {
	sentences := make([]*Sentence, len(records))
	for i, rec := range records {
		vec := make([]float32, len(rec.Vector))
		for j, v := range rec.Vector {
			vec[j] = float32(v)
		}
		sentences[i] = &Sentence{
			Corpus:     corpus,
			Document:   rec.Document,
			Position:   rec.Position,
			SentenceID: rec.SentenceID,
			Text:       rec.Text,
			Embedding:  pgvector.NewVector(vec),
		}
	}
	return sentences
}

// Record converts a stored sentence back into an embedding record
func (s *Sentence) Record() models.EmbeddingRecord {
	raw := s.Embedding.Slice()
	vec := make([]float64, len(raw))
	for i, v := range raw {
		vec[i] = float64(v)
	}
	return models.EmbeddingRecord{
		SentenceID: s.SentenceID,
		Text:       s.Text,
		Document:   s.Document,
		Position:   s.Position,
		Vector:     vec,
	}
}

// CreateBatch inserts multiple sentences in a single transaction
func (r *PostgresSentenceRepository) CreateBatch(ctx context.Context, sentences []*Sentence) error {
	if len(sentences) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertSentences(ctx, tx, sentences); err != nil {
		return err
	}

	return tx.Commit()
}

// ReplaceCorpus deletes the stored sentences of corpus and inserts the new
// ones in one transaction. On any failure the previous corpus is kept.
func (r *PostgresSentenceRepository) ReplaceCorpus(ctx context.Context, corpus string, sentences []*Sentence) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sentences WHERE corpus = $1`, corpus)
	if err != nil {
		return 0, fmt.Errorf("delete corpus %s: %w", corpus, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if len(sentences) > 0 {
		if err := insertSentences(ctx, tx, sentences); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return removed, nil
}

func insertSentences(ctx context.Context, tx *sql.Tx, sentences []*Sentence) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sentences (id, corpus, document, position, sentence_id, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, s := range sentences {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}

		_, err := stmt.ExecContext(ctx,
			s.ID,
			s.Corpus,
			s.Document,
			s.Position,
			s.SentenceID,
			s.Text,
			s.Embedding,
			s.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert sentence %s: %w", s.SentenceID, err)
		}
	}
	return nil
}

// ListByCorpus retrieves all sentences of a corpus in document order
func (r *PostgresSentenceRepository) ListByCorpus(ctx context.Context, corpus string) ([]*Sentence, error) {
	query := `
		SELECT id, corpus, document, position, sentence_id, text, embedding, created_at
		FROM sentences
		WHERE corpus = $1
		ORDER BY document ASC, position ASC, sentence_id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, corpus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sentences []*Sentence
	for rows.Next() {
		s := &Sentence{}
		err := rows.Scan(
			&s.ID,
			&s.Corpus,
			&s.Document,
			&s.Position,
			&s.SentenceID,
			&s.Text,
			&s.Embedding,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return sentences, nil
}

// ListRecords returns the corpus as embedding records
func (r *PostgresSentenceRepository) ListRecords(ctx context.Context, corpus string) ([]models.EmbeddingRecord, error) {
	sentences, err := r.ListByCorpus(ctx, corpus)
	if err != nil {
		return nil, err
	}

	records := make([]models.EmbeddingRecord, len(sentences))
	for i, s := range sentences {
		records[i] = s.Record()
	}
	return records, nil
}

// CountByCorpus returns the number of stored sentences in a corpus
func (r *PostgresSentenceRepository) CountByCorpus(ctx context.Context, corpus string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sentences WHERE corpus = $1`, corpus).Scan(&count)
	return count, err
}

// DeleteByCorpus removes all sentences of a corpus and reports how many
func (r *PostgresSentenceRepository) DeleteByCorpus(ctx context.Context, corpus string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sentences WHERE corpus = $1`, corpus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindSimilar ranks the other sentences of a corpus by pgvector cosine
// distance to the stored embedding of sentenceID.
func (r *PostgresSentenceRepository) FindSimilar(ctx context.Context, corpus, sentenceID string, limit int) ([]*SentenceWithSimilarity, error) {
	if limit <= 0 {
		limit = 10
	}

	var target pgvector.Vector
	err := r.db.QueryRowContext(ctx,
		`SELECT embedding FROM sentences WHERE corpus = $1 AND sentence_id = $2`,
		corpus, sentenceID,
	).Scan(&target)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSentenceNotFound, sentenceID)
	}
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, corpus, document, position, sentence_id, text, embedding, created_at,
			   1 - (embedding <=> $1) AS similarity
		FROM sentences
		WHERE corpus = $2 AND sentence_id <> $3
		ORDER BY embedding <=> $1, sentence_id ASC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, target, corpus, sentenceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SentenceWithSimilarity
	for rows.Next() {
		s := &Sentence{}
		var similarity float64
		err := rows.Scan(
			&s.ID,
			&s.Corpus,
			&s.Document,
			&s.Position,
			&s.SentenceID,
			&s.Text,
			&s.Embedding,
			&s.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, &SentenceWithSimilarity{Sentence: s, Similarity: similarity})
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
