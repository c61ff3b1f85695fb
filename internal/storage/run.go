package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/todmy/doc-conflicts/internal/report"
)

var ErrRunNotFound = errors.New("run not found")

const defaultListLimit = 50

// Run is a persisted conflict report
type Run struct {
	ID        uuid.UUID              `json:"id"`
	Corpus    string                 `json:"corpus"`
	Digest    string                 `json:"digest"`
	CreatedAt time.Time              `json:"created_at"`
	Summary   report.Summary         `json:"summary"`
	Report    *report.ConflictReport `json:"report,omitempty"`
}

// RunRepository defines the interface for run storage operations
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	List(ctx context.Context, corpus string, limit int) ([]*Run, error)
	Latest(ctx context.Context, corpus string) (*Run, error)
}

// PostgresRunRepository implements RunRepository using PostgreSQL
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgresRunRepository
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// Create inserts a run. The report is stored as JSONB.
func (r *PostgresRunRepository) Create(ctx context.Context, run *Run) error {
	if run.Report == nil {
		return errors.New("run has no report")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Summary = run.Report.Summary

	data, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO conflict_runs (id, corpus, digest, created_at, report)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.Corpus,
		run.Digest,
		run.CreatedAt,
		data,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// GetByID retrieves a run with its full report
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, corpus, digest, created_at, report
		FROM conflict_runs
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// Latest retrieves the most recent run of a corpus
func (r *PostgresRunRepository) Latest(ctx context.Context, corpus string) (*Run, error) {
	query := `
		SELECT id, corpus, digest, created_at, report
		FROM conflict_runs
		WHERE corpus = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, corpus)
}

func (r *PostgresRunRepository) getOne(ctx context.Context, query string, arg any) (*Run, error) {
	run := &Run{}
	var data []byte

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&run.ID,
		&run.Corpus,
		&run.Digest,
		&run.CreatedAt,
		&data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	run.Report = &report.ConflictReport{}
	if err := json.Unmarshal(data, run.Report); err != nil {
		return nil, fmt.Errorf("decode report of run %s: %w", run.ID, err)
	}
	run.Summary = run.Report.Summary

	return run, nil
}

// List returns the newest runs of a corpus without their reports.
// An empty corpus lists runs of every corpus.
func (r *PostgresRunRepository) List(ctx context.Context, corpus string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT id, corpus, digest, created_at, report->'summary'
		FROM conflict_runs
		WHERE ($1 = '' OR corpus = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, corpus, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var summary []byte
		err := rows.Scan(
			&run.ID,
			&run.Corpus,
			&run.Digest,
			&run.CreatedAt,
			&summary,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(summary, &run.Summary); err != nil {
			return nil, fmt.Errorf("decode summary of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}
