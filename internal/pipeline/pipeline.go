// Package pipeline wires the similarity, aggregation, metadata and
// recommendation stages into a single batch run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/conflict"
	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/internal/metadata"
	"github.com/todmy/doc-conflicts/internal/recommend"
	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/internal/similarity"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Pipeline runs the conflict analysis over one corpus
type Pipeline struct {
	Config    config.Config
	Logger    *slog.Logger
	Matcher   similarity.Matcher
	Extractor metadata.Extractor
	Clock     func() time.Time
}

// Result is the output of a full run
type Result struct {
	Matches  []models.SimilarityMatch
	Artifact *report.MatchArtifact
	Report   *report.ConflictReport
	Digest   string
}

// New creates a pipeline with the dense matcher and the filename extractor
func New(cfg config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		Config: cfg,
		Logger: logger,
		Matcher: similarity.NewDenseMatcher(cfg.Thresholds,
			similarity.WithWorkers(cfg.Workers),
			similarity.WithBlockSize(cfg.BlockSize),
			similarity.WithLogger(logger),
		),
		Extractor: metadata.NewFilenameExtractor(),
		Clock:     time.Now,
	}
}

// Match runs the similarity stage and returns both the raw matches and the
// artifact that persists them.
func (p *Pipeline) Match(ctx context.Context, store *embeddings.Store) (*report.MatchArtifact, []models.SimilarityMatch, error) {
	start := time.Now()

	matches, err := p.Matcher.FindMatches(ctx, store)
	if err != nil {
		return nil, nil, fmt.Errorf("find matches: %w", err)
	}

	summary := similarity.Summarize(matches)
	p.Logger.Info("similarity stage complete",
		"sentences", store.Rows(),
		"documents", store.Documents(),
		"matches", summary.Total,
		"exact_duplicates", summary.ExactDuplicates,
		"high_similarity", summary.HighSimilarity,
		"potential_conflicts", summary.PotentialConflicts,
		"duration", time.Since(start),
	)

	return report.NewMatchArtifact(matches, p.Config.Thresholds, p.Clock()), matches, nil
}

// Conflicts aggregates matches into document pairs, classifies them and
// builds the final report.
func (p *Pipeline) Conflicts(ctx context.Context, matches []models.SimilarityMatch) (*report.ConflictReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	conflicts := conflict.NewAggregator(p.Config.Thresholds.MinConflictMatches).Aggregate(matches)
	meta := metadata.ExtractAll(p.Extractor, conflicts)
	classified := recommend.ClassifyAll(conflicts, meta, p.Config.Thresholds)
	recs := recommend.NewRecommender(p.Config.Thresholds).Recommend(classified, meta)

	r := report.NewConflictReport(classified, recs, meta, p.Config.Thresholds, p.Config.MaxMatchesPerPair, p.Clock())

	p.Logger.Info("conflict stage complete",
		"matches", len(matches),
		"document_pairs", r.Summary.TotalDocumentPairsWithConflicts,
		"documents", len(meta),
		"recommendations", r.Summary.TotalRemovalRecommendations,
		"high_confidence", r.Summary.HighConfidenceRecommendations,
		"duration", time.Since(start),
	)

	return r, nil
}

// Run executes every stage in memory. Nothing is written; callers persist
// the result only when Run succeeds.
func (p *Pipeline) Run(ctx context.Context, store *embeddings.Store) (*Result, error) {
	artifact, matches, err := p.Match(ctx, store)
	if err != nil {
		return nil, err
	}

	r, err := p.Conflicts(ctx, matches)
	if err != nil {
		return nil, err
	}

	digest, err := report.Digest(r)
	if err != nil {
		return nil, err
	}

	p.Logger.Debug("run complete", "digest", digest)

	return &Result{
		Matches:  matches,
		Artifact: artifact,
		Report:   r,
		Digest:   digest,
	}, nil
}
