package similarity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// ErrSentenceNotFound is returned by TopK for an id missing from the store.
var ErrSentenceNotFound = errors.New("sentence not found")

// Matcher finds every unordered sentence pair whose similarity reaches the
// minimum threshold. Results are sorted by score descending.
type Matcher interface {
	FindMatches(ctx context.Context, store *embeddings.Store) ([]models.SimilarityMatch, error)
}

// DenseMatcher computes the exact cosine Gram matrix, one block of rows at a
// time, so only the qualifying pairs are ever held in memory together.
type DenseMatcher struct {
	thresholds config.Thresholds
	workers    int
	blockSize  int
	logger     *slog.Logger
}

// MatcherOption configures a DenseMatcher
type MatcherOption func(*DenseMatcher)

// WithWorkers sets how many row blocks are computed concurrently
func WithWorkers(n int) MatcherOption {
	return func(m *DenseMatcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithBlockSize sets the number of rows per Gram block
func WithBlockSize(n int) MatcherOption {
	return func(m *DenseMatcher) {
		if n > 0 {
			m.blockSize = n
		}
	}
}

// WithLogger sets the logger used for progress output
func WithLogger(l *slog.Logger) MatcherOption {
	return func(m *DenseMatcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewDenseMatcher creates a matcher for the given thresholds
func NewDenseMatcher(thresholds config.Thresholds, opts ...MatcherOption) *DenseMatcher {
	m := &DenseMatcher{
		thresholds: thresholds,
		workers:    1,
		blockSize:  config.DefaultBlockSize,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// FindMatches returns all pairs (i < j) with similarity >= MinSimilarity,
// classified into tiers and sorted by score descending (stable).
func (m *DenseMatcher) FindMatches(ctx context.Context, store *embeddings.Store) ([]models.SimilarityMatch, error) {
	n := store.Rows()
	if n == 0 {
		return []models.SimilarityMatch{}, nil
	}

	unit, err := normalizeRows(store)
	if err != nil {
		return nil, err
	}

	numBlocks := (n + m.blockSize - 1) / m.blockSize
	blocks := make([][]SimilarPair, numBlocks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for b := 0; b < numBlocks; b++ {
		b := b
		start := b * m.blockSize
		end := min(start+m.blockSize, n)

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// each block writes only its own slot
			blocks[b] = scanBlock(unit, start, end, m.thresholds.MinSimilarity)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute similarity blocks: %w", err)
	}

	total := 0
	for _, bp := range blocks {
		total += len(bp)
	}
	pairs := make([]SimilarPair, 0, total)
	for _, bp := range blocks {
		pairs = append(pairs, bp...)
	}
	sortPairs(pairs)

	matches := make([]models.SimilarityMatch, 0, len(pairs))
	for _, p := range pairs {
		tier, ok := ClassifyTier(p.Similarity, m.thresholds)
		if !ok {
			continue
		}
		rec1 := store.Record(p.Idx1)
		rec2 := store.Record(p.Idx2)
		matches = append(matches, models.SimilarityMatch{
			SentenceIDA: rec1.SentenceID,
			SentenceIDB: rec2.SentenceID,
			TextA:       rec1.Text,
			TextB:       rec2.Text,
			DocumentA:   rec1.Document,
			DocumentB:   rec2.Document,
			Score:       p.Similarity,
			Tier:        tier,
		})
	}

	m.logger.Debug("similarity scan complete",
		"sentences", n,
		"blocks", numBlocks,
		"workers", m.workers,
		"matches", len(matches),
	)

	return matches, nil
}

// Neighbor is a sentence ranked by similarity to a query sentence
type Neighbor struct {
	Record models.EmbeddingRecord
	Score  float64
}

// TopK returns the k sentences most similar to sentenceID, excluding itself,
// sorted by score descending. k <= 0 returns every other sentence.
func TopK(store *embeddings.Store, sentenceID string, k int) ([]Neighbor, error) {
	target, ok := store.Index(sentenceID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSentenceNotFound, sentenceID)
	}

	unit, err := normalizeRows(store)
	if err != nil {
		return nil, err
	}

	n, _ := unit.Dims()
	var scores mat.VecDense
	scores.MulVec(unit, unit.RowView(target))

	neighbors := make([]Neighbor, 0, n-1)
	for i := 0; i < n; i++ {
		if i == target {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			Record: store.Record(i),
			Score:  clampScore(scores.AtVec(i)),
		})
	}

	sort.SliceStable(neighbors, func(a, b int) bool {
		return neighbors[a].Score > neighbors[b].Score
	})

	if k > 0 && k < len(neighbors) {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// MatchSummary counts matches per tier
type MatchSummary struct {
	Total              int `json:"total_matches"`
	ExactDuplicates    int `json:"exact_duplicates"`
	HighSimilarity     int `json:"high_similarity"`
	PotentialConflicts int `json:"potential_conflicts"`
	DocumentPairs      int `json:"document_pairs_with_matches"`
	SameDocument       int `json:"same_document_matches"`
}

// Summarize counts matches by tier and by distinct document pair
func Summarize(matches []models.SimilarityMatch) MatchSummary {
	s := MatchSummary{Total: len(matches)}
	pairs := make(map[[2]string]struct{})

	for _, m := range matches {
		switch m.Tier {
		case models.TierExactDuplicate:
			s.ExactDuplicates++
		case models.TierHighSimilarity:
			s.HighSimilarity++
		case models.TierPotentialConflict:
			s.PotentialConflicts++
		}

		a, b := m.DocumentA, m.DocumentB
		if b < a {
			a, b = b, a
		}
		pairs[[2]string{a, b}] = struct{}{}
		if a == b {
			s.SameDocument++
		}
	}

	s.DocumentPairs = len(pairs)
	return s
}
