package similarity

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// SimilarPair represents a pair of similar rows with their similarity score.
type SimilarPair struct {
	Idx1       int     // Index of first row, always < Idx2
	Idx2       int     // Index of second row
	Similarity float64 // Cosine similarity
}

// ClassifyTier assigns a match tier to a score. The second result is false
// when the score is below the minimum similarity and the pair must be dropped.
// Bands are checked from the top so 1.0 never lands in high_similarity.
func ClassifyTier(score float64, t config.Thresholds) (models.MatchTier, bool) {
	switch {
	case score >= t.ExactDuplicate:
		return models.TierExactDuplicate, true
	case score >= t.HighSimilarity:
		return models.TierHighSimilarity, true
	case score >= t.MinSimilarity:
		return models.TierPotentialConflict, true
	default:
		return "", false
	}
}

// scanBlock computes the Gram rows [start, end) of the unit matrix against
// rows [start, n) and keeps the upper-triangle pairs at or above threshold.
// Only columns j > i are read, so self pairs and mirrored pairs never appear.
func scanBlock(unit *mat.Dense, start, end int, threshold float64) []SimilarPair {
	n, d := unit.Dims()

	rows := unit.Slice(start, end, 0, d)
	cols := unit.Slice(start, n, 0, d)

	var gram mat.Dense
	gram.Mul(rows, cols.T())

	var pairs []SimilarPair
	for i := start; i < end; i++ {
		for j := i + 1; j < n; j++ {
			sim := clampScore(gram.At(i-start, j-start))
			if sim >= threshold {
				pairs = append(pairs, SimilarPair{
					Idx1:       i,
					Idx2:       j,
					Similarity: sim,
				})
			}
		}
	}

	return pairs
}

// sortPairs orders pairs by similarity descending. The sort is stable so
// equal scores keep scan order (lower Idx1, then lower Idx2).
func sortPairs(pairs []SimilarPair) {
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Similarity > pairs[b].Similarity
	})
}
