package conflict

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Aggregator rolls sentence matches up into document pair conflicts
type Aggregator struct {
	minMatches int
}

// NewAggregator creates an aggregator that keeps pairs with at least
// minMatches cross-document matches. Zero or negative uses the default (3).
func NewAggregator(minMatches int) *Aggregator {
	if minMatches <= 0 {
		minMatches = config.DefaultMinConflictMatches
	}
	return &Aggregator{minMatches: minMatches}
}

// PairKey returns the two document ids in canonical (lexicographic) order
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

type pairKey struct {
	docA string
	docB string
}

// Aggregate groups matches by unordered document pair. Same-document matches
// are skipped and pairs with fewer than minMatches matches are dropped.
// Within a pair every match is oriented so DocumentA == DocA and ordered by
// score descending. Pairs are sorted by (match count, mean score) descending.
func (a *Aggregator) Aggregate(matches []models.SimilarityMatch) []models.DocumentPairConflict {
	grouped := make(map[pairKey][]models.SimilarityMatch)

	for _, m := range matches {
		// a same-document match is never a cross-document conflict
		if m.DocumentA == m.DocumentB {
			continue
		}

		docA, docB := PairKey(m.DocumentA, m.DocumentB)
		if m.DocumentA != docA {
			m = flip(m)
		}

		key := pairKey{docA: docA, docB: docB}
		grouped[key] = append(grouped[key], m)
	}

	conflicts := make([]models.DocumentPairConflict, 0, len(grouped))
	for key, pairMatches := range grouped {
		if len(pairMatches) < a.minMatches {
			continue
		}

		scores := make([]float64, len(pairMatches))
		for i, m := range pairMatches {
			scores[i] = m.Score
		}

		sort.SliceStable(pairMatches, func(i, j int) bool {
			return pairMatches[i].Score > pairMatches[j].Score
		})

		conflicts = append(conflicts, models.DocumentPairConflict{
			DocA:       key.docA,
			DocB:       key.docB,
			MatchCount: len(pairMatches),
			MeanScore:  stat.Mean(scores, nil),
			MaxScore:   floats.Max(scores),
			Matches:    pairMatches,
		})
	}

	SortConflicts(conflicts)
	return conflicts
}

// SortConflicts orders conflicts by match count then mean score, descending.
// Document ids break remaining ties so output is deterministic.
func SortConflicts(conflicts []models.DocumentPairConflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		ci, cj := conflicts[i], conflicts[j]
		if ci.MatchCount != cj.MatchCount {
			return ci.MatchCount > cj.MatchCount
		}
		if ci.MeanScore != cj.MeanScore {
			return ci.MeanScore > cj.MeanScore
		}
		if ci.DocA != cj.DocA {
			return ci.DocA < cj.DocA
		}
		return ci.DocB < cj.DocB
	})
}

// GroupByDocument indexes conflicts by each document they involve
func GroupByDocument(conflicts []models.DocumentPairConflict) map[string][]models.DocumentPairConflict {
	grouped := make(map[string][]models.DocumentPairConflict)

	for _, c := range conflicts {
		grouped[c.DocA] = append(grouped[c.DocA], c)
		grouped[c.DocB] = append(grouped[c.DocB], c)
	}

	return grouped
}

// Documents returns the distinct document ids of conflicts in first-seen order
func Documents(conflicts []models.DocumentPairConflict) []string {
	seen := make(map[string]bool)
	var docs []string

	for _, c := range conflicts {
		for _, d := range []string{c.DocA, c.DocB} {
			if !seen[d] {
				seen[d] = true
				docs = append(docs, d)
			}
		}
	}

	return docs
}

func flip(m models.SimilarityMatch) models.SimilarityMatch {
	m.SentenceIDA, m.SentenceIDB = m.SentenceIDB, m.SentenceIDA
	m.TextA, m.TextB = m.TextB, m.TextA
	m.DocumentA, m.DocumentB = m.DocumentB, m.DocumentA
	return m
}
