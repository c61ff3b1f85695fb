// Package report builds the persisted artifacts of a pipeline run: the
// sentence match artifact and the final conflict report.
package report

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/internal/embeddings"
	"github.com/todmy/doc-conflicts/internal/similarity"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Errors returned when reading artifacts back
var (
	ErrArtifactNotFound  = embeddings.ErrArtifactNotFound
	ErrMalformedArtifact = embeddings.ErrMalformedArtifact
	ErrDegenerateVector  = similarity.ErrDegenerateVector
)

const scorePrecision = 1e4

const matchNote = "Pairs below the minimum similarity threshold are not stored"

// MatchThresholds documents the tier boundaries used for a match artifact
type MatchThresholds struct {
	ExactDuplicate    float64 `json:"exact_duplicate"`
	HighSimilarity    float64 `json:"high_similarity"`
	PotentialConflict float64 `json:"potential_conflict"`
}

// MatchArtifact is the persisted output of the similarity stage
type MatchArtifact struct {
	TotalMatches               int                      `json:"total_matches"`
	GeneratedAt                time.Time                `json:"generated_at"`
	MinimumSimilarityThreshold float64                  `json:"minimum_similarity_threshold"`
	Note                       string                   `json:"note"`
	Thresholds                 MatchThresholds          `json:"thresholds"`
	Matches                    []models.SimilarityMatch `json:"matches"`
}

// FilteringCriteria records which matches were eligible for aggregation
type FilteringCriteria struct {
	MinimumConflictsPerPair     int  `json:"minimum_conflicts_per_pair"`
	ExcludesSameDocumentMatches bool `json:"excludes_same_document_matches"`
}

// Summary holds headline counts of a conflict report
type Summary struct {
	TotalDocumentPairsWithConflicts int `json:"total_document_pairs_with_conflicts"`
	TotalRemovalRecommendations     int `json:"total_removal_recommendations"`
	HighConfidenceRecommendations   int `json:"high_confidence_recommendations"`
}

// ConflictReport is the final output of a run
type ConflictReport struct {
	AnalysisDate           time.Time                          `json:"analysis_date"`
	FilteringCriteria      FilteringCriteria                  `json:"filtering_criteria"`
	Summary                Summary                            `json:"summary"`
	DocumentConflicts      []models.DocumentPairConflict      `json:"document_conflicts"`
	RemovalRecommendations []models.Recommendation            `json:"removal_recommendations"`
	DocumentMetadata       map[string]models.DocumentMetadata `json:"document_metadata"`
}

// NewMatchArtifact wraps matches for persistence. Scores are rounded to four
// decimals; the input slice is left untouched.
func NewMatchArtifact(matches []models.SimilarityMatch, t config.Thresholds, generatedAt time.Time) *MatchArtifact {
	rounded := make([]models.SimilarityMatch, len(matches))
	for i, m := range matches {
		m.Score = Round(m.Score)
		rounded[i] = m
	}

	return &MatchArtifact{
		TotalMatches:               len(rounded),
		GeneratedAt:                generatedAt.UTC(),
		MinimumSimilarityThreshold: t.MinSimilarity,
		Note:                       matchNote,
		Thresholds: MatchThresholds{
			ExactDuplicate:    t.ExactDuplicate,
			HighSimilarity:    t.HighSimilarity,
			PotentialConflict: t.MinSimilarity,
		},
		Matches: rounded,
	}
}

// NewConflictReport assembles the final report. maxMatchesPerPair > 0 keeps
// only the top matches of each pair; MatchCount still reports the full count.
func NewConflictReport(
	conflicts []models.DocumentPairConflict,
	recs []models.Recommendation,
	meta map[string]models.DocumentMetadata,
	t config.Thresholds,
	maxMatchesPerPair int,
	analysisDate time.Time,
) *ConflictReport {
	out := make([]models.DocumentPairConflict, len(conflicts))
	for i, c := range conflicts {
		matches := c.Matches
		if maxMatchesPerPair > 0 && len(matches) > maxMatchesPerPair {
			matches = matches[:maxMatchesPerPair]
		}

		c.Matches = make([]models.SimilarityMatch, len(matches))
		for j, m := range matches {
			m.Score = Round(m.Score)
			c.Matches[j] = m
		}
		c.MeanScore = Round(c.MeanScore)
		c.MaxScore = Round(c.MaxScore)
		out[i] = c
	}

	highConfidence := 0
	roundedRecs := make([]models.Recommendation, len(recs))
	for i, r := range recs {
		if r.Confidence > t.HighConfidenceCutoff {
			highConfidence++
		}
		r.Confidence = Round(r.Confidence)
		roundedRecs[i] = r
	}

	if meta == nil {
		meta = make(map[string]models.DocumentMetadata)
	}

	return &ConflictReport{
		AnalysisDate: analysisDate.UTC(),
		FilteringCriteria: FilteringCriteria{
			MinimumConflictsPerPair:     t.MinConflictMatches,
			ExcludesSameDocumentMatches: true,
		},
		Summary: Summary{
			TotalDocumentPairsWithConflicts: len(out),
			TotalRemovalRecommendations:     len(roundedRecs),
			HighConfidenceRecommendations:   highConfidence,
		},
		DocumentConflicts:      out,
		RemovalRecommendations: roundedRecs,
		DocumentMetadata:       meta,
	}
}

// Recommendations returns the recommendations with confidence >= minConfidence
func (r *ConflictReport) Recommendations(minConfidence float64) []models.Recommendation {
	recs := make([]models.Recommendation, 0, len(r.RemovalRecommendations))
	for _, rec := range r.RemovalRecommendations {
		if rec.Confidence >= minConfidence {
			recs = append(recs, rec)
		}
	}
	return recs
}

// DocumentView collects everything a report says about one document
type DocumentView struct {
	Metadata        models.DocumentMetadata       `json:"metadata"`
	Conflicts       []models.DocumentPairConflict `json:"conflicts"`
	Recommendations []models.Recommendation       `json:"recommendations"`
}

// Document returns the view of one document, or false if the report never
// mentions it.
func (r *ConflictReport) Document(id string) (*DocumentView, bool) {
	meta, ok := r.DocumentMetadata[id]
	if !ok {
		return nil, false
	}

	view := &DocumentView{
		Metadata:        meta,
		Conflicts:       []models.DocumentPairConflict{},
		Recommendations: []models.Recommendation{},
	}
	for _, c := range r.DocumentConflicts {
		if c.DocA == id || c.DocB == id {
			view.Conflicts = append(view.Conflicts, c)
		}
	}
	for _, rec := range r.RemovalRecommendations {
		if contains(rec.SubjectDocuments, id) || contains(rec.ConflictsWith, id) {
			view.Recommendations = append(view.Recommendations, rec)
		}
	}

	return view, true
}

// Digest hashes the report with its timestamp blanked, so two runs over the
// same input produce the same digest.
func Digest(r *ConflictReport) (string, error) {
	blank := *r
	blank.AnalysisDate = time.Time{}

	data, err := json.Marshal(&blank)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Round rounds a score to four decimals
func Round(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
