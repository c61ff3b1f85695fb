package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// EmbeddingRecord is one sentence of the corpus with its precomputed embedding
type EmbeddingRecord struct {
	SentenceID string    `json:"sentence_id"`
	Text       string    `json:"sentence_text"`
	Document   string    `json:"document"`
	Position   int       `json:"sentence_index"`
	Vector     []float64 `json:"embedding"`
}

// MatchTier classifies a sentence match by similarity band
type MatchTier string

const (
	TierExactDuplicate    MatchTier = "exact_duplicate"
	TierHighSimilarity    MatchTier = "high_similarity"
	TierPotentialConflict MatchTier = "potential_conflict"
)

// SimilarityMatch represents two similar sentences. The pair is unordered.
type SimilarityMatch struct {
	SentenceIDA string    `json:"sentence1_id"`
	SentenceIDB string    `json:"sentence2_id"`
	TextA       string    `json:"sentence1_text"`
	TextB       string    `json:"sentence2_text"`
	DocumentA   string    `json:"document1"`
	DocumentB   string    `json:"document2"`
	Score       float64   `json:"similarity_score"`
	Tier        MatchTier `json:"match_type,omitempty"`
}

// Relationship describes how two conflicting documents relate
type Relationship string

const (
	RelationshipVersionConflict  Relationship = "version_conflict"
	RelationshipDuplicateContent Relationship = "duplicate_content"
	RelationshipRelatedPolicy    Relationship = "related_policy"
)

// DocumentPairConflict aggregates the matches shared by two documents.
// DocA is always the lexicographically smaller id.
type DocumentPairConflict struct {
	DocA         string            `json:"doc1"`
	DocB         string            `json:"doc2"`
	MatchCount   int               `json:"conflict_count"`
	MeanScore    float64           `json:"avg_similarity"`
	MaxScore     float64           `json:"max_similarity"`
	Relationship Relationship      `json:"relationship,omitempty"`
	Matches      []SimilarityMatch `json:"top_conflicts"`
}

// Department is the owning department inferred from a document name
type Department string

const (
	DepartmentHR          Department = "HR"
	DepartmentIT          Department = "IT"
	DepartmentEngineering Department = "Engineering"
	DepartmentSales       Department = "Sales/Marketing"
	DepartmentFinance     Department = "Finance"
	DepartmentLegal       Department = "Legal"
	DepartmentSafety      Department = "Safety"
	DepartmentGeneral     Department = "General"
)

// Version is a two part document revision such as v2.0
type Version struct {
	Major int
	Minor int
}

var versionPattern = regexp.MustCompile(`^v(\d+)\.(\d+)$`)

// Ordinal returns a comparable number for the version (v2.1 -> 21)
func (v Version) Ordinal() int {
	return v.Major*10 + v.Minor
}

func (v Version) String() string {
	return fmt.Sprintf("v%d.%d", v.Major, v.Minor)
}

// MarshalText implements encoding.TextMarshaler
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (v *Version) UnmarshalText(text []byte) error {
	m := versionPattern.FindStringSubmatch(string(text))
	if m == nil {
		return fmt.Errorf("invalid version %q", string(text))
	}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	return nil
}

// DocumentMetadata holds attributes derived from a document identifier
type DocumentMetadata struct {
	DocumentID         string     `json:"document_id"`
	BaseName           string     `json:"base_name"`
	Version            *Version   `json:"version"`
	Year               *int       `json:"year"`
	Department         Department `json:"department"`
	IsSupersededMarker bool       `json:"is_superseded_marker"`
}

// RecommendationKind is the action suggested for a set of documents
type RecommendationKind string

const (
	KindRemoveOutdated  RecommendationKind = "remove_outdated"
	KindConsolidate     RecommendationKind = "consolidate"
	KindReviewConflicts RecommendationKind = "review_conflicts"
)

// Recommendation is an actionable suggestion for cleaning up the corpus
type Recommendation struct {
	SubjectDocuments []string           `json:"documents"`
	Kind             RecommendationKind `json:"action"`
	Reason           string             `json:"reason"`
	ConflictsWith    []string           `json:"conflicts_with"`
	Confidence       float64            `json:"confidence"`
	Evidence         []string           `json:"evidence"`
}
