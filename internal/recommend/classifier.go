package recommend

import (
	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Classify decides how two conflicting documents relate. Rules, in order:
// same base name with versions on both sides, or with two different years,
// is a version conflict; any other same base name is duplicate content; a
// mean score above DuplicateContentMean is duplicate content; everything
// else is a related policy.
func Classify(c models.DocumentPairConflict, a, b models.DocumentMetadata, t config.Thresholds) models.Relationship {
	if a.BaseName == b.BaseName {
		if a.Version != nil && b.Version != nil {
			return models.RelationshipVersionConflict
		}
		if a.Year != nil && b.Year != nil && *a.Year != *b.Year {
			return models.RelationshipVersionConflict
		}
		return models.RelationshipDuplicateContent
	}

	if c.MeanScore > t.DuplicateContentMean {
		return models.RelationshipDuplicateContent
	}

	return models.RelationshipRelatedPolicy
}

// ClassifyAll returns a copy of conflicts with Relationship filled in
func ClassifyAll(conflicts []models.DocumentPairConflict, meta map[string]models.DocumentMetadata, t config.Thresholds) []models.DocumentPairConflict {
	classified := make([]models.DocumentPairConflict, len(conflicts))
	for i, c := range conflicts {
		c.Relationship = Classify(c, meta[c.DocA], meta[c.DocB], t)
		classified[i] = c
	}
	return classified
}

// olderOf picks which of two documents is the outdated one. Year is compared
// first, then version. When neither settles it, a document carrying the
// "updated" marker is treated as the older one; this follows the existing
// naming convention even though the marker reads the other way. The last
// resort is the lexicographically smaller id.
func olderOf(a, b models.DocumentMetadata) (older, newer string) {
	if a.Year != nil && b.Year != nil && *a.Year != *b.Year {
		if *a.Year < *b.Year {
			return a.DocumentID, b.DocumentID
		}
		return b.DocumentID, a.DocumentID
	}

	if a.Version != nil && b.Version != nil && a.Version.Ordinal() != b.Version.Ordinal() {
		if a.Version.Ordinal() < b.Version.Ordinal() {
			return a.DocumentID, b.DocumentID
		}
		return b.DocumentID, a.DocumentID
	}

	// TODO: confirm with document owners whether "updated" should mark the newer copy
	if a.IsSupersededMarker != b.IsSupersededMarker {
		if a.IsSupersededMarker {
			return a.DocumentID, b.DocumentID
		}
		return b.DocumentID, a.DocumentID
	}

	if a.DocumentID < b.DocumentID {
		return a.DocumentID, b.DocumentID
	}
	return b.DocumentID, a.DocumentID
}
