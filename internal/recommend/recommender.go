// Package recommend classifies conflicting document pairs and turns them
// into removal, consolidation and review recommendations.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/todmy/doc-conflicts/internal/config"
	"github.com/todmy/doc-conflicts/pkg/models"
)

// Recommender produces recommendations from classified conflicts
type Recommender struct {
	thresholds config.Thresholds
}

// NewRecommender creates a recommender using the given rule boundaries
func NewRecommender(t config.Thresholds) *Recommender {
	return &Recommender{thresholds: t}
}

// Recommend builds recommendations from conflicts whose Relationship is
// already set (see ClassifyAll). Version families are handled first, then
// high-overlap pairs, then every pair still untouched gets an advisory
// consolidate or review entry. The result is ordered by confidence, highest
// first.
func (r *Recommender) Recommend(conflicts []models.DocumentPairConflict, meta map[string]models.DocumentMetadata) []models.Recommendation {
	claimed := make(map[string]bool)

	recs := r.versionFamilies(conflicts, meta, claimed)
	recs = append(recs, r.pairRecommendations(conflicts, meta, claimed)...)

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Confidence > recs[j].Confidence
	})

	return recs
}

// versionFamilies groups documents sharing a base name that appear in
// version conflicts and recommends removing every member but the newest.
func (r *Recommender) versionFamilies(conflicts []models.DocumentPairConflict, meta map[string]models.DocumentMetadata, claimed map[string]bool) []models.Recommendation {
	families := make(map[string]map[string]bool)

	for _, c := range conflicts {
		if c.Relationship != models.RelationshipVersionConflict {
			continue
		}
		base := metaFor(meta, c.DocA).BaseName
		if base != metaFor(meta, c.DocB).BaseName {
			continue
		}
		if families[base] == nil {
			families[base] = make(map[string]bool)
		}
		families[base][c.DocA] = true
		families[base][c.DocB] = true
	}

	bases := make([]string, 0, len(families))
	for base := range families {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	var recs []models.Recommendation
	for _, base := range bases {
		members := make([]models.DocumentMetadata, 0, len(families[base]))
		for doc := range families[base] {
			members = append(members, metaFor(meta, doc))
		}
		if len(members) < 2 {
			continue
		}

		sort.Slice(members, func(i, j int) bool {
			return revisionLess(members[i], members[j])
		})

		newest := members[len(members)-1].DocumentID
		older := make([]string, 0, len(members)-1)
		for _, m := range members[:len(members)-1] {
			older = append(older, m.DocumentID)
		}

		total := 0
		for _, c := range conflicts {
			if families[base][c.DocA] && families[base][c.DocB] {
				total += c.MatchCount
			}
		}

		recs = append(recs, models.Recommendation{
			SubjectDocuments: older,
			Kind:             models.KindRemoveOutdated,
			Reason:           fmt.Sprintf("Superseded by newer version %s", newest),
			ConflictsWith:    []string{newest},
			Confidence:       r.thresholds.VersionFamilyConfidence,
			Evidence: []string{
				fmt.Sprintf("%d conflicting sentences across %d versions of %s", total, len(members), base),
				fmt.Sprintf("Older versions: %s", strings.Join(older, ", ")),
				fmt.Sprintf("Newest version: %s", newest),
			},
		})

		for _, m := range members {
			claimed[m.DocumentID] = true
		}
	}

	return recs
}

// pairRecommendations walks conflicts in their ranked order. Pairs touching
// a version family member are skipped. A document that is the older side of
// several high-overlap pairs gets one merged removal.
func (r *Recommender) pairRecommendations(conflicts []models.DocumentPairConflict, meta map[string]models.DocumentMetadata, claimed map[string]bool) []models.Recommendation {
	var recs []models.Recommendation
	removals := make(map[string]int)

	for _, c := range conflicts {
		if claimed[c.DocA] || claimed[c.DocB] {
			continue
		}

		if c.MatchCount >= r.thresholds.MinConflictMatches && c.MeanScore > r.thresholds.HighOverlapMean {
			older, newer := olderOf(metaFor(meta, c.DocA), metaFor(meta, c.DocB))
			confidence := math.Min(r.thresholds.MaxPairConfidence, c.MeanScore)

			if i, ok := removals[older]; ok {
				rec := &recs[i]
				rec.ConflictsWith = append(rec.ConflictsWith, newer)
				rec.Confidence = math.Max(rec.Confidence, confidence)
				rec.Evidence = append(rec.Evidence,
					fmt.Sprintf("Also %d matching sentences with %s, mean similarity %.3f", c.MatchCount, newer, c.MeanScore))
				continue
			}

			removals[older] = len(recs)
			recs = append(recs, models.Recommendation{
				SubjectDocuments: []string{older},
				Kind:             models.KindRemoveOutdated,
				Reason:           fmt.Sprintf("High content overlap with %s", newer),
				ConflictsWith:    []string{newer},
				Confidence:       confidence,
				Evidence: []string{
					fmt.Sprintf("%d matching sentences", c.MatchCount),
					fmt.Sprintf("Mean similarity %.3f", c.MeanScore),
					fmt.Sprintf("Relationship: %s", c.Relationship),
				},
			})
			continue
		}

		evidence := []string{
			fmt.Sprintf("%d matching sentences", c.MatchCount),
			fmt.Sprintf("Mean similarity %.3f, max %.3f", c.MeanScore, c.MaxScore),
		}

		if c.Relationship == models.RelationshipDuplicateContent {
			recs = append(recs, models.Recommendation{
				SubjectDocuments: []string{c.DocA, c.DocB},
				Kind:             models.KindConsolidate,
				Reason:           "Documents repeat the same content",
				ConflictsWith:    []string{},
				Confidence:       r.thresholds.ConsolidateConfidence,
				Evidence:         evidence,
			})
			continue
		}

		recs = append(recs, models.Recommendation{
			SubjectDocuments: []string{c.DocA, c.DocB},
			Kind:             models.KindReviewConflicts,
			Reason:           "Related documents contain similar statements that may disagree",
			ConflictsWith:    []string{},
			Confidence:       r.thresholds.ReviewConfidence,
			Evidence:         evidence,
		})
	}

	return recs
}

// revisionLess orders family members oldest first: version ordinal, then
// year (missing counts as 0), then document id.
func revisionLess(a, b models.DocumentMetadata) bool {
	va, vb := versionOrdinal(a), versionOrdinal(b)
	if va != vb {
		return va < vb
	}
	ya, yb := yearOf(a), yearOf(b)
	if ya != yb {
		return ya < yb
	}
	return a.DocumentID < b.DocumentID
}

func versionOrdinal(m models.DocumentMetadata) int {
	if m.Version == nil {
		return 0
	}
	return m.Version.Ordinal()
}

func yearOf(m models.DocumentMetadata) int {
	if m.Year == nil {
		return 0
	}
	return *m.Year
}

// metaFor tolerates a missing entry by falling back to the bare id
func metaFor(meta map[string]models.DocumentMetadata, doc string) models.DocumentMetadata {
	if m, ok := meta[doc]; ok {
		return m
	}
	return models.DocumentMetadata{DocumentID: doc, BaseName: doc, Department: models.DepartmentGeneral}
}
