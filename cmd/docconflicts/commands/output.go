package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/todmy/doc-conflicts/internal/report"
	"github.com/todmy/doc-conflicts/internal/similarity"
	"github.com/todmy/doc-conflicts/pkg/models"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold).SprintFunc()
	labelColor  = color.New(color.FgYellow).SprintFunc()
	goodColor   = color.New(color.FgGreen).SprintFunc()
	warnColor   = color.New(color.FgRed).SprintFunc()
	mutedColor  = color.New(color.FgHiBlack).SprintFunc()
)

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func printMatchSummary(w io.Writer, s similarity.MatchSummary, path string) {
	fmt.Fprintf(w, "\n%s\n", headerColor("=== Sentence Matches ==="))
	fmt.Fprintf(w, "  %s %d\n", labelColor("Total:"), s.Total)
	fmt.Fprintf(w, "    exact duplicates:    %d\n", s.ExactDuplicates)
	fmt.Fprintf(w, "    high similarity:     %d\n", s.HighSimilarity)
	fmt.Fprintf(w, "    potential conflicts: %d\n", s.PotentialConflicts)
	fmt.Fprintf(w, "  %s %d (%d within one document)\n", labelColor("Document pairs:"), s.DocumentPairs, s.SameDocument)
	if path != "" {
		fmt.Fprintf(w, "  %s %s\n", labelColor("Written to:"), path)
	}
}

// printReport renders the conflict table and the recommendations. limit <= 0
// prints every conflict; confidences above cutoff are highlighted.
func printReport(w io.Writer, r *report.ConflictReport, limit int, cutoff float64) {
	fmt.Fprintf(w, "\n%s\n", headerColor("=== Document Conflicts ==="))
	fmt.Fprintf(w, "  %s %d pairs with >= %d matches\n", labelColor("Found:"),
		r.Summary.TotalDocumentPairsWithConflicts, r.FilteringCriteria.MinimumConflictsPerPair)

	if len(r.DocumentConflicts) == 0 {
		fmt.Fprintf(w, "  %s\n", mutedColor("No conflicting document pairs"))
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  DOCUMENT A\tDOCUMENT B\tMATCHES\tMEAN\tMAX\tRELATIONSHIP")
		for i, c := range r.DocumentConflicts {
			if limit > 0 && i >= limit {
				fmt.Fprintf(tw, "  %s\n", mutedColor(fmt.Sprintf("... %d more", len(r.DocumentConflicts)-limit)))
				break
			}
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%.3f\t%.3f\t%s\n",
				truncate(c.DocA, 40), truncate(c.DocB, 40), c.MatchCount, c.MeanScore, c.MaxScore, c.Relationship)
		}
		tw.Flush()
	}

	fmt.Fprintf(w, "\n%s\n", headerColor("=== Recommendations ==="))
	if len(r.RemovalRecommendations) == 0 {
		fmt.Fprintf(w, "  %s\n", mutedColor("Nothing to recommend"))
		return
	}

	for _, rec := range r.RemovalRecommendations {
		icon := mutedColor("○")
		switch rec.Kind {
		case models.KindRemoveOutdated:
			icon = warnColor("✗")
		case models.KindConsolidate:
			icon = labelColor("⇄")
		}

		conf := fmt.Sprintf("%.2f", rec.Confidence)
		if rec.Confidence > cutoff {
			conf = goodColor(conf)
		}

		fmt.Fprintf(w, "  %s %s %s [%s]\n", icon, rec.Kind, strings.Join(rec.SubjectDocuments, ", "), conf)
		fmt.Fprintf(w, "      %s\n", rec.Reason)
		for _, e := range rec.Evidence {
			fmt.Fprintf(w, "      %s %s\n", mutedColor("-"), e)
		}
	}

	fmt.Fprintf(w, "\n  %s %d total, %d high confidence\n", labelColor("Recommendations:"),
		r.Summary.TotalRemovalRecommendations, r.Summary.HighConfidenceRecommendations)
}
