package investigate

import (
	"context"
	"fmt"
	"strings"

	"github.com/elonfeng/narradar/pkg/source"
)

const (
	// hypeWarningRatio flags a narrative that is mostly hype.
	hypeWarningRatio = 0.6
	// demandRatio marks enough pain points to suggest real demand.
	demandRatio = 0.3
)

// SocialPainFinder splits a subject's snippets into pain points, questions,
// hype and announcements and summarises the balance.
type SocialPainFinder struct{}

func (SocialPainFinder) Name() string { return "social_pain_finder" }

func (SocialPainFinder) Investigate(_ context.Context, s Subject) Result {
	if len(s.Snippets) == 0 {
		return Result{
			Tool:    "social_pain_finder",
			Input:   map[string]any{"entity_key": s.Key},
			Summary: fmt.Sprintf("No social snippets available for %s.", s.Label),
		}
	}

	counts := make(map[source.SnippetClass]int)
	var pains, questions []string
	for _, sn := range s.Snippets {
		class := sn.Class
		if class == "" {
			class = source.ClassHype
		}
		counts[class]++
		switch class {
		case source.ClassPainPoint:
			pains = append(pains, sn.Text)
		case source.ClassQuestion:
			questions = append(questions, sn.Text)
		}
	}

	total := len(s.Snippets)
	hypeRatio := float64(counts[source.ClassHype]) / float64(total)
	painRatio := float64(counts[source.ClassPainPoint]) / float64(total)

	parts := []string{
		fmt.Sprintf("Social analysis for %s: %d snippets analyzed.", s.Label, total),
		fmt.Sprintf("Distribution: %d announcements, %d pain points, %d questions, %d hype.",
			counts[source.ClassAnnouncement], counts[source.ClassPainPoint],
			counts[source.ClassQuestion], counts[source.ClassHype]),
	}
	if len(pains) > 0 {
		parts = append(parts, "Key pain points: "+strings.Join(head(pains, 2), "; "))
	}
	if len(questions) > 0 {
		parts = append(parts, "Open questions: "+strings.Join(head(questions, 2), "; "))
	}
	if hypeRatio > hypeWarningRatio {
		parts = append(parts, "High hype ratio detected; the narrative may lack substance.")
	}
	if painRatio > demandRatio {
		parts = append(parts, "Significant pain points suggest real demand.")
	}

	var evidence []Evidence
	for _, p := range head(pains, 2) {
		evidence = append(evidence, Evidence{
			Type:    "social",
			Title:   "Pain point: " + s.Label,
			Snippet: truncate(p, 200),
		})
	}

	return Result{
		Tool:     "social_pain_finder",
		Input:    map[string]any{"entity_key": s.Key, "snippet_count": total},
		Summary:  strings.Join(parts, " "),
		Evidence: evidence,
	}
}

func head(s []string, n int) []string {
	return s[:min(n, len(s))]
}
