package investigate

import (
	"fmt"
	"strings"

	"github.com/elonfeng/narradar/pkg/saturation"
)

// CompetitorSearch compares an idea against the project corpus.
type CompetitorSearch struct {
	scorer saturation.Scorer
	corpus *saturation.Corpus
}

// NewCompetitorSearch creates a search over corpus.
func NewCompetitorSearch(scorer saturation.Scorer, corpus *saturation.Corpus) *CompetitorSearch {
	return &CompetitorSearch{scorer: scorer, corpus: corpus}
}

func (c *CompetitorSearch) Name() string { return "competitor_search" }

// Search scores the idea and describes its nearest competitors.
func (c *CompetitorSearch) Search(ideaText string, embedding []float64) (Result, saturation.Result) {
	sat := c.scorer.Compute(embedding, c.corpus)
	res := Result{
		Tool:  "competitor_search",
		Input: map[string]any{"idea_text": truncate(ideaText, 100)},
	}
	if c.corpus.Len() == 0 || len(embedding) == 0 {
		res.Summary = "No corpus embeddings available for saturation check."
		return res, sat
	}

	neighbors := make([]string, len(sat.Neighbors))
	for i, n := range sat.Neighbors {
		neighbors[i] = fmt.Sprintf("%s (%s similar)", n.Name, percent(n.Similarity))
		if n.URL != "" {
			res.Links = append(res.Links, n.URL)
		}
	}
	res.Summary = fmt.Sprintf("Saturation check: %s (%s). Nearest competitors: %s.",
		strings.ToUpper(string(sat.Level)), percent(sat.Score), strings.Join(neighbors, ", "))
	if sat.Level == saturation.LevelHigh {
		res.Summary += " " + PivotAdvice
	}
	return res, sat
}

// PivotAdvice is attached to ideas landing in a crowded space.
const PivotAdvice = "Market is crowded; consider a differentiated angle or niche pivot."
