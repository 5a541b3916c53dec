// Package narrative turns clusters of scored candidates into named narratives
// with build ideas, using a language model when one is configured and
// deterministic text otherwise.
package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/elonfeng/narradar/pkg/cluster"
	"github.com/elonfeng/narradar/pkg/investigate"
	"github.com/elonfeng/narradar/pkg/saturation"
	"github.com/elonfeng/narradar/pkg/scoring"
)

// DefaultIdeasPerNarrative caps the ideas generated for one narrative.
const DefaultIdeasPerNarrative = 5

// maxEvidenceChars bounds the evidence text sent to the model.
const maxEvidenceChars = 3000

// Member is one candidate inside a narrative.
type Member struct {
	Scored    scoring.ScoredSignal
	Findings  []investigate.Result
	Embedding []float64

	// Placeholder marks Embedding as a zero stand-in for a missing vector.
	Placeholder bool
}

// Group is a narrative: a cluster of members plus generated text and ideas.
type Group struct {
	ClusterID    int
	Title        string
	Summary      string
	MemberLabels []string
	Members      []Member
	Ideas        []Idea
}

// Idea is a buildable product suggested by a narrative.
type Idea struct {
	Title       string            `json:"title"`
	Pitch       string            `json:"pitch"`
	TargetUser  string            `json:"target_user"`
	MVPScope    string            `json:"mvp_scope"`
	WhyNow      string            `json:"why_now"`
	Validation  string            `json:"validation"`
	Saturation  saturation.Result `json:"saturation"`
	Competition string            `json:"competition,omitempty"`
	Pivot       string            `json:"pivot"`
}

// BuildGroups maps clusters onto members, keeping at most limit groups (all when
// limit <= 0). Cluster member indices refer to positions in members.
func BuildGroups(clusters []cluster.Cluster, members []Member, limit int) []Group {
	if limit > 0 && len(clusters) > limit {
		clusters = clusters[:limit]
	}
	groups := make([]Group, 0, len(clusters))
	for _, c := range clusters {
		g := Group{ClusterID: c.ID, MemberLabels: c.MemberLabels}
		for _, idx := range c.MemberIndices {
			g.Members = append(g.Members, members[idx])
		}
		groups = append(groups, g)
	}
	return groups
}

// Momentum is the members' mean momentum, rounded to 3 decimals.
func (g *Group) Momentum() float64 {
	return g.memberMean(func(m Member) float64 { return m.Scored.Momentum })
}

// Novelty is the members' mean novelty, rounded to 3 decimals.
func (g *Group) Novelty() float64 {
	return g.memberMean(func(m Member) float64 { return m.Scored.Novelty })
}

// Saturation is the mean saturation score of the ideas, rounded to 3 decimals.
func (g *Group) Saturation() float64 {
	if len(g.Ideas) == 0 {
		return 0
	}
	scores := make([]float64, len(g.Ideas))
	for i, idea := range g.Ideas {
		scores[i] = idea.Saturation.Score
	}
	return saturation.Round3(stat.Mean(scores, nil))
}

func (g *Group) memberMean(f func(Member) float64) float64 {
	if len(g.Members) == 0 {
		return 0
	}
	vals := make([]float64, len(g.Members))
	for i, m := range g.Members {
		vals[i] = f(m)
	}
	return saturation.Round3(stat.Mean(vals, nil))
}

// Evidence flattens every member's findings into evidence items.
func (g *Group) Evidence() []investigate.Evidence {
	var out []investigate.Evidence
	for _, m := range g.Members {
		for _, f := range m.Findings {
			out = append(out, f.Evidence...)
		}
	}
	return out
}

func (g *Group) evidenceText(perMember bool) string {
	var b strings.Builder
	for _, m := range g.Members {
		if perMember {
			fmt.Fprintf(&b, "\n--- %s ---\n", m.Scored.Signal.Label)
		}
		for _, f := range m.Findings {
			fmt.Fprintf(&b, "[%s] %s\n", f.Tool, f.Summary)
		}
	}
	return clip(b.String(), maxEvidenceChars)
}

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Generator writes narrative text and ideas. A nil model selects the
// deterministic fallbacks.
type Generator struct {
	llm               Completer
	ideasPerNarrative int
	logger            *slog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(llm Completer, ideasPerNarrative int, logger *slog.Logger) *Generator {
	if ideasPerNarrative <= 0 {
		ideasPerNarrative = DefaultIdeasPerNarrative
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: llm, ideasPerNarrative: ideasPerNarrative, logger: logger}
}

const describeSystem = "You are a crypto ecosystem analyst. Generate a narrative title and summary " +
	"for a cluster of related signals. Return ONLY valid JSON with keys: " +
	`"title" (string, 5-10 words), "summary" (string, 2-4 sentences, technical and specific).`

// Describe sets the group's title and summary.
func (g *Generator) Describe(ctx context.Context, grp *Group) {
	if g.llm != nil {
		user := fmt.Sprintf("Signals in this cluster:\nMembers: %s\n\nEvidence:\n%s",
			strings.Join(grp.MemberLabels, ", "), grp.evidenceText(true))

		var out struct {
			Title   string `json:"title"`
			Summary string `json:"summary"`
		}
		err := completeJSON(ctx, g.llm, describeSystem, user, &out)
		if err == nil && out.Title != "" {
			grp.Title, grp.Summary = out.Title, out.Summary
			return
		}
		g.logger.Warn("narrative generation fell back", "cluster", grp.ClusterID, "error", err)
	}

	grp.Title = "Emerging Narrative: " + strings.Join(grp.MemberLabels[:min(2, len(grp.MemberLabels))], ", ")
	grp.Summary = fmt.Sprintf("%d related signals are moving together: %s. "+
		"Validate the thesis with further investigation before committing to a build.",
		len(grp.Members), strings.Join(grp.MemberLabels, ", "))
}

// GenerateIdeas fills grp.Ideas, at most ideasPerNarrative of them.
func (g *Generator) GenerateIdeas(ctx context.Context, grp *Group) {
	if g.llm != nil {
		system := fmt.Sprintf("You are a crypto ecosystem product strategist. Generate %d build ideas "+
			"for a narrative. Return ONLY valid JSON: an array of objects each with keys: "+
			`"title", "pitch", "target_user", "mvp_scope", "why_now", "validation".`, g.ideasPerNarrative)
		user := fmt.Sprintf("Narrative: %s\nSummary: %s\n\nEvidence:\n%s", grp.Title, grp.Summary, grp.evidenceText(false))

		var ideas []Idea
		err := completeJSON(ctx, g.llm, system, user, &ideas)
		if err == nil && len(ideas) > 0 {
			grp.Ideas = ideas[:min(g.ideasPerNarrative, len(ideas))]
			return
		}
		g.logger.Warn("idea generation fell back", "narrative", grp.Title, "error", err)
	}

	ideas := defaultIdeas(grp)
	grp.Ideas = ideas[:min(g.ideasPerNarrative, len(ideas))]
}

func defaultIdeas(grp *Group) []Idea {
	lead := "Unknown"
	if len(grp.MemberLabels) > 0 {
		lead = grp.MemberLabels[0]
	}
	return []Idea{
		{
			Title:      lead + " Analytics Dashboard",
			Pitch:      fmt.Sprintf("An analytics platform for %s with live metrics, historical trends and ecosystem comparisons.", lead),
			TargetUser: "Developers, traders and investors following the ecosystem",
			MVPScope:   fmt.Sprintf("Dashboard of key %s metrics with 30-day history", lead),
			WhyNow:     "Rising activity creates demand for better monitoring.",
			Validation: "Developers keep asking for analytics tooling in public forums.",
		},
		{
			Title:      lead + " SDK & Integration Layer",
			Pitch:      fmt.Sprintf("A simplified SDK for building on %s that cuts integration time from days to hours.", lead),
			TargetUser: "Developers integrating with the protocol",
			MVPScope:   "Typed SDK covering the core operations, with docs and example apps",
			WhyNow:     "The protocol changes quickly and integrators need a stable layer.",
			Validation: "Dependency growth shows adoption demand.",
		},
	}
}

// Assess scores every idea against the corpus. The first member's embedding
// stands in for the idea's; a placeholder vector counts as no embedding.
func Assess(grp *Group, search *investigate.CompetitorSearch) {
	var emb []float64
	if len(grp.Members) > 0 && !grp.Members[0].Placeholder {
		emb = grp.Members[0].Embedding
	}
	for i := range grp.Ideas {
		idea := &grp.Ideas[i]
		res, sat := search.Search(idea.Title+": "+idea.Pitch, emb)
		idea.Saturation = sat
		idea.Competition = res.Summary
		idea.Pivot = Pivot(sat)
	}
}

// Pivot returns advice for an idea in a crowded space, or "" otherwise.
func Pivot(sat saturation.Result) string {
	if sat.Level != saturation.LevelHigh {
		return ""
	}
	return fmt.Sprintf("Market is crowded (%.0f%% avg similarity). Consider narrowing focus to an underserved niche "+
		"or combining with another emerging primitive for differentiation.", sat.Score*100)
}
