// Package investigate gathers supporting evidence for scored candidates: the
// project's repository activity, what people complain about, and which
// existing projects already occupy the space.
package investigate

import (
	"context"
	"strconv"

	"github.com/elonfeng/narradar/pkg/source"
)

// Evidence is one citable item backing a narrative.
type Evidence struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Result is the outcome of one tool run against one subject.
type Result struct {
	Tool     string         `json:"tool"`
	Input    map[string]any `json:"input"`
	Summary  string         `json:"summary"`
	Links    []string       `json:"links"`
	Evidence []Evidence     `json:"evidence"`
}

// Subject is the candidate under investigation.
type Subject struct {
	Key      string
	Label    string
	Snippets []source.Snippet
}

// SubjectFromSignal builds a Subject from a collected signal.
func SubjectFromSignal(sig source.Signal) Subject {
	return Subject{Key: sig.Key, Label: sig.Label, Snippets: sig.Social.Snippets}
}

// Tool investigates a subject. Failures are reported in the Result summary;
// a tool never aborts the run.
type Tool interface {
	Name() string
	Investigate(ctx context.Context, s Subject) Result
}

// Investigator runs its tools in order.
type Investigator struct {
	tools []Tool
}

// NewInvestigator creates an investigator over tools.
func NewInvestigator(tools ...Tool) *Investigator {
	return &Investigator{tools: tools}
}

// Run returns one Result per tool, in tool order. It stops early if ctx is done.
func (inv *Investigator) Run(ctx context.Context, s Subject) []Result {
	results := make([]Result, 0, len(inv.tools))
	for _, t := range inv.tools {
		if ctx.Err() != nil {
			break
		}
		results = append(results, t.Investigate(ctx, s))
	}
	return results
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// percent renders a ratio as a whole percentage, 0.42 -> "42%".
func percent(x float64) string {
	return strconv.FormatFloat(x*100, 'f', 0, 64) + "%"
}
