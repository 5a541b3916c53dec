package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elonfeng/narradar/internal/store"
	"github.com/elonfeng/narradar/pkg/narrative"
	"github.com/elonfeng/narradar/pkg/saturation"
)

// ExportedReport is the JSON document written for each completed run.
type ExportedReport struct {
	ID          string              `json:"id"`
	PeriodStart string              `json:"period_start"`
	PeriodEnd   string              `json:"period_end"`
	GeneratedAt time.Time           `json:"generated_at"`
	DemoMode    bool                `json:"demo_mode"`
	Narratives  []ExportedNarrative `json:"narratives"`
}

// ExportedNarrative is one narrative in an exported report.
type ExportedNarrative struct {
	Title        string         `json:"title"`
	Summary      string         `json:"summary"`
	Momentum     float64        `json:"momentum"`
	Novelty      float64        `json:"novelty"`
	Saturation   float64        `json:"saturation"`
	MemberLabels []string       `json:"member_labels"`
	Ideas        []ExportedIdea `json:"ideas"`
}

// ExportedIdea is one idea in an exported narrative.
type ExportedIdea struct {
	Title      string            `json:"title"`
	Pitch      string            `json:"pitch"`
	Saturation saturation.Result `json:"saturation"`
	Pivot      string            `json:"pivot,omitempty"`
}

// Export writes <dir>/<report id>.json and returns its path.
func Export(dir string, report *store.Report, groups []narrative.Group, generatedAt time.Time) (string, error) {
	doc := ExportedReport{
		ID:          report.ID,
		PeriodStart: report.PeriodStart.Format(time.DateOnly),
		PeriodEnd:   report.PeriodEnd.Format(time.DateOnly),
		GeneratedAt: generatedAt.UTC(),
		DemoMode:    report.DemoMode,
		Narratives:  make([]ExportedNarrative, 0, len(groups)),
	}
	for i := range groups {
		g := &groups[i]
		n := ExportedNarrative{
			Title:        g.Title,
			Summary:      g.Summary,
			Momentum:     g.Momentum(),
			Novelty:      g.Novelty(),
			Saturation:   g.Saturation(),
			MemberLabels: g.MemberLabels,
			Ideas:        make([]ExportedIdea, 0, len(g.Ideas)),
		}
		for _, idea := range g.Ideas {
			n.Ideas = append(n.Ideas, ExportedIdea{
				Title: idea.Title, Pitch: idea.Pitch, Saturation: idea.Saturation, Pivot: idea.Pivot,
			})
		}
		doc.Narratives = append(doc.Narratives, n)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report %s: %w", report.ID, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, report.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
