package source

import (
	"context"
	"encoding/json"
	"fmt"
)

// SourceType identifies where a batch of signals came from.
type SourceType string

const (
	SourceFixture    SourceType = "fixture"
	SourceRSS        SourceType = "rss"
	SourceHackerNews SourceType = "hackernews"
)

// SnippetClass labels a social snippet.
type SnippetClass string

const (
	ClassHype         SnippetClass = "hype"
	ClassPainPoint    SnippetClass = "pain_point"
	ClassQuestion     SnippetClass = "question"
	ClassAnnouncement SnippetClass = "announcement"
)

// Snippet is one social post attached to a signal.
type Snippet struct {
	Text   string       `json:"text"`
	Class  SnippetClass `json:"class"`
	Author string       `json:"author,omitempty"`
	URL    string       `json:"url,omitempty"`
}

// Signal is a tracked entity (protocol, repo, token) with its metrics for one period.
// Onchain and Dev hold the flat metric form: "tx_count", "tx_count_baseline", ...
type Signal struct {
	Key       string             `json:"key"`
	Label     string             `json:"label"`
	Kind      string             `json:"kind"`
	FirstSeen string             `json:"first_seen"`
	Onchain   map[string]float64 `json:"onchain"`
	Dev       map[string]float64 `json:"dev"`
	Social    SocialData         `json:"social"`
}

// SocialData carries social metrics plus the raw snippets they were derived from.
type SocialData struct {
	Metrics  map[string]float64
	Snippets []Snippet
}

// UnmarshalJSON accepts the fixture form where numeric keys are metrics and
// "snippets" is a list living in the same object.
func (s *SocialData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode social data: %w", err)
	}

	s.Metrics = make(map[string]float64, len(raw))
	s.Snippets = nil
	for key, val := range raw {
		if key == "snippets" {
			if err := json.Unmarshal(val, &s.Snippets); err != nil {
				return fmt.Errorf("decode snippets: %w", err)
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(val, &f); err != nil {
			// Non-numeric extras (notes, handles) are not metrics.
			continue
		}
		s.Metrics[key] = f
	}
	return nil
}

// MarshalJSON writes the same flat form UnmarshalJSON reads.
func (s SocialData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Metrics)+1)
	for k, v := range s.Metrics {
		out[k] = v
	}
	if len(s.Snippets) > 0 {
		out["snippets"] = s.Snippets
	}
	return json.Marshal(out)
}

// Source produces the raw signals for a run.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]Signal, error)
}

// Enricher adds data to already collected signals in place.
type Enricher interface {
	Name() SourceType
	Enrich(ctx context.Context, signals []Signal) error
}
