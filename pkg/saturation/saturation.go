// Package saturation measures how crowded an idea's space is by comparing its
// embedding against a corpus of existing projects.
package saturation

import (
	"math"
	"sort"

	"github.com/viterin/vek"
	"gonum.org/v1/gonum/stat"
)

// Level buckets a saturation score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

const (
	DefaultTopK            = 3
	DefaultHighThreshold   = 0.75
	DefaultMediumThreshold = 0.45
)

// Neighbor is a corpus project close to the idea.
type Neighbor struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	URL        string  `json:"url"`
}

// Result is the saturation verdict for one idea.
type Result struct {
	Level     Level      `json:"level"`
	Score     float64    `json:"score"`
	Neighbors []Neighbor `json:"neighbors"`
}

// Scorer compares ideas against the corpus. Zero fields take the defaults.
type Scorer struct {
	TopK   int
	High   float64
	Medium float64
}

// DefaultScorer returns the reference top-k and thresholds.
func DefaultScorer() Scorer {
	return Scorer{TopK: DefaultTopK, High: DefaultHighThreshold, Medium: DefaultMediumThreshold}
}

// Compute scores idea against corpus. An empty idea or corpus yields
// {low, 0, []}. The score is the mean similarity of the top-k neighbours,
// rounded to 3 decimals; the level is decided before rounding.
func (s Scorer) Compute(idea []float64, corpus *Corpus) Result {
	if len(idea) == 0 || corpus.Len() == 0 {
		return Result{Level: LevelLow, Score: 0, Neighbors: []Neighbor{}}
	}

	entries := corpus.Entries()
	ranked := make([]Neighbor, len(entries))
	for i, e := range entries {
		ranked[i] = Neighbor{Name: e.Name, Similarity: CosineSimilarity(idea, e.Embedding)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })

	k := s.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	top := ranked[:min(k, len(ranked))]

	sims := make([]float64, len(top))
	for i := range top {
		sims[i] = top[i].Similarity
		top[i].Similarity = Round3(top[i].Similarity)
		if m, ok := corpus.Meta(top[i].Name); ok {
			top[i].URL = m.URL
		}
	}
	mean := stat.Mean(sims, nil)

	return Result{Level: s.level(mean), Score: Round3(mean), Neighbors: top}
}

func (s Scorer) level(score float64) Level {
	high, medium := s.High, s.Medium
	if high == 0 {
		high = DefaultHighThreshold
	}
	if medium == 0 {
		medium = DefaultMediumThreshold
	}
	switch {
	case score >= high:
		return LevelHigh
	case score >= medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Vectors of different length or
// with zero magnitude score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := math.Sqrt(vek.Dot(a, a))
	nb := math.Sqrt(vek.Dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return vek.Dot(a, b) / (na * nb)
}

// Round3 rounds half away from zero to 3 decimal places.
func Round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
