package saturation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus() *Corpus {
	c := NewCorpus()
	c.Add("alpha", []float64{1, 0})
	c.Add("beta", []float64{0, 1})
	c.Add("gamma", []float64{1, 1})
	c.Add("delta", []float64{2, 0})
	c.SetMeta(ProjectMeta{Name: "alpha", URL: "https://alpha.example"})
	c.SetMeta(ProjectMeta{Name: "gamma", URL: "https://gamma.example", Description: "diagonal"})
	return c
}

func names(ns []Neighbor) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.Name
	}
	return out
}

func TestCompute_EmptyInputs(t *testing.T) {
	want := Result{Level: LevelLow, Score: 0, Neighbors: []Neighbor{}}
	s := DefaultScorer()

	assert.Equal(t, want, s.Compute([]float64{1, 0}, NewCorpus()))
	assert.Equal(t, want, s.Compute([]float64{1, 0}, nil))
	assert.Equal(t, want, s.Compute(nil, testCorpus()))
}

func TestCompute_TopKWithTies(t *testing.T) {
	got := DefaultScorer().Compute([]float64{1, 0}, testCorpus())

	// alpha and delta tie at 1.0; alpha was added first.
	assert.Equal(t, []string{"alpha", "delta", "gamma"}, names(got.Neighbors))
	assert.Equal(t, []float64{1, 1, 0.707}, []float64{
		got.Neighbors[0].Similarity, got.Neighbors[1].Similarity, got.Neighbors[2].Similarity,
	})
	assert.Equal(t, "https://alpha.example", got.Neighbors[0].URL)
	assert.Equal(t, "", got.Neighbors[1].URL)
	assert.Equal(t, "https://gamma.example", got.Neighbors[2].URL)

	assert.Equal(t, 0.902, got.Score)
	assert.Equal(t, LevelHigh, got.Level)
}

func TestCompute_TopKLargerThanCorpus(t *testing.T) {
	s := Scorer{TopK: 10}
	got := s.Compute([]float64{1, 0}, testCorpus())

	require.Len(t, got.Neighbors, 4)
	assert.Equal(t, []string{"alpha", "delta", "gamma", "beta"}, names(got.Neighbors))
	for i := 1; i < len(got.Neighbors); i++ {
		assert.GreaterOrEqual(t, got.Neighbors[i-1].Similarity, got.Neighbors[i].Similarity)
	}
	assert.Equal(t, 0.677, got.Score)
	assert.Equal(t, LevelMedium, got.Level)
}

func TestCompute_LevelUsesUnroundedMean(t *testing.T) {
	c := NewCorpus()
	c.Add("near", []float64{0.7496, math.Sqrt(1 - 0.7496*0.7496)})

	got := Scorer{TopK: 1}.Compute([]float64{1, 0}, c)
	assert.Equal(t, 0.75, got.Score)
	assert.Equal(t, LevelMedium, got.Level)
}

func TestCompute_OppositeIdeaIsLow(t *testing.T) {
	got := DefaultScorer().Compute([]float64{-1, 0}, testCorpus())
	assert.Equal(t, LevelLow, got.Level)
	assert.Less(t, got.Score, 0.0)
}

func TestLevelThresholds(t *testing.T) {
	s := DefaultScorer()
	assert.Equal(t, LevelHigh, s.level(0.75))
	assert.Equal(t, LevelMedium, s.level(0.7499))
	assert.Equal(t, LevelMedium, s.level(0.45))
	assert.Equal(t, LevelLow, s.level(0.4499))

	custom := Scorer{High: 0.9, Medium: 0.2}
	assert.Equal(t, LevelMedium, custom.level(0.8))
	assert.Equal(t, LevelLow, custom.level(0.1))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{3, 4}, []float64{6, 8}), 1e-12)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-2, 0}), 1e-12)
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestCorpus_AddReplacesInPlace(t *testing.T) {
	c := testCorpus()
	c.Add("alpha", []float64{0, 1})

	require.Equal(t, 4, c.Len())
	assert.Equal(t, "alpha", c.Entries()[0].Name)
	assert.Equal(t, []float64{0, 1}, c.Entries()[0].Embedding)

	m, ok := c.Meta("gamma")
	require.True(t, ok)
	assert.Equal(t, "diagonal", m.Description)
	_, ok = c.Meta("beta")
	assert.False(t, ok)
}

func TestRound3(t *testing.T) {
	assert.Equal(t, 0.123, Round3(0.12345))
	assert.Equal(t, 0.124, Round3(0.1236))
	assert.Equal(t, -0.5, Round3(-0.49999))
}
