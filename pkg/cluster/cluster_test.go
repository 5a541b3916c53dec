package cluster

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name   string
	labels []int
	err    error
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Assign(points [][]float64, _ int) ([]int, error) {
	s.calls++
	return s.labels, s.err
}

func labelsFor(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i)
	}
	return out
}

func requirePartition(t *testing.T, clusters []Cluster, n int) {
	t.Helper()
	var seen []int
	for i, c := range clusters {
		if i > 0 {
			require.Less(t, clusters[i-1].ID, c.ID, "clusters must be sorted by id")
		}
		require.Len(t, c.MemberLabels, len(c.MemberIndices))
		seen = append(seen, c.MemberIndices...)
	}
	sort.Ints(seen)
	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	require.Equal(t, want, seen)
}

func blobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1}, {0.05, 0.05},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1}, {10.05, 10.05},
	}
}

func memberSets(clusters []Cluster) [][]int {
	out := make([][]int, len(clusters))
	for i, c := range clusters {
		out[i] = c.MemberIndices
	}
	return out
}

func TestCluster_SinglePoint(t *testing.T) {
	e := NewEngine(&HDBSCAN{})
	got, err := e.Cluster([][]float64{{1, 2, 3}}, []string{"x"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Cluster{{ID: 0, MemberIndices: []int{0}, MemberLabels: []string{"x"}}}, got)
}

func TestCluster_Empty(t *testing.T) {
	got, err := NewEngine(&HDBSCAN{}).Cluster(nil, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCluster_InputValidation(t *testing.T) {
	e := NewEngine(&HDBSCAN{})

	_, err := e.Cluster([][]float64{{1}, {2}}, []string{"a"}, 2)
	assert.ErrorContains(t, err, "2 embeddings but 1 labels")

	_, err = e.Cluster([][]float64{{1, 2}, {2}}, []string{"a", "b"}, 2)
	assert.ErrorContains(t, err, "embedding 1 has dimension 1, want 2")
}

func TestHDBSCAN_TwoBlobs(t *testing.T) {
	pts := blobs()
	got, err := NewEngine(&HDBSCAN{}).Cluster(pts, labelsFor(len(pts)), 3)
	require.NoError(t, err)
	requirePartition(t, got, len(pts))

	require.Len(t, got, 2)
	assert.ElementsMatch(t, [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}, memberSets(got))
	assert.Equal(t, []int{0, 1}, []int{got[0].ID, got[1].ID})
}

func TestHDBSCAN_OutlierBecomesSingleton(t *testing.T) {
	pts := append(blobs(), []float64{100, -100})
	labels := labelsFor(len(pts))

	got, err := NewEngine(&HDBSCAN{}).Cluster(pts, labels, 3)
	require.NoError(t, err)
	requirePartition(t, got, len(pts))

	require.Len(t, got, 3)
	assert.Equal(t, Cluster{ID: 2, MemberIndices: []int{10}, MemberLabels: []string{"p10"}}, got[2])
	assert.ElementsMatch(t, [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}, memberSets(got[:2]))
}

func TestHDBSCAN_NoDenseSplitIsAllSingletons(t *testing.T) {
	pts := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	got, err := NewEngine(&HDBSCAN{}).Cluster(pts, labelsFor(4), 2)
	require.NoError(t, err)
	requirePartition(t, got, 4)
	assert.Len(t, got, 4)

	got, err = NewEngine(&HDBSCAN{}).Cluster([][]float64{{0}, {5}}, labelsFor(2), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}}, memberSets(got))
}

func TestHDBSCAN_CoreDistanceExcludesSelf(t *testing.T) {
	pts := [][]float64{{0}, {1}, {3}, {4}}
	assert.Equal(t, []float64{3, 2, 2, 3}, coreDistances(euclideanMatrix(pts), 2))

	// Two pairs are not dense enough at min size 2.
	got, err := NewEngine(&HDBSCAN{}).Cluster(pts, labelsFor(4), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}, {2}, {3}}, memberSets(got))

	triples := [][]float64{{0}, {0.5}, {1}, {10}, {10.5}, {11}}
	got, err = NewEngine(&HDBSCAN{}).Cluster(triples, labelsFor(6), 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]int{{0, 1, 2}, {3, 4, 5}}, memberSets(got))
}

func TestHDBSCAN_MaxPointsIsUnavailable(t *testing.T) {
	h := &HDBSCAN{MaxPoints: 3}
	_, err := h.Assign(blobs(), 2)
	assert.True(t, errors.Is(err, ErrStrategyUnavailable))
}

func directions() [][]float64 {
	return [][]float64{
		{1, 0}, {0.9, 0.1}, {1, 0.05},
		{0, 1}, {0.1, 0.9}, {0.05, 1},
		{-1, 0},
	}
}

func TestDBSCAN_Cosine(t *testing.T) {
	pts := directions()
	got, err := NewEngine(&DBSCAN{Eps: 0.5}).Cluster(pts, labelsFor(len(pts)), 2)
	require.NoError(t, err)
	requirePartition(t, got, len(pts))

	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, memberSets(got))
	assert.Equal(t, []string{"p3", "p4", "p5"}, got[1].MemberLabels)
}

func TestDBSCAN_ZeroVectorIsNoise(t *testing.T) {
	d := &DBSCAN{}
	labels, err := d.Assign([][]float64{{1, 0}, {1, 0.01}, {0, 0}}, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, Noise}, labels)
}

func TestEngine_FallsBackWhenUnavailable(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: ErrStrategyUnavailable}
	pts := directions()

	got, err := NewEngine(primary, &DBSCAN{}).Cluster(pts, labelsFor(len(pts)), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}, {6}}, memberSets(got))
}

func TestEngine_HDBSCANLimitFallsBackToDBSCAN(t *testing.T) {
	pts := directions()
	got, err := NewEngine(&HDBSCAN{MaxPoints: 2}, &DBSCAN{}).Cluster(pts, labelsFor(len(pts)), 2)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestEngine_AllUnavailable(t *testing.T) {
	e := NewEngine(
		&stubStrategy{name: "a", err: ErrStrategyUnavailable},
		&stubStrategy{name: "b", err: fmt.Errorf("wrapped: %w", ErrStrategyUnavailable)},
	)
	_, err := e.Cluster([][]float64{{1}, {2}}, []string{"a", "b"}, 2)
	assert.ErrorIs(t, err, ErrClusteringUnavailable)
}

func TestEngine_StrategyFailure(t *testing.T) {
	boom := errors.New("boom")
	fallback := &stubStrategy{name: "b", labels: []int{0, 0}}
	e := NewEngine(&stubStrategy{name: "a", err: boom}, fallback)

	_, err := e.Cluster([][]float64{{1}, {2}}, []string{"a", "b"}, 2)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "cluster a")
	assert.Zero(t, fallback.calls)

	short := NewEngine(&stubStrategy{name: "short", labels: []int{0}})
	_, err = short.Cluster([][]float64{{1}, {2}}, []string{"a", "b"}, 2)
	assert.ErrorContains(t, err, "1 labels for 2 points")
}

func TestResolveNoise(t *testing.T) {
	assert.Equal(t, []int{2, 0, 3, 1}, resolveNoise([]int{Noise, 0, Noise, 1}))
	assert.Equal(t, []int{0, 1, 2}, resolveNoise([]int{Noise, Noise, Noise}))
	assert.Equal(t, []int{0, 0}, resolveNoise([]int{0, 0}))
}

func TestNoiseSingletonsFollowPointOrder(t *testing.T) {
	e := NewEngine(&stubStrategy{name: "s", labels: []int{Noise, 1, Noise, 1, 0}})
	got, err := e.Cluster(make([][]float64, 5), labelsFor(5), 2)
	require.NoError(t, err)

	assert.Equal(t, []Cluster{
		{ID: 0, MemberIndices: []int{4}, MemberLabels: []string{"p4"}},
		{ID: 1, MemberIndices: []int{1, 3}, MemberLabels: []string{"p1", "p3"}},
		{ID: 2, MemberIndices: []int{0}, MemberLabels: []string{"p0"}},
		{ID: 3, MemberIndices: []int{2}, MemberLabels: []string{"p2"}},
	}, got)
}

func TestCluster_PartitionLaw(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	engines := map[string]*Engine{
		"hdbscan": NewEngine(&HDBSCAN{}),
		"dbscan":  NewEngine(&DBSCAN{}),
	}

	for _, n := range []int{2, 3, 5, 17, 40} {
		pts := make([][]float64, n)
		for i := range pts {
			pts[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		}
		for name, e := range engines {
			for _, mcs := range []int{0, 2, 3, 8, 100} {
				got, err := e.Cluster(pts, labelsFor(n), mcs)
				require.NoError(t, err, "%s n=%d mcs=%d", name, n, mcs)
				requirePartition(t, got, n)
			}
		}
	}
}

func TestNewEngineFromName(t *testing.T) {
	e, err := NewEngineFromName("hdbscan", 0.4, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"hdbscan", "dbscan"}, e.Strategies())
	assert.Equal(t, 500, e.strategies[0].(*HDBSCAN).MaxPoints)

	e, err = NewEngineFromName("dbscan", 0.4, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"dbscan"}, e.Strategies())

	_, err = NewEngineFromName("kmeans", 0, 0)
	assert.ErrorContains(t, err, `unknown cluster algorithm "kmeans"`)
}
