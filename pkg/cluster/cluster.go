// Package cluster groups embedding vectors into narrative clusters. Every
// input point ends up in exactly one cluster: points a strategy leaves as
// noise become singleton clusters.
package cluster

import (
	"errors"
	"fmt"
	"sort"
)

// Noise is the label a Strategy gives to points outside every dense region.
const Noise = -1

// DefaultMinClusterSize is the smallest group a strategy may report.
const DefaultMinClusterSize = 2

var (
	// ErrStrategyUnavailable is returned by a Strategy that cannot run on the
	// given batch; the engine moves on to its next strategy.
	ErrStrategyUnavailable = errors.New("clustering strategy unavailable")

	// ErrClusteringUnavailable means every configured strategy was unavailable.
	ErrClusteringUnavailable = errors.New("clustering unavailable")
)

// Cluster is one group of input points, referenced by position in the batch.
type Cluster struct {
	ID            int      `json:"cluster_id"`
	MemberIndices []int    `json:"member_indices"`
	MemberLabels  []string `json:"member_labels"`
}

// Strategy assigns a cluster label (>= 0) or Noise to each point.
type Strategy interface {
	Name() string
	Assign(points [][]float64, minClusterSize int) ([]int, error)
}

// Engine runs its strategies in order until one is available.
type Engine struct {
	strategies []Strategy
}

// NewEngine creates an engine that tries primary first, then each fallback.
func NewEngine(primary Strategy, fallbacks ...Strategy) *Engine {
	return &Engine{strategies: append([]Strategy{primary}, fallbacks...)}
}

// NewEngineFromName builds an engine from a configured algorithm name.
// "hdbscan" falls back to DBSCAN with radius eps; "dbscan" uses it alone.
// maxPoints caps the HDBSCAN batch size (0 for no cap).
func NewEngineFromName(name string, eps float64, maxPoints int) (*Engine, error) {
	switch name {
	case "", "hdbscan":
		return NewEngine(&HDBSCAN{MaxPoints: maxPoints}, &DBSCAN{Eps: eps}), nil
	case "dbscan":
		return NewEngine(&DBSCAN{Eps: eps}), nil
	default:
		return nil, fmt.Errorf("unknown cluster algorithm %q", name)
	}
}

// Strategies returns the strategy names in the order they are tried.
func (e *Engine) Strategies() []string {
	names := make([]string, len(e.strategies))
	for i, s := range e.strategies {
		names[i] = s.Name()
	}
	return names
}

// Cluster partitions embeddings into clusters sorted by ascending ID. A single
// point is returned as cluster 0; an empty batch yields no clusters.
func (e *Engine) Cluster(embeddings [][]float64, labels []string, minClusterSize int) ([]Cluster, error) {
	if len(embeddings) != len(labels) {
		return nil, fmt.Errorf("cluster: %d embeddings but %d labels", len(embeddings), len(labels))
	}
	if len(embeddings) == 0 {
		return []Cluster{}, nil
	}
	if len(embeddings) < 2 {
		return []Cluster{{ID: 0, MemberIndices: []int{0}, MemberLabels: []string{labels[0]}}}, nil
	}
	if err := checkDimensions(embeddings); err != nil {
		return nil, err
	}
	if minClusterSize < DefaultMinClusterSize {
		minClusterSize = DefaultMinClusterSize
	}

	assigned, err := e.assign(embeddings, minClusterSize)
	if err != nil {
		return nil, err
	}
	return build(resolveNoise(assigned), labels), nil
}

func (e *Engine) assign(points [][]float64, minClusterSize int) ([]int, error) {
	for _, s := range e.strategies {
		assigned, err := s.Assign(points, minClusterSize)
		if errors.Is(err, ErrStrategyUnavailable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cluster %s: %w", s.Name(), err)
		}
		if len(assigned) != len(points) {
			return nil, fmt.Errorf("cluster %s: %d labels for %d points", s.Name(), len(assigned), len(points))
		}
		return assigned, nil
	}
	return nil, ErrClusteringUnavailable
}

// resolveNoise gives each noise point its own id after the largest real one,
// in point order.
func resolveNoise(assigned []int) []int {
	next := 0
	for _, l := range assigned {
		if l >= next {
			next = l + 1
		}
	}

	out := make([]int, len(assigned))
	for i, l := range assigned {
		if l == Noise {
			l = next
			next++
		}
		out[i] = l
	}
	return out
}

func build(assigned []int, labels []string) []Cluster {
	byID := make(map[int]*Cluster)
	for i, id := range assigned {
		c, ok := byID[id]
		if !ok {
			c = &Cluster{ID: id}
			byID[id] = c
		}
		c.MemberIndices = append(c.MemberIndices, i)
		c.MemberLabels = append(c.MemberLabels, labels[i])
	}

	out := make([]Cluster, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func checkDimensions(points [][]float64) error {
	dim := len(points[0])
	for i, p := range points {
		if len(p) != dim {
			return fmt.Errorf("cluster: embedding %d has dimension %d, want %d", i, len(p), dim)
		}
	}
	return nil
}
