package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// maxLambda stands in for 1/0 when points coincide.
const maxLambda = 1e12

// HDBSCAN is hierarchical density-based clustering over Euclidean distance
// with excess-of-mass cluster selection. min_samples equals the minimum
// cluster size (capped at n-1 other points) and the root of the hierarchy is never selected, so a batch
// with no split into two dense groups comes back as all noise.
type HDBSCAN struct {
	// MaxPoints bounds the batch size; larger batches report
	// ErrStrategyUnavailable. Zero means no limit.
	MaxPoints int
}

func (h *HDBSCAN) Name() string { return "hdbscan" }

func (h *HDBSCAN) Assign(points [][]float64, minClusterSize int) ([]int, error) {
	n := len(points)
	if h.MaxPoints > 0 && n > h.MaxPoints {
		return nil, fmt.Errorf("%w: %d points exceeds hdbscan limit %d", ErrStrategyUnavailable, n, h.MaxPoints)
	}
	if n < 2 {
		return allNoise(n), nil
	}
	minClusterSize = max(minClusterSize, DefaultMinClusterSize)

	dist := euclideanMatrix(points)
	core := coreDistances(dist, min(minClusterSize, n-1))
	links := singleLinkage(minimumSpanningTree(dist, core), n)

	tree := condense(links, n, minClusterSize)
	selected := tree.selectEOM()
	return tree.label(selected), nil
}

// coreDistances returns each point's distance to its k-th nearest other
// point. k must be in [1, n-1].
func coreDistances(dist mat.Symmetric, k int) []float64 {
	n := dist.SymmetricDim()
	core := make([]float64, n)
	row := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			row[j] = dist.At(i, j)
		}
		sort.Float64s(row)
		core[i] = row[k]
	}
	return core
}

type edge struct {
	a, b   int
	weight float64
}

// minimumSpanningTree runs Prim over the mutual reachability graph and returns
// the edges sorted by ascending weight.
func minimumSpanningTree(dist mat.Symmetric, core []float64) []edge {
	n := len(core)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	cur := 0
	inTree[cur] = true
	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			w := max(core[cur], core[j], dist.At(cur, j))
			if w < best[j] {
				best[j] = w
				from[j] = cur
			}
			if next == -1 || best[j] < best[next] {
				next = j
			}
		}
		edges = append(edges, edge{a: from[next], b: next, weight: best[next]})
		inTree[next] = true
		cur = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// link is an internal node of the single-linkage dendrogram. Node ids below n
// are points; link i has node id n+i.
type link struct {
	left, right int
	dist        float64
	size        int
}

func singleLinkage(edges []edge, n int) []link {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
		size[i] = 1
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	links := make([]link, 0, n-1)
	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + len(links)
		links = append(links, link{left: ra, right: rb, dist: e.weight, size: size[ra] + size[rb]})
		parent[ra], parent[rb] = id, id
		size[id] = size[ra] + size[rb]
	}
	return links
}

// condensedEdge records a child (a point below n, a cluster otherwise)
// leaving its parent cluster at density lambda.
type condensedEdge struct {
	parent, child int
	lambda        float64
	size          int
}

type condensedTree struct {
	n        int
	minSize  int
	links    []link
	edges    []condensedEdge
	clusters int // cluster labels are n .. n+clusters-1, n is the root
}

func condense(links []link, n, minSize int) *condensedTree {
	t := &condensedTree{n: n, minSize: minSize, links: links, clusters: 1}
	t.split(n+len(links)-1, n)
	return t
}

func (t *condensedTree) size(node int) int {
	if node < t.n {
		return 1
	}
	return t.links[node-t.n].size
}

func (t *condensedTree) split(node, label int) {
	l := t.links[node-t.n]
	lambda := toLambda(l.dist)
	ls, rs := t.size(l.left), t.size(l.right)

	if ls >= t.minSize && rs >= t.minSize {
		left := t.newCluster(label, lambda, ls)
		right := t.newCluster(label, lambda, rs)
		t.split(l.left, left)
		t.split(l.right, right)
		return
	}

	for _, child := range []int{l.left, l.right} {
		if t.size(child) < t.minSize {
			t.fallOut(child, label, lambda)
		} else {
			t.split(child, label)
		}
	}
}

func (t *condensedTree) newCluster(parent int, lambda float64, size int) int {
	label := t.n + t.clusters
	t.clusters++
	t.edges = append(t.edges, condensedEdge{parent: parent, child: label, lambda: lambda, size: size})
	return label
}

func (t *condensedTree) fallOut(node, label int, lambda float64) {
	if node < t.n {
		t.edges = append(t.edges, condensedEdge{parent: label, child: node, lambda: lambda, size: 1})
		return
	}
	l := t.links[node-t.n]
	t.fallOut(l.left, label, lambda)
	t.fallOut(l.right, label, lambda)
}

// selectEOM picks the clusters maximising total stability, never the root.
// Index i of the result refers to cluster label n+i.
func (t *condensedTree) selectEOM() []bool {
	birth := make([]float64, t.clusters)
	children := make([][]int, t.clusters)
	for _, e := range t.edges {
		if e.child >= t.n {
			birth[e.child-t.n] = e.lambda
			children[e.parent-t.n] = append(children[e.parent-t.n], e.child-t.n)
		}
	}

	stability := make([]float64, t.clusters)
	for _, e := range t.edges {
		p := e.parent - t.n
		stability[p] += (e.lambda - birth[p]) * float64(e.size)
	}

	selected := make([]bool, t.clusters)
	for c := 1; c < t.clusters; c++ {
		selected[c] = true
	}

	var unselect func(int)
	unselect = func(c int) {
		for _, child := range children[c] {
			selected[child] = false
			unselect(child)
		}
	}

	// Children always carry larger labels than their parent.
	for c := t.clusters - 1; c > 0; c-- {
		subtree := 0.0
		for _, child := range children[c] {
			subtree += stability[child]
		}
		if subtree > stability[c] {
			selected[c] = false
			stability[c] = subtree
		} else {
			unselect(c)
		}
	}
	return selected
}

// label maps each point to its nearest selected ancestor, numbering selected
// clusters from 0 in label order. Points with none are Noise.
func (t *condensedTree) label(selected []bool) []int {
	ids := make([]int, t.clusters)
	next := 0
	for c := range selected {
		ids[c] = Noise
		if selected[c] {
			ids[c] = next
			next++
		}
	}

	parentOf := make(map[int]int, len(t.edges))
	for _, e := range t.edges {
		parentOf[e.child] = e.parent
	}

	out := make([]int, t.n)
	for p := 0; p < t.n; p++ {
		out[p] = Noise
		for c := parentOf[p]; c != t.n; c = parentOf[c] {
			if selected[c-t.n] {
				out[p] = ids[c-t.n]
				break
			}
		}
	}
	return out
}

func toLambda(d float64) float64 {
	if d > 0 {
		return min(1/d, maxLambda)
	}
	return maxLambda
}

func allNoise(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = Noise
	}
	return out
}
