package cluster

// DefaultEps is the DBSCAN neighbourhood radius in cosine distance.
const DefaultEps = 0.5

// DBSCAN is radius-based clustering over pairwise cosine distance. A point is
// a core point when at least minClusterSize points, itself included, lie
// within Eps. Clusters grow from core points in index order.
type DBSCAN struct {
	Eps float64
}

func (d *DBSCAN) Name() string { return "dbscan" }

func (d *DBSCAN) Assign(points [][]float64, minClusterSize int) ([]int, error) {
	eps := d.Eps
	if eps <= 0 {
		eps = DefaultEps
	}
	minSamples := max(minClusterSize, 1)

	n := len(points)
	dist := cosineDistanceMatrix(points)
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if dist.At(i, j) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	labels := allNoise(n)
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != Noise || len(neighbors[i]) < minSamples {
			continue
		}
		stack := []int{i}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[p] != Noise {
				continue
			}
			labels[p] = next
			if len(neighbors[p]) < minSamples {
				continue
			}
			for _, q := range neighbors[p] {
				if labels[q] == Noise {
					stack = append(stack, q)
				}
			}
		}
		next++
	}
	return labels, nil
}
