package cluster

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// euclideanMatrix returns the symmetric pairwise L2 distance matrix.
func euclideanMatrix(points [][]float64) *mat.SymDense {
	n := len(points)
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, floats.Distance(points[i], points[j], 2))
		}
	}
	return d
}

// cosineDistanceMatrix returns 1 - cosine similarity for every pair, clamped
// to [0, 2]. A zero vector is at distance 1 from everything but itself.
func cosineDistanceMatrix(points [][]float64) *mat.Dense {
	n := len(points)
	norms := make([]float64, n)
	for i, p := range points {
		norms[i] = floats.Norm(p, 2)
	}

	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist := 1.0
			if norms[i] > 0 && norms[j] > 0 {
				sim := floats.Dot(points[i], points[j]) / (norms[i] * norms[j])
				dist = min(2, max(0, 1-sim))
			}
			d.Set(i, j, dist)
			d.Set(j, i, dist)
		}
	}
	return d
}
