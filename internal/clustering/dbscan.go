package clustering

import "github.com/kiranshivaraju/sessionlens/pkg/vectormath"

// noiseLabel marks points that density clustering declines to assign.
const noiseLabel = -1

// dbscan runs density-based clustering over the given vectors using cosine
// distance. A point is a core point when at least minPoints vectors
// (including itself) lie within epsilon. Non-core points reachable from a
// core point join its cluster; everything else is noise.
//
// Iteration is strictly in index order and expansion uses a FIFO queue, so
// the labeling is deterministic for identical input.
func dbscan(vectors [][]float32, epsilon float64, minPoints int) []int {
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	if n == 0 {
		return labels
	}
	if minPoints < 1 {
		minPoints = 1
	}

	visited := make([]bool, n)
	next := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(vectors, i, epsilon)
		if len(neighbors) < minPoints {
			continue // stays noise unless absorbed by a later expansion
		}

		cluster := next
		next++
		labels[i] = cluster

		// Expand: neighbors is a FIFO queue that grows as core points are found.
		for qi := 0; qi < len(neighbors); qi++ {
			p := neighbors[qi]
			if labels[p] == noiseLabel {
				labels[p] = cluster
			}
			if visited[p] {
				continue
			}
			visited[p] = true

			pNeighbors := regionQuery(vectors, p, epsilon)
			if len(pNeighbors) >= minPoints {
				neighbors = append(neighbors, pNeighbors...)
			}
		}
	}

	return labels
}

// regionQuery returns the indices of all vectors within epsilon of vectors[i],
// including i itself, in ascending index order.
func regionQuery(vectors [][]float32, i int, epsilon float64) []int {
	var neighbors []int
	for j := range vectors {
		if vectormath.CosineDistance(vectors[i], vectors[j]) <= epsilon {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
