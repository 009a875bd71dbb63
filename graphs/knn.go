package graphs

import (
	"math"
	"sort"
)

// KNNEdges builds the directed k-nearest-neighbor adjacency over 2D points:
// each node i gets k outgoing edges to its k closest other nodes (fewer when
// the graph has at most k nodes). Returned as parallel source/target index
// slices, ready for [Example].EdgeSources/EdgeTargets.
func KNNEdges(x, y []float64, k int) (sources, targets []int32) {
	n := len(x)
	if k > n-1 {
		k = n - 1
	}
	if k <= 0 {
		return nil, nil
	}
	sources = make([]int32, 0, n*k)
	targets = make([]int32, 0, n*k)
	neighbors := make([]int, n-1)
	for i := range n {
		neighbors = neighbors[:0]
		for j := range n {
			if j != i {
				neighbors = append(neighbors, j)
			}
		}
		sort.Slice(neighbors, func(a, b int) bool {
			return squaredDistance(x, y, i, neighbors[a]) < squaredDistance(x, y, i, neighbors[b])
		})
		for _, j := range neighbors[:k] {
			sources = append(sources, int32(i))
			targets = append(targets, int32(j))
		}
	}
	return sources, targets
}

// EuclideanDistance between points i and j of the coordinate slices.
func EuclideanDistance(x, y []float64, i, j int) float64 {
	return math.Sqrt(squaredDistance(x, y, i, j))
}

func squaredDistance(x, y []float64, i, j int) float64 {
	dx, dy := x[i]-x[j], y[i]-y[j]
	return dx*dx + dy*dy
}
