package presence

import (
	"github.com/radian-data/presence.report/internal/mmwave"
)

// NoiseLabel marks points that belong to no cluster.
const NoiseLabel = -1

// ClusterLabels runs density clustering over the points in (x, y, z) space
// only — velocity is not spatial and is excluded from the distance metric.
//
// labels[i] is a cluster id (0, 1, …) or NoiseLabel, one per input point in
// input order. Ids are assigned in the order unvisited points are scanned, so
// the output is deterministic for a fixed input order. The pairwise
// neighborhood computation is O(n²); frames carry tens of points, never
// thousands, so no input is truncated.
func ClusterLabels(points []mmwave.Point, eps float64, minSamples int) []int {
	n := len(points)
	if n == 0 {
		return nil
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	visited := make([]bool, n)

	// Precompute self-inclusive neighborhoods.
	eps2 := eps * eps
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dx := points[j].X - points[i].X
			dy := points[j].Y - points[i].Y
			dz := points[j].Z - points[i].Z
			if dx*dx+dy*dy+dz*dz <= eps2 {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		if len(neighbors[i]) < minSamples {
			continue // stays noise unless absorbed as a border point later
		}

		// i is a core point: grow a cluster by breadth-first expansion.
		labels[i] = clusterID
		queue := append([]int(nil), neighbors[i]...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if !visited[j] {
				visited[j] = true
				if len(neighbors[j]) >= minSamples {
					// Core point: propagate through its neighbors.
					queue = append(queue, neighbors[j]...)
				}
			}
			if labels[j] == NoiseLabel {
				labels[j] = clusterID // border points are absorbed
			}
		}

		clusterID++
	}

	return labels
}
