package canvas

import (
	"math"

	"github.com/flowcanvas/flowcanvas/pkg/scene"
)

// clusterThreshold is the centroid distance (canvas units) within which two
// elements belong to the same spatial group.
const clusterThreshold = 200.0

// clusterElements performs greedy nearest-neighbor grouping: pick an
// unvisited element, sweep up every other unvisited element whose centroid
// lies within the threshold of its centroid, and call that a group. O(n²),
// tolerates an empty scene.
func clusterElements(elements []scene.Element) [][]string {
	var groups [][]string
	visited := make([]bool, len(elements))

	for i := range elements {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := []string{elements[i].ID}

		for j := range elements {
			if visited[j] {
				continue
			}
			if centroidDistance(&elements[i], &elements[j]) <= clusterThreshold {
				visited[j] = true
				group = append(group, elements[j].ID)
			}
		}

		groups = append(groups, group)
	}

	return groups
}

func centroidDistance(a, b *scene.Element) float64 {
	dx := a.CenterX() - b.CenterX()
	dy := a.CenterY() - b.CenterY()
	return math.Sqrt(dx*dx + dy*dy)
}
