// Package construction builds initial visiting orders for the route engine.
package construction

import (
	"math"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/optimization/distance"
)

// NearestNeighbor walks from position 0, always moving to the cheapest
// unvisited position. Equal costs resolve to the lowest position index, which
// keeps the construction deterministic.
func NearestNeighbor(m *distance.Matrix) (optimization.Tour, error) {
	n := m.Size()
	if n == 0 {
		return nil, optimization.NewError(optimization.KindInternal, "cannot construct a tour over an empty matrix").
			WithComponent("construction")
	}

	visited := make([]bool, n)
	tour := make(optimization.Tour, 1, n)
	visited[0] = true

	for step := 1; step < n; step++ {
		last := tour[len(tour)-1]
		best, bestCost := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if visited[j] {
				continue
			}
			// strict comparison: the first minimum in index order wins
			if c := m.At(last, j); best < 0 || c < bestCost {
				best, bestCost = j, c
			}
		}
		tour = append(tour, best)
		visited[best] = true
	}

	return tour, nil
}
