// Package distance provides the pairwise cost model used by the route engine.
package distance

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/unitroute/internal/optimization"
)

// Metric represents a pairwise cost function between two located points
type Metric interface {
	// Cost computes the travel cost between a and b. It must be symmetric,
	// non-negative and zero for identical points.
	Cost(a, b optimization.Point) float64
}

// FloorModel implements straight-line distance plus a fixed penalty for
// edges that change floor
type FloorModel struct {
	// FloorPenalty is added whenever the two points are on different floors
	FloorPenalty float64
}

// NewFloorModel creates a floor-aware Euclidean metric with the given penalty
func NewFloorModel(floorPenalty float64) (*FloorModel, error) {
	if math.IsNaN(floorPenalty) || math.IsInf(floorPenalty, 0) || floorPenalty < 0 {
		return nil, optimization.NewErrorf(optimization.KindConfiguration,
			"floor penalty must be a non-negative number, got %v", floorPenalty).
			WithComponent("distance")
	}
	return &FloorModel{FloorPenalty: floorPenalty}, nil
}

// Cost computes the floor-aware distance between a and b
func (m *FloorModel) Cost(a, b optimization.Point) float64 {
	d := math.Hypot(a.X-b.X, a.Y-b.Y)
	if a.Floor != b.Floor {
		d += m.FloorPenalty
	}
	return d
}

// Matrix is an immutable n×n table of pairwise costs between points by position.
type Matrix struct {
	n    int
	sym  *mat.SymDense
	pool *MatrixPool
}

// BuildMatrix computes the cost of every pair of points. The diagonal stays zero.
// An empty point set produces an empty matrix.
func BuildMatrix(points []optimization.Point, metric Metric) *Matrix {
	return BuildMatrixFrom(defaultPool, points, metric)
}

// BuildMatrixFrom is BuildMatrix drawing storage from pool.
func BuildMatrixFrom(pool *MatrixPool, points []optimization.Point, metric Metric) *Matrix {
	n := len(points)
	if n == 0 {
		return &Matrix{}
	}

	sym := pool.GetSymDense(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sym.SetSym(i, j, metric.Cost(points[i], points[j]))
		}
	}
	return &Matrix{n: n, sym: sym, pool: pool}
}

// Release returns the matrix storage to its pool. The matrix must not be
// used afterwards.
func (m *Matrix) Release() {
	if m.sym == nil || m.pool == nil {
		return
	}
	m.pool.PutSymDense(m.sym)
	m.n, m.sym, m.pool = 0, nil, nil
}

// Size returns the number of points the matrix covers.
func (m *Matrix) Size() int {
	return m.n
}

// At returns the cost between positions i and j.
func (m *Matrix) At(i, j int) float64 {
	return m.sym.At(i, j)
}

// Symmetric exposes the matrix as a read-only gonum view; nil when empty.
func (m *Matrix) Symmetric() mat.Symmetric {
	if m.sym == nil {
		return nil
	}
	return m.sym
}

// TourLength sums consecutive edge costs along tour and, when closed is set,
// the edge from the last position back to the first.
func (m *Matrix) TourLength(tour []int, closed bool) float64 {
	if len(tour) == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(tour); i++ {
		sum += m.sym.At(tour[i], tour[i+1])
	}
	if closed {
		sum += m.sym.At(tour[len(tour)-1], tour[0])
	}
	return sum
}
