package construction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/optimization/distance"
)

func buildMatrix(t *testing.T, points []optimization.Point, penalty float64) *distance.Matrix {
	t.Helper()
	model, err := distance.NewFloorModel(penalty)
	require.NoError(t, err)
	return distance.BuildMatrix(points, model)
}

func TestNearestNeighbor(t *testing.T) {
	tests := []struct {
		name     string
		points   []optimization.Point
		penalty  float64
		expected optimization.Tour
	}{
		{
			name:     "single point",
			points:   []optimization.Point{{ID: "A"}},
			expected: optimization.Tour{0},
		},
		{
			name:     "two points",
			points:   []optimization.Point{{ID: "A"}, {ID: "B", X: 3, Y: 4}},
			expected: optimization.Tour{0, 1},
		},
		{
			name: "collinear points out of order",
			points: []optimization.Point{
				{ID: "A", X: 0},
				{ID: "D", X: 3},
				{ID: "B", X: 1},
				{ID: "C", X: 2},
			},
			expected: optimization.Tour{0, 2, 3, 1},
		},
		{
			name:     "unit square ties go to the lowest index",
			points:   optimization.UnitSquare(),
			expected: optimization.Tour{0, 1, 2, 3},
		},
		{
			name: "floor penalty pushes the other floor last",
			points: []optimization.Point{
				{ID: "A", X: 0, Y: 0, Floor: 0},
				{ID: "up", X: 0.1, Y: 0, Floor: 1},
				{ID: "far", X: 5, Y: 0, Floor: 0},
			},
			penalty:  20,
			expected: optimization.Tour{0, 2, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tour, err := NearestNeighbor(buildMatrix(t, tt.points, tt.penalty))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tour)
		})
	}
}

func TestNearestNeighborTieBreak(t *testing.T) {
	// Every candidate is equidistant from the start.
	points := []optimization.Point{
		{ID: "center", X: 0, Y: 0},
		{ID: "east", X: 1, Y: 0},
		{ID: "north", X: 0, Y: 1},
		{ID: "west", X: -1, Y: 0},
		{ID: "south", X: 0, Y: -1},
	}
	tour, err := NearestNeighbor(buildMatrix(t, points, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, tour[1], "first equidistant candidate should win")
	optimization.AssertPermutation(t, tour, len(points))
}

func TestNearestNeighborPermutation(t *testing.T) {
	for _, n := range []int{1, 2, 3, 10, 57} {
		points := optimization.RandomPoints(int64(n), n, 10, 2)
		tour, err := NearestNeighbor(buildMatrix(t, points, 20))
		require.NoError(t, err)
		optimization.AssertPermutation(t, tour, n)
	}
}

func TestNearestNeighborEmpty(t *testing.T) {
	_, err := NearestNeighbor(distance.BuildMatrix(nil, &distance.FloorModel{}))
	require.Error(t, err)
	assert.True(t, optimization.IsKind(err, optimization.KindInternal))
}
