package optimization

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// UnitSquare returns the corners of the unit square in perimeter order, all on floor 0.
func UnitSquare() []Point {
	return []Point{
		{ID: "A", X: 0, Y: 0},
		{ID: "B", X: 1, Y: 0},
		{ID: "C", X: 1, Y: 1},
		{ID: "D", X: 0, Y: 1},
	}
}

// RandomPoints generates n points in [0,scale)^2 spread over the given number of floors.
// The generator is seeded so that tests stay reproducible.
func RandomPoints(seed int64, n int, scale float64, floors int) []Point {
	rng := rand.New(rand.NewSource(seed))
	if floors < 1 {
		floors = 1
	}
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			ID:    fmt.Sprintf("P%03d", i),
			X:     rng.Float64() * scale,
			Y:     rng.Float64() * scale,
			Floor: rng.Intn(floors),
		}
	}
	return points
}

// AssertPermutation checks that order is a permutation of 0..n-1 starting at 0
func AssertPermutation(t *testing.T, order []int, n int) {
	t.Helper()

	if err := Tour(order).Validate(n); err != nil {
		t.Fatalf("invalid tour %v: %v", order, err)
	}
}

// AssertSymmetricMatrix checks that m is symmetric, has a zero diagonal and no negative entries
func AssertSymmetricMatrix(t *testing.T, m mat.Matrix, tol float64) {
	t.Helper()

	r, c := m.Dims()
	if r != c {
		t.Fatalf("matrix is not square: %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		if math.Abs(m.At(i, i)) > tol {
			t.Fatalf("diagonal at %d is %v, want 0", i, m.At(i, i))
		}
		for j := 0; j < c; j++ {
			if m.At(i, j) < 0 {
				t.Fatalf("negative entry at (%d,%d): %v", i, j, m.At(i, j))
			}
			if math.Abs(m.At(i, j)-m.At(j, i)) > tol {
				t.Fatalf("asymmetric at (%d,%d): %v vs %v", i, j, m.At(i, j), m.At(j, i))
			}
		}
	}
}
