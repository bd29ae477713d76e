package route

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/optimization/construction"
	"github.com/copyleftdev/unitroute/internal/optimization/distance"
	"github.com/copyleftdev/unitroute/internal/optimization/localsearch"
)

// BenchmarkSolve measures full solves over increasing instance sizes
func BenchmarkSolve(b *testing.B) {
	solver := NewSolver(WithLogger(zap.NewNop()))
	for _, n := range []int{10, 50, 100, 200} {
		points := optimization.RandomPoints(42, n, 1, 3)
		cfg := optimization.DefaultSolveConfig()
		cfg.FloorPenalty = 0.02

		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := solver.Solve(context.Background(), points, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkImprove isolates the 2-opt phase from matrix construction
func BenchmarkImprove(b *testing.B) {
	points := optimization.RandomPoints(7, 150, 100, 1)
	m := distance.BuildMatrix(points, &distance.FloorModel{FloorPenalty: 20})
	initial, err := construction.NearestNeighbor(m)
	if err != nil {
		b.Fatal(err)
	}
	opts := localsearch.Options{MaxIterations: 500, ReturnToStart: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := localsearch.Improve(context.Background(), initial, m, opts); err != nil {
			b.Fatal(err)
		}
	}
}
