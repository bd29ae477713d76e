package distance

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/unitroute/internal/optimization"
)

func TestMatrixPoolReuse(t *testing.T) {
	pool := NewMatrixPool()
	points := optimization.UnitSquare()

	first := BuildMatrixFrom(pool, points, &FloorModel{})
	backing := first.sym
	first.Release()
	assert.Equal(t, 1, pool.Pooled(4))
	assert.Zero(t, first.Size())

	// Storage comes back zeroed, then refilled with the new metric.
	moved := append([]optimization.Point(nil), points...)
	moved[2].Floor = 1
	second := BuildMatrixFrom(pool, moved, &FloorModel{FloorPenalty: 10})
	require.Same(t, backing, second.sym)
	assert.Equal(t, 0, pool.Pooled(4))

	for i := 0; i < 4; i++ {
		assert.Zero(t, second.At(i, i))
	}
	assert.InDelta(t, 11.0, second.At(1, 2), 1e-12)
	assert.InDelta(t, 1.0, second.At(0, 1), 1e-12)
}

func TestMatrixPoolBounded(t *testing.T) {
	pool := NewMatrixPool()
	for i := 0; i < maxPooledPerSize+3; i++ {
		pool.PutSymDense(pool.GetSymDense(3))
		pool.PutSymDense(NewMatrixPool().GetSymDense(3))
	}
	assert.Equal(t, maxPooledPerSize, pool.Pooled(3))
	assert.Zero(t, pool.Pooled(5))

	pool.PutSymDense(nil)
	(&Matrix{}).Release()
}

func TestMatrixPoolConcurrent(t *testing.T) {
	pool := NewMatrixPool()
	points := optimization.RandomPoints(3, 30, 100, 2)
	model := &FloorModel{FloorPenalty: 20}
	want := BuildMatrixFrom(NewMatrixPool(), points, model)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				m := BuildMatrixFrom(pool, points, model)
				if m.At(3, 7) != want.At(3, 7) {
					t.Errorf("pooled matrix mismatch")
				}
				m.Release()
			}
		}()
	}
	wg.Wait()
}
