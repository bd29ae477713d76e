package distance

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// maxPooledPerSize bounds how many released matrices of one size are kept.
const maxPooledPerSize = 4

// MatrixPool recycles cost-matrix storage between solves of the same size.
// It is safe for concurrent use.
type MatrixPool struct {
	mu   sync.Mutex
	free map[int][]*mat.SymDense
}

// NewMatrixPool creates an empty pool.
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{free: make(map[int][]*mat.SymDense)}
}

// GetSymDense returns a zeroed n×n symmetric matrix, reusing released
// storage when available.
func (p *MatrixPool) GetSymDense(n int) *mat.SymDense {
	p.mu.Lock()
	list := p.free[n]
	if len(list) > 0 {
		m := list[len(list)-1]
		p.free[n] = list[:len(list)-1]
		p.mu.Unlock()
		m.Zero()
		return m
	}
	p.mu.Unlock()
	return mat.NewSymDense(n, nil)
}

// PutSymDense hands m back to the pool. The caller must not use it again.
func (p *MatrixPool) PutSymDense(m *mat.SymDense) {
	if m == nil {
		return
	}
	n := m.SymmetricDim()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free[n]) < maxPooledPerSize {
		p.free[n] = append(p.free[n], m)
	}
}

// Pooled reports how many matrices of size n are waiting for reuse.
func (p *MatrixPool) Pooled(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free[n])
}

var defaultPool = NewMatrixPool()
