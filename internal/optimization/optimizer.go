package optimization

import (
	"context"
	"math"
	"time"
)

// Default solve parameters for coordinates expressed in plain distance units.
const (
	DefaultFloorPenalty  = 20.0
	DefaultReturnToStart = true
	DefaultMaxIterations = 500
)

// Solver defines the interface for route optimization engines
type Solver interface {
	// Solve orders points into a visiting route that starts at points[0].
	Solve(ctx context.Context, points []Point, config SolveConfig) (*Result, error)
}

// Point is a located stop. Floor defaults to 0.
type Point struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Finite reports whether both coordinates are usable numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// SolveConfig contains per-call parameters for a solve
type SolveConfig struct {
	// Added to the planar distance whenever two points differ in floor
	FloorPenalty float64 `json:"floorPenalty"`

	// Include the closing edge back to the start in the total length
	ReturnToStart bool `json:"returnToStart"`

	// Maximum number of 2-opt sweeps
	MaxIterations int `json:"maxIterations"`

	// Wall-clock budget for the improvement phase, zero means none
	TimeBudget time.Duration `json:"timeBudget,omitempty"`
}

// DefaultSolveConfig returns the engine defaults.
func DefaultSolveConfig() SolveConfig {
	return SolveConfig{
		FloorPenalty:  DefaultFloorPenalty,
		ReturnToStart: DefaultReturnToStart,
		MaxIterations: DefaultMaxIterations,
	}
}

// Validate rejects configurations that would produce nonsensical results.
func (c SolveConfig) Validate() error {
	if math.IsNaN(c.FloorPenalty) || math.IsInf(c.FloorPenalty, 0) || c.FloorPenalty < 0 {
		return NewErrorf(KindConfiguration, "floor penalty must be a non-negative number, got %v", c.FloorPenalty).
			WithOperation("validate")
	}
	if c.MaxIterations <= 0 {
		return NewErrorf(KindConfiguration, "max iterations must be positive, got %d", c.MaxIterations).
			WithOperation("validate")
	}
	if c.TimeBudget < 0 {
		return NewErrorf(KindConfiguration, "time budget must not be negative, got %s", c.TimeBudget).
			WithOperation("validate")
	}
	return nil
}

// Tour is a visiting order over point positions. Position 0 always comes first.
type Tour []int

// Clone returns an independent copy of the tour.
func (t Tour) Clone() Tour {
	return append(Tour(nil), t...)
}

// Validate checks that t is a permutation of 0..n-1 starting at 0.
func (t Tour) Validate(n int) error {
	if len(t) != n {
		return NewErrorf(KindInternal, "tour has %d positions, want %d", len(t), n)
	}
	if n == 0 {
		return NewError(KindInternal, "tour is empty")
	}
	if t[0] != 0 {
		return NewErrorf(KindInternal, "tour starts at position %d, want 0", t[0])
	}
	seen := make([]bool, n)
	for _, p := range t {
		if p < 0 || p >= n {
			return NewErrorf(KindInternal, "tour position %d out of range [0,%d)", p, n)
		}
		if seen[p] {
			return NewErrorf(KindInternal, "tour visits position %d twice", p)
		}
		seen[p] = true
	}
	return nil
}

// StopReason records why the improvement loop ended.
type StopReason string

const (
	StopConverged      StopReason = "converged"
	StopIterationLimit StopReason = "iteration_limit"
	StopDeadline       StopReason = "deadline"
	StopCancelled      StopReason = "cancelled"
)

// Result contains the outcome of a solve
type Result struct {
	// Order is the visiting permutation of input positions, Order[0] == 0
	Order Tour `json:"order"`

	// IDs maps Order back to point identifiers
	IDs []string `json:"ids"`

	// Length is the total route length under the solve config
	Length float64 `json:"length"`

	// InitialLength is the length of the construction tour
	InitialLength float64 `json:"initialLength"`

	Sweeps int `json:"sweeps"`
	Moves  int `json:"moves"`

	// Converged is true when the last sweep found no improving move
	Converged  bool       `json:"converged"`
	StopReason StopReason `json:"stopReason"`
}

// BudgetErr reports a ComputationBudgetExceeded condition, or nil when the
// tour is known to be 2-opt locally optimal. It is informational only.
func (r *Result) BudgetErr() error {
	if r == nil || r.Converged {
		return nil
	}
	return NewErrorf(KindBudgetExceeded, "stopped before convergence (%s) after %d sweeps", r.StopReason, r.Sweeps).
		WithComponent("solver")
}
