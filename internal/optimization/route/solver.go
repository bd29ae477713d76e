// Package route orchestrates the route engine: distance matrix, nearest
// neighbor construction and 2-opt improvement.
package route

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/optimization/construction"
	"github.com/copyleftdev/unitroute/internal/optimization/distance"
	"github.com/copyleftdev/unitroute/internal/optimization/localsearch"
)

// Solver implements optimization.Solver. It holds no per-call state and is
// safe for concurrent use.
type Solver struct {
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Solver
type Option func(*Solver)

// WithLogger sets the logger used for solve traces
func WithLogger(logger *zap.Logger) Option {
	return func(s *Solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used to turn time budgets into deadlines
func WithClock(now func() time.Time) Option {
	return func(s *Solver) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSolver creates a new route solver
func NewSolver(opts ...Option) *Solver {
	s := &Solver{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ optimization.Solver = (*Solver)(nil)

// Solve orders points into a short route starting at points[0]
func (s *Solver) Solve(ctx context.Context, points []optimization.Point, config optimization.SolveConfig) (*optimization.Result, error) {
	if err := config.Validate(); err != nil {
		return nil, withComponent(err)
	}
	if len(points) == 0 {
		return nil, optimization.NewError(optimization.KindInvalidInput, "at least one point is required").
			WithOperation("solve").WithComponent("solver")
	}
	for i, p := range points {
		if !p.Finite() {
			return nil, optimization.NewErrorf(optimization.KindInvalidInput,
				"point %d (%q) has non-finite coordinates", i, p.ID).
				WithOperation("solve").WithComponent("solver")
		}
	}

	model, err := distance.NewFloorModel(config.FloorPenalty)
	if err != nil {
		return nil, err
	}
	m := distance.BuildMatrix(points, model)
	defer m.Release()

	initial, err := construction.NearestNeighbor(m)
	if err != nil {
		return nil, err
	}
	initialLength := m.TourLength(initial, config.ReturnToStart)

	opts := localsearch.Options{
		MaxIterations: config.MaxIterations,
		ReturnToStart: config.ReturnToStart,
	}
	if config.TimeBudget > 0 {
		opts.Deadline = s.now().Add(config.TimeBudget)
	}

	out, err := localsearch.Improve(ctx, initial, m, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(out.Tour))
	for i, pos := range out.Tour {
		ids[i] = points[pos].ID
	}

	s.logger.Debug("route solved",
		zap.Int("points", len(points)),
		zap.Float64("initial_length", initialLength),
		zap.Float64("length", out.Length),
		zap.Int("sweeps", out.Sweeps),
		zap.Int("moves", out.Moves),
		zap.String("stop_reason", string(out.Stop)),
	)
	if !out.Converged {
		s.logger.Warn("route search stopped before convergence",
			zap.Int("points", len(points)),
			zap.Int("sweeps", out.Sweeps),
			zap.String("stop_reason", string(out.Stop)),
		)
	}

	return &optimization.Result{
		Order:         out.Tour,
		IDs:           ids,
		Length:        out.Length,
		InitialLength: initialLength,
		Sweeps:        out.Sweeps,
		Moves:         out.Moves,
		Converged:     out.Converged,
		StopReason:    out.Stop,
	}, nil
}

func withComponent(err error) error {
	if e, ok := optimization.IsOptimizationError(err); ok && e.Component == "" {
		e.Component = "solver"
	}
	return err
}
