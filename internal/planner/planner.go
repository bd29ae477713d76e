// Package planner resolves unit labels against a stored map and solves the
// visiting order for them.
package planner

import (
	"context"
	"io"
	"time"

	"github.com/copyleftdev/unitroute/internal/logging"
	"github.com/copyleftdev/unitroute/internal/metrics"
	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/registry"
)

// DefaultMaxPoints bounds the number of stops in one request.
const DefaultMaxPoints = 2000

// Request selects the units to visit on a map. Nil fields fall back to the
// planner defaults.
type Request struct {
	Units         []string `json:"units"`
	StartUnit     string   `json:"startUnit,omitempty"`
	ReturnToStart *bool    `json:"returnToStart,omitempty"`
	FloorPenalty  *float64 `json:"floorPenalty,omitempty"`
	MaxIterations *int     `json:"maxIterations,omitempty"`
}

// Waypoint is one stop of a planned route.
type Waypoint struct {
	ID    string  `json:"id"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Floor int     `json:"floor"`
}

// Plan is the solved route over a map.
type Plan struct {
	MapID         string                  `json:"mapId"`
	Route         []string                `json:"route"`
	Length        float64                 `json:"length"`
	Path          []Waypoint              `json:"path"`
	Converged     bool                    `json:"converged"`
	StopReason    optimization.StopReason `json:"stopReason"`
	Sweeps        int                     `json:"sweeps"`
	ReturnToStart bool                    `json:"returnToStart"`
}

// Planner plans routes over maps held in a registry.
type Planner struct {
	store     registry.Store
	solver    optimization.Solver
	defaults  optimization.SolveConfig
	maxPoints int
	logger    *logging.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithDefaults sets the solve configuration used when a request leaves a
// field unset.
func WithDefaults(cfg optimization.SolveConfig) Option {
	return func(p *Planner) {
		p.defaults = cfg
	}
}

// WithMaxPoints caps the number of stops per request.
func WithMaxPoints(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.maxPoints = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a planner over store using solver.
func New(store registry.Store, solver optimization.Solver, opts ...Option) *Planner {
	p := &Planner{
		store:     store,
		solver:    solver,
		defaults:  optimization.DefaultSolveConfig(),
		maxPoints: DefaultMaxPoints,
		logger:    logging.New(logging.ErrorLevel, io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Defaults returns the planner's base solve configuration.
func (p *Planner) Defaults() optimization.SolveConfig {
	return p.defaults
}

// Plan resolves req against the map and solves the route. The start unit is
// placed first; when it is unknown the first requested unit is used.
func (p *Planner) Plan(ctx context.Context, mapID string, req Request) (*Plan, error) {
	rec, err := p.store.GetMap(ctx, mapID)
	if err != nil {
		return nil, err
	}
	if len(req.Units) == 0 {
		return nil, optimization.NewError(optimization.KindInvalidInput, "no units requested").
			WithComponent("planner")
	}

	labels := dedupe(req.Units)
	idx := rec.Index()

	start := labels[0]
	if _, ok := idx[req.StartUnit]; ok && req.StartUnit != "" {
		start = req.StartUnit
	}
	ordered := make([]string, 0, len(labels)+1)
	ordered = append(ordered, start)
	for _, l := range labels {
		if l != start {
			ordered = append(ordered, l)
		}
	}

	units, missing := rec.Lookup(ordered)
	if len(missing) > 0 {
		return nil, optimization.NewErrorf(optimization.KindInvalidInput, "%d units not found on map %s", len(missing), mapID).
			WithComponent("planner").
			WithMissing(missing)
	}
	if len(units) > p.maxPoints {
		return nil, optimization.NewErrorf(optimization.KindInvalidInput, "%d stops exceeds the limit of %d", len(units), p.maxPoints).
			WithComponent("planner")
	}

	cfg := p.config(req)
	points := make([]optimization.Point, len(units))
	for i, u := range units {
		points[i] = u.Point()
	}

	res, err := p.Solve(ctx, points, cfg)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		MapID:         mapID,
		Route:         res.IDs,
		Length:        res.Length,
		Path:          make([]Waypoint, len(res.Order)),
		Converged:     res.Converged,
		StopReason:    res.StopReason,
		Sweeps:        res.Sweeps,
		ReturnToStart: cfg.ReturnToStart,
	}
	for i, pos := range res.Order {
		pt := points[pos]
		plan.Path[i] = Waypoint{ID: pt.ID, X: pt.X, Y: pt.Y, Floor: pt.Floor}
	}

	p.logger.Debug("route planned", map[string]interface{}{
		"map_id": mapID,
		"stops":  len(points),
		"length": res.Length,
		"sweeps": res.Sweeps,
	})
	return plan, nil
}

// Solve runs the solver on raw points and records solve metrics.
func (p *Planner) Solve(ctx context.Context, points []optimization.Point, cfg optimization.SolveConfig) (*optimization.Result, error) {
	if len(points) > p.maxPoints {
		metrics.SolvesTotal.WithLabelValues("rejected").Inc()
		return nil, optimization.NewErrorf(optimization.KindInvalidInput, "%d points exceeds the limit of %d", len(points), p.maxPoints).
			WithComponent("planner")
	}

	started := time.Now()
	res, err := p.solver.Solve(ctx, points, cfg)
	metrics.SolveDurationSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		status := "error"
		if optimization.IsKind(err, optimization.KindInvalidInput) || optimization.IsKind(err, optimization.KindConfiguration) {
			status = "rejected"
		}
		metrics.SolvesTotal.WithLabelValues(status).Inc()
		return nil, err
	}

	metrics.SolvesTotal.WithLabelValues("ok").Inc()
	metrics.SolvePoints.Observe(float64(len(points)))
	metrics.SolveSweeps.Observe(float64(res.Sweeps))
	if !res.Converged {
		metrics.BudgetStopsTotal.WithLabelValues(string(res.StopReason)).Inc()
		p.logger.Warn("route search stopped early", map[string]interface{}{
			"stop_reason": string(res.StopReason),
			"points":      len(points),
			"sweeps":      res.Sweeps,
		})
	}
	return res, nil
}

func (p *Planner) config(req Request) optimization.SolveConfig {
	cfg := p.defaults
	if req.ReturnToStart != nil {
		cfg.ReturnToStart = *req.ReturnToStart
	}
	if req.FloorPenalty != nil {
		cfg.FloorPenalty = *req.FloorPenalty
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	return cfg
}

// dedupe keeps the first occurrence of each label.
func dedupe(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
