// Package localsearch improves visiting orders with 2-opt segment reversals.
//
// The search is first-improvement with a full restart: every sweep scans the
// candidate pairs (i,k), 1 ≤ i < k ≤ n-2, in ascending order and applies the
// first reversal of tour[i..k] that shortens the route by more than Epsilon.
// Scanning then starts over on the updated tour. Position 0 never moves, and
// since k stops at n-2 the last visited position never moves either, so the
// closing edge back to the start is constant across moves.
package localsearch

import (
	"context"
	"errors"
	"time"

	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/optimization/distance"
)

// Epsilon is the minimum length reduction for a move to count as improving.
const Epsilon = 1e-9

// checkEvery throttles deadline and context checks inside a sweep.
const checkEvery = 1024

// Options configures an improvement run
type Options struct {
	// MaxIterations caps the number of sweeps
	MaxIterations int

	// ReturnToStart includes the closing edge in reported lengths
	ReturnToStart bool

	// Deadline stops the search with the best tour so far; zero means none
	Deadline time.Time
}

// Outcome contains the result of an improvement run
type Outcome struct {
	Tour      optimization.Tour
	Length    float64
	Sweeps    int
	Moves     int
	Converged bool
	Stop      optimization.StopReason
}

// Improve runs 2-opt on a copy of tour until a sweep finds no improving
// move or a budget runs out. Budget stops are not errors: the best tour found
// so far is returned with Converged unset.
func Improve(ctx context.Context, tour optimization.Tour, m *distance.Matrix, opts Options) (*Outcome, error) {
	n := m.Size()
	if n == 0 {
		return nil, optimization.NewError(optimization.KindInternal, "cannot improve a tour over an empty matrix").
			WithComponent("localsearch")
	}
	if err := tour.Validate(n); err != nil {
		return nil, optimization.WrapError(err, optimization.KindInternal, "invalid initial tour").
			WithComponent("localsearch")
	}
	if opts.MaxIterations <= 0 {
		return nil, optimization.NewErrorf(optimization.KindConfiguration,
			"max iterations must be positive, got %d", opts.MaxIterations).
			WithComponent("localsearch")
	}

	s := &search{
		ctx:      ctx,
		m:        m,
		deadline: opts.Deadline,
		cur:      tour.Clone(),
	}
	length := m.TourLength(s.cur, opts.ReturnToStart)

	out := &Outcome{Stop: optimization.StopIterationLimit}
	for out.Sweeps < opts.MaxIterations {
		if reason, stop := s.interrupted(); stop {
			out.Stop = reason
			break
		}
		out.Sweeps++

		moved, reason, stop := s.sweep()
		if moved {
			out.Moves++
			// Recompute from scratch so the reported length is the exact
			// edge sum of the returned tour rather than an accumulated delta.
			length = m.TourLength(s.cur, opts.ReturnToStart)
			continue
		}
		if stop {
			out.Stop = reason
			break
		}
		out.Converged = true
		out.Stop = optimization.StopConverged
		break
	}

	out.Tour = s.cur
	out.Length = length
	return out, nil
}

type search struct {
	ctx      context.Context
	m        *distance.Matrix
	deadline time.Time
	cur      optimization.Tour
	steps    int
}

// sweep scans candidates in order and applies the first improving reversal.
// It reports whether a move was applied, or why scanning was interrupted.
func (s *search) sweep() (bool, optimization.StopReason, bool) {
	n := len(s.cur)
	cur := s.cur

	for i := 1; i <= n-3; i++ {
		a, b := cur[i-1], cur[i]
		wab := s.m.At(a, b)
		for k := i + 1; k <= n-2; k++ {
			s.steps++
			if s.steps%checkEvery == 0 {
				if reason, stop := s.interrupted(); stop {
					return false, reason, true
				}
			}

			c, d := cur[k], cur[k+1]
			delta := s.m.At(a, c) + s.m.At(b, d) - wab - s.m.At(c, d)
			if delta < -Epsilon {
				reverse(cur, i, k)
				return true, "", false
			}
		}
	}
	return false, "", false
}

// interrupted reports whether the deadline passed or the context is done.
func (s *search) interrupted() (optimization.StopReason, bool) {
	if err := s.ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return optimization.StopDeadline, true
		}
		return optimization.StopCancelled, true
	}
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return optimization.StopDeadline, true
	}
	return "", false
}

func reverse(t optimization.Tour, i, k int) {
	for i < k {
		t[i], t[k] = t[k], t[i]
		i++
		k--
	}
}
