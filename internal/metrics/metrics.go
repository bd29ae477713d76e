// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SolvesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unitroute_solves_total",
		Help: "Total route solves by outcome",
	}, []string{"status"})
	SolveDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unitroute_solve_duration_seconds",
		Help:    "Wall-clock time of a route solve",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
	SolvePoints = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unitroute_solve_points",
		Help:    "Number of stops per solve",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	SolveSweeps = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unitroute_solve_sweeps",
		Help:    "2-opt sweeps performed per solve",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	})
	BudgetStopsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unitroute_budget_stops_total",
		Help: "Solves that stopped before reaching a 2-opt local optimum",
	}, []string{"reason"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unitroute_map_uploads_total",
		Help: "Map image uploads by outcome",
	}, []string{"status"})
	DetectedUnits = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "unitroute_detected_units",
		Help:    "Units detected per extracted image",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
	})
	ExportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "unitroute_exports_total",
		Help: "Rendered route sheets by format",
	}, []string{"format"})
)

func init() {
	prometheus.MustRegister(
		SolvesTotal,
		SolveDurationSeconds,
		SolvePoints,
		SolveSweeps,
		BudgetStopsTotal,
		UploadsTotal,
		DetectedUnits,
		ExportsTotal,
	)
}
