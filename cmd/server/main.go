package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/copyleftdev/unitroute/internal/config"
	apperrors "github.com/copyleftdev/unitroute/internal/errors"
	"github.com/copyleftdev/unitroute/internal/extract"
	"github.com/copyleftdev/unitroute/internal/logging"
	"github.com/copyleftdev/unitroute/internal/optimization/route"
	"github.com/copyleftdev/unitroute/internal/planner"
	"github.com/copyleftdev/unitroute/internal/registry"
	"github.com/copyleftdev/unitroute/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use standard logger as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "unitroute",
		"version": "1.0.0",
	})

	store, err := registry.Open(ctx, registry.Options{
		Backend:       cfg.Storage.Backend,
		DSN:           cfg.Storage.DSN,
		MaxConns:      cfg.Storage.MaxConns,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		RedisDB:       cfg.Storage.RedisDB,
		RedisPrefix:   cfg.Storage.RedisPrefix,
	})
	if err != nil {
		serviceLogger.Fatal("Failed to open map registry", map[string]interface{}{
			"backend": cfg.Storage.Backend,
			"error":   err.Error(),
		})
	}

	// The engine logs through zap; bridge it onto the service logger.
	solver := route.NewSolver(route.WithLogger(logging.NewZapLogger(serviceLogger.WithComponent("solver"))))
	pl := planner.New(store, solver,
		planner.WithDefaults(cfg.MapSolveConfig()),
		planner.WithMaxPoints(cfg.Solver.MaxPoints),
		planner.WithLogger(serviceLogger.WithComponent("planner")),
	)

	var detector server.Detector
	if cfg.Extract.Enabled {
		recognizer := extract.NewTesseractRecognizer(cfg.Extract.TesseractPath, cfg.Extract.Language)
		detector = &timedDetector{
			pipeline: extract.NewPipeline(recognizer, cfg.Extract.ResizeWidth, serviceLogger),
			timeout:  cfg.Extract.Timeout,
		}
	}

	r := newRouter(serviceLogger, cfg.HTTP.RequestTimeout)

	srv := server.NewServer(cfg, serviceLogger, store, pl, detector)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
			"backend": cfg.Storage.Backend,
		})

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing map registry", map[string]interface{}{"error": err})
	}

	serviceLogger.Info("server exited properly")
}

// newRouter builds the middleware stack and the operational endpoints.
// logging.Middleware is the only access log; it reports 4xx at WARN and
// 5xx at ERROR.
func newRouter(logger *logging.Logger, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if l := logging.FromContext(r.Context()); l != nil {
			l.Debug("Health check")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// timedDetector bounds each extraction run.
type timedDetector struct {
	pipeline *extract.Pipeline
	timeout  time.Duration
}

func (d *timedDetector) Detect(ctx context.Context, r io.Reader) ([]extract.Detection, extract.Size, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.pipeline.Detect(ctx, r)
}
