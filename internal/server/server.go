package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/unitroute/internal/config"
	apperrors "github.com/copyleftdev/unitroute/internal/errors"
	"github.com/copyleftdev/unitroute/internal/extract"
	"github.com/copyleftdev/unitroute/internal/logging"
	"github.com/copyleftdev/unitroute/internal/optimization"
	"github.com/copyleftdev/unitroute/internal/planner"
	"github.com/copyleftdev/unitroute/internal/registry"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Detector finds unit labels on an uploaded image.
type Detector interface {
	Detect(ctx context.Context, r io.Reader) ([]extract.Detection, extract.Size, error)
}

// Server implements the HTTP and JSON-RPC API for map storage and route
// planning.
type Server struct {
	cfg      *config.Config
	logger   Logger
	store    registry.Store
	planner  *planner.Planner
	detector Detector
	now      func() time.Time
}

// NewServer creates a new server. detector may be nil, in which case
// uploaded maps start with no units.
func NewServer(cfg *config.Config, logger Logger, store registry.Store, pl *planner.Planner, detector Detector) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		planner:  pl,
		detector: detector,
		now:      time.Now,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Post("/ocr-detect", s.handleDetect)

		r.Post("/maps", s.handleUpload)
		r.Route("/maps/{mapID}", func(r chi.Router) {
			r.Get("/", s.handleGetMap)
			r.Post("/units", s.handleReplaceUnits)
			r.Post("/route", s.handleRoute)
			r.Post("/route/export", s.handleExport)
		})
	})

	r.Get("/files/{name}", s.handleFile)

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close releases the registry.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) uploadDir() string {
	return filepath.Join(s.cfg.Storage.DataDir, "uploads")
}

// solveRequest is the body of POST /api/v1/solve and the route.solve method.
type solveRequest struct {
	Points        []optimization.Point `json:"points"`
	FloorPenalty  *float64             `json:"floorPenalty,omitempty"`
	ReturnToStart *bool                `json:"returnToStart,omitempty"`
	MaxIterations *int                 `json:"maxIterations,omitempty"`
	TimeBudgetMs  *int64               `json:"timeBudgetMs,omitempty"`
}

func (req *solveRequest) config(base optimization.SolveConfig) optimization.SolveConfig {
	cfg := base
	if req.FloorPenalty != nil {
		cfg.FloorPenalty = *req.FloorPenalty
	}
	if req.ReturnToStart != nil {
		cfg.ReturnToStart = *req.ReturnToStart
	}
	if req.MaxIterations != nil {
		cfg.MaxIterations = *req.MaxIterations
	}
	if req.TimeBudgetMs != nil {
		cfg.TimeBudget = time.Duration(*req.TimeBudgetMs) * time.Millisecond
	}
	return cfg
}

func (s *Server) solve(ctx context.Context, req *solveRequest) (*optimization.Result, error) {
	return s.planner.Solve(ctx, req.Points, req.config(s.cfg.SolveConfig()))
}

func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), nil)
		return
	}

	res, err := s.solve(r.Context(), &req)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, missing []string) {
	body := map[string]interface{}{"error": message}
	if len(missing) > 0 {
		body["missing"] = missing
	}
	respondJSON(w, status, body)
}

// respondDomainError maps engine, planner and registry errors onto HTTP
// statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		fields := map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			fields["stack"] = strings.Join(appErr.StackTrace(), "\n")
		}
		s.logger.Error("Request failed", fields)
	}

	var missing []string
	if oerr, ok := optimization.IsOptimizationError(err); ok {
		missing = oerr.Missing
	}
	s.respondError(w, status, errorMessage(err), missing)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrMapNotFound):
		return http.StatusNotFound
	case optimization.IsKind(err, optimization.KindInvalidInput),
		optimization.IsKind(err, optimization.KindConfiguration):
		return http.StatusBadRequest
	default:
		return apperrors.HTTPStatus(err)
	}
}

func errorMessage(err error) string {
	if errors.Is(err, registry.ErrMapNotFound) {
		return "Map not found"
	}
	if errors.Is(err, registry.ErrMapExists) {
		return "Map already exists"
	}
	if oerr, ok := optimization.IsOptimizationError(err); ok {
		if len(oerr.Missing) > 0 {
			return "Some units not found"
		}
		return oerr.Message
	}
	return http.StatusText(apperrors.HTTPStatus(err))
}
