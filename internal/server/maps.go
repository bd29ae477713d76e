package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/copyleftdev/unitroute/internal/errors"
	"github.com/copyleftdev/unitroute/internal/export"
	"github.com/copyleftdev/unitroute/internal/extract"
	"github.com/copyleftdev/unitroute/internal/logging"
	"github.com/copyleftdev/unitroute/internal/metrics"
	"github.com/copyleftdev/unitroute/internal/planner"
	"github.com/copyleftdev/unitroute/internal/registry"
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// requestLogger prefers the request-scoped logger installed by the logging
// middleware.
func (s *Server) requestLogger(ctx context.Context) Logger {
	if l := logging.FromContext(ctx); l != nil && l.Logger != nil {
		return l.Logger
	}
	return s.logger
}

// readUpload reads the multipart "map" file into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.HTTP.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.HTTP.MaxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("map")
	if err != nil {
		return nil, "", fmt.Errorf("no file uploaded in field \"map\"")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	return data, header.Filename, nil
}

// detect runs extraction; failures are logged and yield no units.
func (s *Server) detect(ctx context.Context, data []byte) ([]extract.Detection, *extract.Size) {
	if s.detector == nil {
		return []extract.Detection{}, nil
	}
	found, size, err := s.detector.Detect(ctx, bytes.NewReader(data))
	if err != nil {
		s.requestLogger(ctx).Warn("Unit detection failed", map[string]interface{}{
			"error": err.Error(),
		})
		if size.Width == 0 {
			return []extract.Detection{}, nil
		}
		return []extract.Detection{}, &size
	}
	metrics.DetectedUnits.Observe(float64(len(found)))
	return found, &size
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.readUpload(w, r)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		s.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	id := registry.NewMapID(s.now())
	ext := strings.ToLower(filepath.Ext(filename))
	if !imageExts[ext] {
		ext = ".png"
	}
	name := id + ext

	if err := s.saveUpload(name, data); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		s.requestLogger(r.Context()).Error("Failed to store upload", map[string]interface{}{
			"error":  err.Error(),
			"map_id": id,
		})
		s.respondError(w, apperrors.HTTPStatus(err), "Failed to store upload", nil)
		return
	}

	found, size := s.detect(r.Context(), data)

	rec := &registry.MapRecord{
		ID:       id,
		ImageURL: "/files/" + name,
		Width:    formInt(r, "width"),
		Height:   formInt(r, "height"),
		Units:    make([]registry.Unit, len(found)),
	}
	if size != nil {
		if rec.Width == nil {
			rec.Width = &size.Width
		}
		if rec.Height == nil {
			rec.Height = &size.Height
		}
	}
	for i, d := range found {
		rec.Units[i] = registry.Unit{Label: d.Unit, X: d.X, Y: d.Y, Floor: d.Floor}
	}

	if err := s.store.CreateMap(r.Context(), rec); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		s.respondDomainError(w, r, err)
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	s.requestLogger(r.Context()).Info("Map uploaded", map[string]interface{}{
		"map_id": id,
		"units":  len(rec.Units),
	})
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) saveUpload(name string, data []byte) error {
	dir := s.uploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(err, "create upload dir").WithOperation("save_upload").WithComponent("server")
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return apperrors.Wrapf(err, "write %s", name).WithOperation("save_upload").WithComponent("server")
	}
	return nil
}

func formInt(r *http.Request, key string) *int {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	data, _, err := s.readUpload(w, r)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	found, _ := s.detect(r.Context(), data)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"units":   found,
	})
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetMap(r.Context(), chi.URLParam(r, "mapID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReplaceUnits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Units []registry.Unit `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), nil)
		return
	}
	if body.Units == nil {
		body.Units = []registry.Unit{}
	}

	rec, err := s.store.ReplaceUnits(r.Context(), chi.URLParam(r, "mapID"), body.Units)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":  true,
		"map": rec,
	})
}

func (s *Server) plan(w http.ResponseWriter, r *http.Request) (*planner.Plan, bool) {
	var req planner.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), nil)
		return nil, false
	}
	plan, err := s.planner.Plan(r.Context(), chi.URLParam(r, "mapID"), req)
	if err != nil {
		s.respondDomainError(w, r, err)
		return nil, false
	}
	return plan, true
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.plan(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	plan, ok := s.plan(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Render(&buf, format, export.FromPlan(plan)); err != nil {
		s.requestLogger(r.Context()).Error("Export failed", map[string]interface{}{
			"format": string(format),
			"map_id": plan.MapID,
			"error":  err.Error(),
		})
		s.respondError(w, http.StatusInternalServerError, "Export failed", nil)
		return
	}
	metrics.ExportsTotal.WithLabelValues(string(format)).Inc()

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="route-%s.%s"`, plan.MapID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(s.uploadDir(), name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
