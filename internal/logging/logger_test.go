package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected int
	}{
		{DebugLevel, 4},
		{InfoLevel, 3},
		{WarnLevel, 2},
		{ErrorLevel, 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.level, &buf)
			logger.Debug("debug")
			logger.Info("info")
			logger.Warn("warn")
			logger.Error("error")

			assert.Len(t, decodeLines(t, &buf), tt.expected)
		})
	}
}

func TestLoggerJSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithComponent("planner").WithError(errors.New("boom"))
	logger.Info("route planned", map[string]interface{}{"points": 4, "cause": errors.New("inner")})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "route planned", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "planner", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "inner", entry["cause"])
	assert.Equal(t, float64(4), entry["points"])
	assert.Contains(t, entry["caller"], "logging/logger_test.go")
	assert.NotEmpty(t, entry["timestamp"])
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	base := New(InfoLevel, &buf)
	_ = base.WithField("map_id", "m1")
	base.Info("plain")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0], "map_id")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf).WithFormat(FormatText).WithFields(map[string]interface{}{"b": 2, "a": 1})
	logger.Warn("slow solve")

	line := buf.String()
	assert.Contains(t, line, "WARN  slow solve")
	assert.Less(t, strings.Index(line, " a=1"), strings.Index(line, " b=2"))
}

func TestFatalExits(t *testing.T) {
	var code int
	exit = func(c int) { code = c }
	defer func() { exit = os.Exit }()

	var buf bytes.Buffer
	New(InfoLevel, &buf).Fatal("cannot start")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "cannot start")
}

func TestNewLoggerConfig(t *testing.T) {
	logger, err := NewLogger(&Config{Level: "warn", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, logger.Level())
	assert.Equal(t, FormatText, logger.format)

	logger, err = NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.Level())
	assert.Equal(t, FormatJSON, logger.format)

	path := t.TempDir() + "/logs/service.log"
	logger, err = NewLogger(&Config{Level: "debug", Output: path})
	require.NoError(t, err)
	logger.Debug("to file")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctxLogger := &CtxLogger{New(InfoLevel, &buf).WithField("request_id", "r-1")}
	ctx := ctxLogger.WithContext(context.Background())

	FromContext(ctx).Info("hello")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "r-1", entries[0]["request_id"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestZapAdapter(t *testing.T) {
	var buf bytes.Buffer
	zl := NewZapLogger(New(InfoLevel, &buf)).With(zap.String("component", "solver"))

	zl.Debug("dropped")
	zl.Info("route solved",
		zap.Float64("length", 4.5),
		zap.Int("points", 4),
		zap.Bool("converged", true),
		zap.Duration("elapsed", 1500*time.Millisecond),
		zap.Error(errors.New("none")),
		zap.Strings("ids", []string{"A", "B"}),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "route solved", entry["message"])
	assert.Equal(t, "solver", entry["component"])
	assert.Equal(t, 4.5, entry["length"])
	assert.Equal(t, float64(4), entry["points"])
	assert.Equal(t, true, entry["converged"])
	assert.Equal(t, "1.5s", entry["elapsed"])
	assert.Equal(t, "none", entry["error"])
	assert.Equal(t, []interface{}{"A", "B"}, entry["ids"])
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf)

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/maps/m1", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 3)
	assert.Equal(t, "inside handler", entries[1]["message"])
	assert.Equal(t, "/api/v1/maps/m1", entries[1]["path"])
	assert.Equal(t, "WARN", entries[2]["level"])
	assert.Equal(t, float64(http.StatusTeapot), entries[2]["status"])
}
