package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENV_FILE", filepath.Join(dir, "absent.env"))
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 4000, cfg.HTTP.Port)
	assert.Equal(t, int64(10<<20), cfg.HTTP.MaxUploadBytes)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(dir, "data")+"/unitroute.db", cfg.Storage.DSN)
	assert.DirExists(t, filepath.Join(dir, "data"))

	solve := cfg.SolveConfig()
	assert.Equal(t, 20.0, solve.FloorPenalty)
	assert.True(t, solve.ReturnToStart)
	assert.Equal(t, 500, solve.MaxIterations)
	assert.Zero(t, solve.TimeBudget)

	assert.Equal(t, 0.02, cfg.MapSolveConfig().FloorPenalty)
	assert.Equal(t, 1200, cfg.Extract.ResizeWidth)
}

func TestLogLevelDefaults(t *testing.T) {
	tests := []struct {
		env, level, want string
	}{
		{"development", "", "debug"},
		{"production", "", "info"},
		{"development", "warn", "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
			t.Setenv("STORE_BACKEND", "memory")
			t.Setenv("ENV", tt.env)
			t.Setenv("LOG_LEVEL", tt.level)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Logging.Level)
		})
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"STORE_BACKEND=memory\nSOLVER_MAX_ITERATIONS=50\nSOLVER_TIME_BUDGET=250ms\nHTTP_PORT=9090\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	// godotenv never overrides variables that are already set.
	t.Setenv("HTTP_PORT", "7070")

	// godotenv sets these for the whole process, clear them afterwards.
	t.Cleanup(func() {
		os.Unsetenv("STORE_BACKEND")
		os.Unsetenv("SOLVER_MAX_ITERATIONS")
		os.Unsetenv("SOLVER_TIME_BUDGET")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 7070, cfg.HTTP.Port)
	assert.Equal(t, 50, cfg.SolveConfig().MaxIterations)
	assert.Equal(t, 250*time.Millisecond, cfg.SolveConfig().TimeBudget)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown backend", "STORE_BACKEND", "mongo"},
		{"negative penalty", "SOLVER_FLOOR_PENALTY", "-1"},
		{"zero iterations", "SOLVER_MAX_ITERATIONS", "0"},
		{"negative map penalty", "SOLVER_MAP_FLOOR_PENALTY", "-0.5"},
		{"bad duration", "SOLVER_TIME_BUDGET", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
			t.Setenv("STORE_BACKEND", "memory")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("UNITROUTE_TEST_KEY", "set")
	assert.Equal(t, "set", GetEnv("UNITROUTE_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("UNITROUTE_TEST_MISSING", "default"))
}
