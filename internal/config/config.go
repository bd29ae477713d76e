package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/copyleftdev/unitroute/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"4000"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
		MaxUploadBytes  int64         `env:"HTTP_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	}
	Logging struct {
		// debug in development, info elsewhere
		Level  string `env:"LOG_LEVEL"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Storage struct {
		// memory, sqlite, postgres or redis
		Backend       string `env:"STORE_BACKEND" envDefault:"sqlite"`
		DSN           string `env:"STORE_DSN"`
		DataDir       string `env:"DATA_DIR" envDefault:"data"`
		MaxConns      int    `env:"STORE_MAX_CONNS" envDefault:"10"`
		RedisAddr     string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`
		RedisPassword string `env:"REDIS_PASSWORD"`
		RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
		RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"unitroute:"`
	}
	Solver struct {
		FloorPenalty    float64       `env:"SOLVER_FLOOR_PENALTY" envDefault:"20"`
		MapFloorPenalty float64       `env:"SOLVER_MAP_FLOOR_PENALTY" envDefault:"0.02"`
		ReturnToStart   bool          `env:"SOLVER_RETURN_TO_START" envDefault:"true"`
		MaxIterations   int           `env:"SOLVER_MAX_ITERATIONS" envDefault:"500"`
		TimeBudget      time.Duration `env:"SOLVER_TIME_BUDGET" envDefault:"0s"`
		MaxPoints       int           `env:"SOLVER_MAX_POINTS" envDefault:"2000"`
	}
	Extract struct {
		Enabled       bool          `env:"EXTRACT_ENABLED" envDefault:"true"`
		TesseractPath string        `env:"TESSERACT_PATH" envDefault:"tesseract"`
		Language      string        `env:"TESSERACT_LANG" envDefault:"eng"`
		ResizeWidth   int           `env:"EXTRACT_RESIZE_WIDTH" envDefault:"1200"`
		Timeout       time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"30s"`
	}
}

// Load reads the optional .env file named by ENV_FILE (default ".env") and
// then parses the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load(GetEnv("ENV_FILE", ".env"))

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
		if cfg.Environment == "development" {
			cfg.Logging.Level = "debug"
		}
	}

	// Set default database DSN based on backend
	if cfg.Storage.DSN == "" {
		switch cfg.Storage.Backend {
		case "sqlite":
			if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
				return nil, err
			}
			cfg.Storage.DSN = cfg.Storage.DataDir + "/unitroute.db"
		case "postgres":
			cfg.Storage.DSN = "host=localhost port=5432 user=postgres password=postgres dbname=unitroute sslmode=disable"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Storage.Backend)
	}
	if err := c.SolveConfig().Validate(); err != nil {
		return fmt.Errorf("solver settings: %w", err)
	}
	if c.Solver.MapFloorPenalty < 0 {
		return fmt.Errorf("SOLVER_MAP_FLOOR_PENALTY must not be negative, got %v", c.Solver.MapFloorPenalty)
	}
	if c.Extract.ResizeWidth <= 0 {
		return fmt.Errorf("EXTRACT_RESIZE_WIDTH must be positive, got %d", c.Extract.ResizeWidth)
	}
	return nil
}

// SolveConfig returns the engine settings for raw-coordinate solves.
func (c *Config) SolveConfig() optimization.SolveConfig {
	return optimization.SolveConfig{
		FloorPenalty:  c.Solver.FloorPenalty,
		ReturnToStart: c.Solver.ReturnToStart,
		MaxIterations: c.Solver.MaxIterations,
		TimeBudget:    c.Solver.TimeBudget,
	}
}

// MapSolveConfig returns the engine settings for maps whose unit coordinates
// are normalized to the image size.
func (c *Config) MapSolveConfig() optimization.SolveConfig {
	cfg := c.SolveConfig()
	cfg.FloorPenalty = c.Solver.MapFloorPenalty
	return cfg
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
