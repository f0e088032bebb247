package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr          string
	DBPath        string
	DataDir       string
	StoreBackend  string
	SnapshotKey   string
	RemoteKVURL   string
	RemoteKVToken string
	LogLevel      string

	DesiredRetention          float64
	MaxIntervalDays           int
	LearningStepsMin          []int
	RelearningStepsMin        []int
	GraduatingIntervalDays    int
	EasyIntervalDays          int
	QueueSize                 int
	GraduationStreak          int
	GraduationMinIntervalDays int
	ReactivationLapses        int
	ReactivationWindowDays    int
	ReactivationMaxSiblings   int
	FSRSWeights               []float64
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:          envOr("ADDR", ":8080"),
		DBPath:        envOr("DB_PATH", "file:bunkei.db"),
		DataDir:       envOr("DATA_DIR", "data/badger"),
		StoreBackend:  envOr("STORE_BACKEND", "badger"),
		SnapshotKey:   envOr("SNAPSHOT_KEY", "cards/v1"),
		RemoteKVURL:   envOr("REMOTE_KV_URL", ""),
		RemoteKVToken: envOr("REMOTE_KV_TOKEN", ""),
		LogLevel:      envOr("LOG_LEVEL", "INFO"),

		DesiredRetention:          envFloatOr("DESIRED_RETENTION", 0.9),
		MaxIntervalDays:           envIntOr("MAX_INTERVAL_DAYS", 365),
		LearningStepsMin:          envIntsOr("LEARNING_STEPS_MIN", []int{1, 10}),
		RelearningStepsMin:        envIntsOr("RELEARNING_STEPS_MIN", []int{1, 10}),
		GraduatingIntervalDays:    envIntOr("GRADUATING_INTERVAL_DAYS", 1),
		EasyIntervalDays:          envIntOr("EASY_INTERVAL_DAYS", 4),
		QueueSize:                 envIntOr("QUEUE_SIZE", 20),
		GraduationStreak:          envIntOr("GRADUATION_STREAK", 5),
		GraduationMinIntervalDays: envIntOr("GRADUATION_MIN_INTERVAL_DAYS", 16),
		ReactivationLapses:        envIntOr("REACTIVATION_LAPSES", 2),
		ReactivationWindowDays:    envIntOr("REACTIVATION_WINDOW_DAYS", 30),
		ReactivationMaxSiblings:   envIntOr("REACTIVATION_MAX_SIBLINGS", 3),
		FSRSWeights:               envFloatsOr("FSRS_WEIGHTS", nil),
	}
}

// Validate checks the configuration for values that would break startup.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.StoreBackend {
	case "badger", "sqlite", "remote", "memory":
	default:
		return fmt.Errorf("STORE_BACKEND must be one of badger, sqlite, remote, memory, got %q", c.StoreBackend)
	}
	if c.StoreBackend == "badger" && c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty when STORE_BACKEND is badger")
	}
	if c.StoreBackend == "remote" && c.RemoteKVURL == "" {
		return fmt.Errorf("REMOTE_KV_URL cannot be empty when STORE_BACKEND is remote")
	}
	if c.SnapshotKey == "" {
		return fmt.Errorf("SNAPSHOT_KEY cannot be empty")
	}
	if c.DesiredRetention <= 0 || c.DesiredRetention > 1 {
		return fmt.Errorf("DESIRED_RETENTION must be in (0, 1], got %v", c.DesiredRetention)
	}
	if c.MaxIntervalDays < 1 {
		return fmt.Errorf("MAX_INTERVAL_DAYS must be at least 1, got %d", c.MaxIntervalDays)
	}
	if err := validateSteps("LEARNING_STEPS_MIN", c.LearningStepsMin); err != nil {
		return err
	}
	if err := validateSteps("RELEARNING_STEPS_MIN", c.RelearningStepsMin); err != nil {
		return err
	}
	if c.GraduatingIntervalDays < 1 {
		return fmt.Errorf("GRADUATING_INTERVAL_DAYS must be at least 1, got %d", c.GraduatingIntervalDays)
	}
	if c.EasyIntervalDays < 1 {
		return fmt.Errorf("EASY_INTERVAL_DAYS must be at least 1, got %d", c.EasyIntervalDays)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("QUEUE_SIZE must be at least 1, got %d", c.QueueSize)
	}
	if c.GraduationStreak < 1 {
		return fmt.Errorf("GRADUATION_STREAK must be at least 1, got %d", c.GraduationStreak)
	}
	if c.GraduationMinIntervalDays < 1 {
		return fmt.Errorf("GRADUATION_MIN_INTERVAL_DAYS must be at least 1, got %d", c.GraduationMinIntervalDays)
	}
	if c.ReactivationLapses < 1 {
		return fmt.Errorf("REACTIVATION_LAPSES must be at least 1, got %d", c.ReactivationLapses)
	}
	if c.ReactivationWindowDays < 1 {
		return fmt.Errorf("REACTIVATION_WINDOW_DAYS must be at least 1, got %d", c.ReactivationWindowDays)
	}
	if c.ReactivationMaxSiblings < 1 {
		return fmt.Errorf("REACTIVATION_MAX_SIBLINGS must be at least 1, got %d", c.ReactivationMaxSiblings)
	}
	if n := len(c.FSRSWeights); n != 0 && n != 17 {
		return fmt.Errorf("FSRS_WEIGHTS must have exactly 17 values, got %d", n)
	}
	return nil
}

func validateSteps(key string, steps []int) error {
	if len(steps) == 0 {
		return fmt.Errorf("%s cannot be empty", key)
	}
	for _, s := range steps {
		if s < 1 {
			return fmt.Errorf("%s values must be at least 1 minute, got %d", key, s)
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}

// envIntsOr parses a comma-separated list of integers.
func envIntsOr(key string, def []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			log.Printf("invalid value for %s=%q, using default %v", key, v, def)
			return def
		}
		out = append(out, i)
	}
	return out
}

// envFloatsOr parses a comma-separated list of floats.
func envFloatsOr(key string, def []float64) []float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			log.Printf("invalid value for %s=%q, using default %v", key, v, def)
			return def
		}
		out = append(out, f)
	}
	return out
}
