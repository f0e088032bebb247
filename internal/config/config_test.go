package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsuji/bunkei/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Addr:                      ":8080",
		DBPath:                    "test.db",
		DataDir:                   "data/badger",
		StoreBackend:              "badger",
		SnapshotKey:               "cards/v1",
		LogLevel:                  "INFO",
		DesiredRetention:          0.9,
		MaxIntervalDays:           365,
		LearningStepsMin:          []int{1, 10},
		RelearningStepsMin:        []int{1, 10},
		GraduatingIntervalDays:    1,
		EasyIntervalDays:          4,
		QueueSize:                 20,
		GraduationStreak:          5,
		GraduationMinIntervalDays: 16,
		ReactivationLapses:        2,
		ReactivationWindowDays:    30,
		ReactivationMaxSiblings:   3,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_EmptyDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.DBPath = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PATH cannot be empty")
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.StoreBackend = "redis"

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestValidate_RemoteRequiresURL(t *testing.T) {
	cfg := validConfig()
	cfg.StoreBackend = "remote"
	cfg.RemoteKVURL = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "REMOTE_KV_URL")
}

func TestValidate_BadgerRequiresDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DATA_DIR")
}

func TestValidate_RetentionOutOfRange(t *testing.T) {
	for _, retention := range []float64{0, -0.5, 1.2} {
		cfg := validConfig()
		cfg.DesiredRetention = retention

		err := cfg.Validate()
		assert.Error(t, err, "retention %v should be rejected", retention)
		assert.Contains(t, err.Error(), "DESIRED_RETENTION")
	}
}

func TestValidate_EmptySteps(t *testing.T) {
	cfg := validConfig()
	cfg.LearningStepsMin = nil

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LEARNING_STEPS_MIN cannot be empty")
}

func TestValidate_NonPositiveStep(t *testing.T) {
	cfg := validConfig()
	cfg.RelearningStepsMin = []int{0, 10}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "RELEARNING_STEPS_MIN")
}

func TestValidate_WrongWeightCount(t *testing.T) {
	cfg := validConfig()
	cfg.FSRSWeights = []float64{0.4, 0.6, 2.4}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "FSRS_WEIGHTS")
}

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "badger", cfg.StoreBackend)
	assert.Equal(t, "cards/v1", cfg.SnapshotKey)
	assert.Equal(t, 0.9, cfg.DesiredRetention)
	assert.Equal(t, 365, cfg.MaxIntervalDays)
	assert.Equal(t, []int{1, 10}, cfg.LearningStepsMin)
	assert.Equal(t, []int{1, 10}, cfg.RelearningStepsMin)
	assert.Equal(t, 1, cfg.GraduatingIntervalDays)
	assert.Equal(t, 4, cfg.EasyIntervalDays)
	assert.Equal(t, 20, cfg.QueueSize)
	assert.Equal(t, 5, cfg.GraduationStreak)
	assert.Equal(t, 16, cfg.GraduationMinIntervalDays)
	assert.Equal(t, 2, cfg.ReactivationLapses)
	assert.Equal(t, 30, cfg.ReactivationWindowDays)
	assert.Equal(t, 3, cfg.ReactivationMaxSiblings)
	assert.Empty(t, cfg.FSRSWeights)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("QUEUE_SIZE", "7")
	t.Setenv("LEARNING_STEPS_MIN", "2,15,30")
	t.Setenv("DESIRED_RETENTION", "0.85")
	t.Setenv("STORE_BACKEND", "memory")

	cfg := config.Load()

	assert.Equal(t, 7, cfg.QueueSize)
	assert.Equal(t, []int{2, 15, 30}, cfg.LearningStepsMin)
	assert.Equal(t, 0.85, cfg.DesiredRetention)
	assert.Equal(t, "memory", cfg.StoreBackend)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("QUEUE_SIZE", "not-a-number")
	t.Setenv("LEARNING_STEPS_MIN", "1,ten")

	cfg := config.Load()

	assert.Equal(t, 20, cfg.QueueSize)
	assert.Equal(t, []int{1, 10}, cfg.LearningStepsMin)
}
