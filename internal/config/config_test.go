package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payrun")
	t.Setenv("PROCESSOR_API_KEY", "sk_test")

	cfg, err := New()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "https://dev.methodfi.com", cfg.ProcessorBaseURL)
	assert.Equal(t, 128*1024*1024, cfg.MaxUploadBytes)
	assert.Equal(t, 4, cfg.NumPipelineWorkers)
	assert.Equal(t, 16, cfg.JobQueueSize)
}

func TestNewReadsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payrun")
	t.Setenv("PROCESSOR_API_KEY", "sk_test")
	t.Setenv("API_PORT", "9090")
	t.Setenv("PROCESSOR_BASE_URL", "http://localhost:4000")
	t.Setenv("NUM_PIPELINE_WORKERS", "8")

	cfg, err := New()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.APIPort)
	assert.Equal(t, "http://localhost:4000", cfg.ProcessorBaseURL)
	assert.Equal(t, 8, cfg.NumPipelineWorkers)
}

func TestNewRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROCESSOR_API_KEY", "sk_test")

	_, err := New()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payrun")
	t.Setenv("PROCESSOR_API_KEY", "")

	_, err := New()
	assert.ErrorContains(t, err, "PROCESSOR_API_KEY")
}

func TestNewRejectsNonIntegerValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/payrun")
	t.Setenv("PROCESSOR_API_KEY", "sk_test")
	t.Setenv("JOB_QUEUE_SIZE", "many")

	_, err := New()
	assert.ErrorContains(t, err, "JOB_QUEUE_SIZE")
}
