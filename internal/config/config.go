package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	DatabaseURL        string
	APIPort            string
	ProcessorBaseURL   string
	ProcessorAPIKey    string
	MaxUploadBytes     int
	NumPipelineWorkers int
	JobQueueSize       int
}

func New() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	apiKey := os.Getenv("PROCESSOR_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("PROCESSOR_API_KEY environment variable is not set")
	}

	cfg := &Config{
		DatabaseURL:        databaseURL,
		APIPort:            "8080",
		ProcessorBaseURL:   "https://dev.methodfi.com",
		ProcessorAPIKey:    apiKey,
		MaxUploadBytes:     128 * 1024 * 1024,
		NumPipelineWorkers: 4,
		JobQueueSize:       16,
	}

	if port := os.Getenv("API_PORT"); port != "" {
		cfg.APIPort = port
	}

	if baseURL := os.Getenv("PROCESSOR_BASE_URL"); baseURL != "" {
		cfg.ProcessorBaseURL = baseURL
	}

	var err error
	cfg.MaxUploadBytes, err = getEnvAsInt("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	cfg.NumPipelineWorkers, err = getEnvAsInt("NUM_PIPELINE_WORKERS", cfg.NumPipelineWorkers)
	if err != nil {
		return nil, err
	}

	cfg.JobQueueSize, err = getEnvAsInt("JOB_QUEUE_SIZE", cfg.JobQueueSize)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}
