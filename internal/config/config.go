package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Model backends understood by the inference package.
const (
	BackendNone     = "none"
	BackendGemini   = "gemini"
	BackendOpenAI   = "openai"
	BackendEndpoint = "endpoint"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Jobs      JobsConfig
	Storage   StorageConfig
	Warehouse WarehouseConfig
	Layout    string
	LogLevel  string
}

type ServerConfig struct {
	Port           string
	MaxUploadBytes int64
	// RateLimitRPS is the sustained request rate allowed across all clients.
	// Zero disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// ModelConfig selects and configures the token classifier.
type ModelConfig struct {
	Backend          string
	GeminiModel      string
	OpenAIAPIKey     string
	OpenAIModel      string
	EndpointURL      string
	HuggingFaceToken string
}

type JobsConfig struct {
	Workers       int
	QueueSize     int
	Retention     time.Duration
	SweepSchedule string
}

// StorageConfig enables archival of uploaded statements when Bucket is set.
type StorageConfig struct {
	Bucket string
}

// WarehouseConfig enables the BigQuery sink when Project is set.
type WarehouseConfig struct {
	Project string
	Dataset string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; variables already set in
// the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 32<<20),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 30),
		},
		Model: ModelConfig{
			Backend:          strings.ToLower(getEnv("MODEL_BACKEND", BackendNone)),
			GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EndpointURL:      getEnv("INFERENCE_ENDPOINT_URL", ""),
			HuggingFaceToken: getEnv("HUGGINGFACE_TOKEN", ""),
		},
		Jobs: JobsConfig{
			Workers:       getEnvAsInt("JOB_WORKERS", 2),
			QueueSize:     getEnvAsInt("JOB_QUEUE_SIZE", 100),
			Retention:     getEnvAsDuration("JOB_RETENTION", 24*time.Hour),
			SweepSchedule: getEnv("JOB_SWEEP_SCHEDULE", "@every 10m"),
		},
		Storage: StorageConfig{
			Bucket: getEnv("GCS_BUCKET", ""),
		},
		Warehouse: WarehouseConfig{
			Project: getEnv("BIGQUERY_PROJECT", ""),
			Dataset: getEnv("BIGQUERY_DATASET", "finance"),
		},
		Layout:   getEnv("STATEMENT_LAYOUT", "usd-statement"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Model.Backend {
	case BackendNone, BackendGemini:
	case BackendOpenAI:
		if c.Model.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai backend")
		}
	case BackendEndpoint:
		if c.Model.EndpointURL == "" {
			return errors.New("INFERENCE_ENDPOINT_URL is required for the endpoint backend")
		}
	default:
		return fmt.Errorf("unknown MODEL_BACKEND %q", c.Model.Backend)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Jobs.Workers <= 0 {
		return errors.New("JOB_WORKERS must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return errors.New("JOB_QUEUE_SIZE must be positive")
	}
	if c.Jobs.Retention <= 0 {
		return errors.New("JOB_RETENTION must be positive")
	}
	if c.Server.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
