package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "MODEL_BACKEND", "MAX_UPLOAD_BYTES", "JOB_WORKERS", "GCS_BUCKET", "BIGQUERY_PROJECT", "STATEMENT_LAYOUT", "JOB_RETENTION", "JOB_SWEEP_SCHEDULE", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, BackendNone, cfg.Model.Backend)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.GeminiModel)
	assert.Equal(t, 2, cfg.Jobs.Workers)
	assert.Equal(t, "usd-statement", cfg.Layout)
	assert.Equal(t, "finance", cfg.Warehouse.Dataset)
	assert.Empty(t, cfg.Storage.Bucket)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.Retention)
	assert.Equal(t, "@every 10m", cfg.Jobs.SweepSchedule)
	assert.Equal(t, 10.0, cfg.Server.RateLimitRPS)
	assert.Equal(t, 30, cfg.Server.RateLimitBurst)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_BACKEND", "Endpoint")
	t.Setenv("INFERENCE_ENDPOINT_URL", "https://example.test/predict")
	t.Setenv("HUGGINGFACE_TOKEN", "hf_secret")
	t.Setenv("JOB_WORKERS", "4")
	t.Setenv("MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("JOB_RETENTION", "90m")
	t.Setenv("RATE_LIMIT_RPS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, BackendEndpoint, cfg.Model.Backend)
	assert.Equal(t, "hf_secret", cfg.Model.HuggingFaceToken)
	assert.Equal(t, 4, cfg.Jobs.Workers)
	assert.Equal(t, int64(32<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, 90*time.Minute, cfg.Jobs.Retention)
	assert.Zero(t, cfg.Server.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", MaxUploadBytes: 1024},
			Model:  ModelConfig{Backend: BackendNone},
			Jobs:   JobsConfig{Workers: 1, QueueSize: 1, Retention: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "none backend", mutate: func(c *Config) {}, wantErr: false},
		{name: "gemini backend", mutate: func(c *Config) { c.Model.Backend = BackendGemini }, wantErr: false},
		{name: "openai without key", mutate: func(c *Config) { c.Model.Backend = BackendOpenAI }, wantErr: true},
		{name: "openai with key", mutate: func(c *Config) {
			c.Model.Backend = BackendOpenAI
			c.Model.OpenAIAPIKey = "sk-test"
		}, wantErr: false},
		{name: "endpoint without url", mutate: func(c *Config) { c.Model.Backend = BackendEndpoint }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Model.Backend = "torch" }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.Server.MaxUploadBytes = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Jobs.Workers = 0 }, wantErr: true},
		{name: "zero retention", mutate: func(c *Config) { c.Jobs.Retention = 0 }, wantErr: true},
		{name: "negative rate", mutate: func(c *Config) { c.Server.RateLimitRPS = -1 }, wantErr: true},
		{name: "rate without burst", mutate: func(c *Config) { c.Server.RateLimitRPS = 5 }, wantErr: true},
		{name: "rate with burst", mutate: func(c *Config) {
			c.Server.RateLimitRPS = 5
			c.Server.RateLimitBurst = 10
		}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
