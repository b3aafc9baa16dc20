package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the SessionLens server.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	SegmentStore SegmentStoreConfig
	AI           AIConfig
	Pipeline     PipelineConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// SegmentStoreConfig points at the embedding store that serves session
// segments.
type SegmentStoreConfig struct {
	BaseURL string
	APIKey  string
	OrgID   string
	Timeout time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	Ollama           OllamaConfig
	OpenAI           OpenAIConfig
	Anthropic        AnthropicConfig
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// PipelineConfig holds clustering-run hyperparameters.
type PipelineConfig struct {
	// MatchThreshold is the max cosine distance at which a cluster centroid
	// matches an existing issue.
	MatchThreshold float64
	// Epsilon is the DBSCAN neighborhood radius (cosine distance).
	Epsilon float64
	// MinClusterSize is the minimum cluster membership; smaller groups are noise.
	MinClusterSize int
	// Lookback bounds the fetch window for tenants without a watermark.
	Lookback time.Duration
	// LabelSampleSize is how many member contents go into a labeling prompt.
	LabelSampleSize int
	// FetchLimit caps one run's segment batch.
	FetchLimit int
	// ReduceDim enables random-projection reduction when embeddings are wider.
	ReduceDim int
	// ReduceSeed seeds the projection matrix.
	ReduceSeed int64
}

var validProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	inferenceTimeout := envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 60*time.Second)

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("SESSIONLENS_PORT", 8080),
			Env:  envString("SESSIONLENS_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		SegmentStore: SegmentStoreConfig{
			BaseURL: os.Getenv("SEGMENTSTORE_BASE_URL"),
			APIKey:  os.Getenv("SEGMENTSTORE_API_KEY"),
			OrgID:   envString("SEGMENTSTORE_ORG_ID", "default"),
			Timeout: envDuration("SEGMENTSTORE_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: inferenceTimeout,
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
				Timeout: inferenceTimeout,
			},
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				Timeout: inferenceTimeout,
			},
			Anthropic: AnthropicConfig{
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
				Timeout: inferenceTimeout,
			},
		},
		Pipeline: PipelineConfig{
			MatchThreshold:  envFloat("PIPELINE_MATCH_THRESHOLD", 0.15),
			Epsilon:         envFloat("PIPELINE_EPSILON", 0.3),
			MinClusterSize:  envInt("PIPELINE_MIN_CLUSTER_SIZE", 5),
			Lookback:        envDuration("PIPELINE_LOOKBACK", 24*time.Hour),
			LabelSampleSize: envInt("PIPELINE_LABEL_SAMPLE_SIZE", 10),
			FetchLimit:      envInt("PIPELINE_FETCH_LIMIT", 10000),
			ReduceDim:       envInt("PIPELINE_REDUCE_DIM", 0),
			ReduceSeed:      int64(envInt("PIPELINE_REDUCE_SEED", 1)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.SegmentStore.BaseURL == "" {
		return fmt.Errorf("SEGMENTSTORE_BASE_URL is required")
	}
	if !strings.HasPrefix(c.SegmentStore.BaseURL, "http://") && !strings.HasPrefix(c.SegmentStore.BaseURL, "https://") {
		return fmt.Errorf("SEGMENTSTORE_BASE_URL must start with http:// or https://, got %q", c.SegmentStore.BaseURL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of ollama, openai, anthropic; got %q", c.AI.Provider)
	}

	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}

	if c.Pipeline.MatchThreshold <= 0 || c.Pipeline.MatchThreshold >= 1 {
		return fmt.Errorf("PIPELINE_MATCH_THRESHOLD must be in (0, 1), got %v", c.Pipeline.MatchThreshold)
	}
	if c.Pipeline.Epsilon <= 0 {
		return fmt.Errorf("PIPELINE_EPSILON must be positive, got %v", c.Pipeline.Epsilon)
	}
	if c.Pipeline.MinClusterSize < 2 {
		return fmt.Errorf("PIPELINE_MIN_CLUSTER_SIZE must be at least 2, got %d", c.Pipeline.MinClusterSize)
	}
	if c.Pipeline.LabelSampleSize < 1 {
		return fmt.Errorf("PIPELINE_LABEL_SAMPLE_SIZE must be at least 1, got %d", c.Pipeline.LabelSampleSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
