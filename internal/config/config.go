// Package config provides application configuration with multi-source
// priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (BRIEFING_ prefix, DATABASE_URL override)
//  2. Config file (~/.briefing/config.yaml or ./config.yaml)
//  3. Default values
//
// Sensitive values (the PostgreSQL password) are never logged. Validation
// uses sentinel errors so callers can check failure classes with errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/koopa0/briefing/internal/chain"
)

var (
	// ErrInvalidProvider indicates the model provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTokenLimits indicates the token budget knobs are
	// inconsistent.
	ErrInvalidTokenLimits = errors.New("invalid token limits")

	// ErrInvalidRetrieval indicates a retrieval knob is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval settings")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidServerPort indicates the HTTP listen port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")
)

// Model provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
)

// Config stores application configuration.
type Config struct {
	// Model configuration
	Provider      string `mapstructure:"provider"`
	ModelName     string `mapstructure:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model"`
	OllamaHost    string `mapstructure:"ollama_host"`

	// Token budgets
	ContextWindowSize int `mapstructure:"context_window_size"`
	LLMMaxTokens      int `mapstructure:"llm_max_tokens"`
	MaxDocumentTokens int `mapstructure:"max_document_tokens"`

	// Retrieval
	RetrievalK          int     `mapstructure:"retrieval_k"`
	NumCandidates       int     `mapstructure:"num_candidates"`
	MatchBoost          float64 `mapstructure:"match_boost"`
	KNNBoost            float64 `mapstructure:"knn_boost"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// Elbow filter
	ElbowFilterEnabled bool    `mapstructure:"elbow_filter_enabled"`
	ElbowSensitivity   float64 `mapstructure:"elbow_sensitivity"`
	ScoreScalingFactor float64 `mapstructure:"score_scaling_factor"`

	// Fan-out
	MapMaxConcurrency int  `mapstructure:"map_max_concurrency"`
	BestEffortFanOut  bool `mapstructure:"best_effort_fan_out"`

	// Storage (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// HTTP server
	ServerHost  string   `mapstructure:"server_host"`
	ServerPort  int      `mapstructure:"server_port"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Tracing
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".briefing")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("BRIEFING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGoogleAI)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", "gemini-embedding-001")
	v.SetDefault("ollama_host", "http://localhost:11434")

	defaults := chain.DefaultSettings()
	v.SetDefault("context_window_size", defaults.ContextWindowSize)
	v.SetDefault("llm_max_tokens", defaults.LLMMaxTokens)
	v.SetDefault("max_document_tokens", defaults.MaxDocumentTokens)
	v.SetDefault("retrieval_k", defaults.RetrievalK)
	v.SetDefault("num_candidates", defaults.NumCandidates)
	v.SetDefault("match_boost", defaults.MatchBoost)
	v.SetDefault("knn_boost", defaults.KNNBoost)
	v.SetDefault("similarity_threshold", defaults.SimilarityThreshold)
	v.SetDefault("elbow_filter_enabled", defaults.ElbowFilterEnabled)
	v.SetDefault("elbow_sensitivity", defaults.ElbowSensitivity)
	v.SetDefault("score_scaling_factor", defaults.ScoreScalingFactor)
	v.SetDefault("map_max_concurrency", defaults.MapMaxConcurrency)
	v.SetDefault("best_effort_fan_out", defaults.BestEffortFanOut)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "briefing")
	v.SetDefault("postgres_password", "briefing_dev_password")
	v.SetDefault("postgres_db_name", "briefing")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("cors_origins", []string{})

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("tracing_enabled", false)
	v.SetDefault("otlp_endpoint", "localhost:4318")
}

// Settings maps the configured knobs onto per-request engine settings.
// Prompts come from the built-in defaults.
func (c *Config) Settings() chain.Settings {
	return chain.Settings{
		MaxDocumentTokens: c.MaxDocumentTokens,
		ContextWindowSize: c.ContextWindowSize,
		LLMMaxTokens:      c.LLMMaxTokens,

		RetrievalK:          c.RetrievalK,
		NumCandidates:       c.NumCandidates,
		MatchBoost:          c.MatchBoost,
		KNNBoost:            c.KNNBoost,
		SimilarityThreshold: c.SimilarityThreshold,

		ElbowFilterEnabled: c.ElbowFilterEnabled,
		ElbowSensitivity:   c.ElbowSensitivity,
		ScoreScalingFactor: c.ScoreScalingFactor,

		MapMaxConcurrency: c.MapMaxConcurrency,
		BestEffortFanOut:  c.BestEffortFanOut,

		ChatBackend: c.Backend(),
		Prompts:     chain.DefaultPrompts(),
	}
}

// Backend returns the configured model backend.
func (c *Config) Backend() chain.Backend {
	return chain.Backend{Name: c.ModelName, Provider: c.Provider}
}
