// Package config provides application configuration with multi-source priority.
//
// Sources, highest priority first:
//  1. Environment variables (ASKPATH_* and DATABASE_URL)
//  2. Config file (./config.yaml or ~/.askpath/config.yaml)
//  3. Defaults
//
// Sensitive values (the PostgreSQL password) are never logged. Validation is
// fail-fast: Load returns an error before any component is wired with a bad
// value. Errors use package sentinels so callers can match with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the generation token budget is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model name is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unsupported sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidLLMTimeout indicates the LLM timeout is out of range.
	ErrInvalidLLMTimeout = errors.New("invalid llm timeout")
)

const (
	// DefaultEmbedderModel is the default Gemini embedder.
	// gemini-embedding-001 supports truncation to 768 dimensions via
	// OutputDimensionality; the document_chunks schema uses vector(768).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultLLMTimeout bounds a single answer-generation call. The pipeline
	// degrades to a chunk-derived answer when this elapses.
	DefaultLLMTimeout = 120 * time.Second

	// DefaultRetrievalTopK is the number of chunks fetched per RAG query.
	DefaultRetrievalTopK = 5
)

// Config stores application configuration.
type Config struct {
	// LLM provider and model configuration
	Provider    string  `mapstructure:"provider"`
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	// LLMTimeoutSeconds bounds each generate call.
	LLMTimeoutSeconds int `mapstructure:"llm_timeout_seconds"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model"`
	RetrievalTopK int    `mapstructure:"retrieval_top_k"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// HTTP server configuration
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy"`
	RateRPS     float64  `mapstructure:"rate_rps"`
	RateBurst   int      `mapstructure:"rate_burst"`

	// Logging
	LogJSON  bool   `mapstructure:"log_json"`
	LogLevel string `mapstructure:"log_level"`

	// Trace export (see internal/observability)
	TraceAgentHost   string `mapstructure:"trace_agent_host"`
	TraceEnvironment string `mapstructure:"trace_environment"`
	TraceServiceName string `mapstructure:"trace_service_name"`
}

// LLMTimeout returns the generate-call deadline as a duration.
func (c *Config) LLMTimeout() time.Duration {
	if c.LLMTimeoutSeconds <= 0 {
		return DefaultLLMTimeout
	}
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// Load loads configuration with env > file > defaults priority.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".askpath")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(configDir)

	setDefaults()

	viper.SetEnvPrefix("ASKPATH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults",
			"search_paths", []string{".", configDir})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
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

func setDefaults() {
	viper.SetDefault("provider", "gemini")
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 512)
	viper.SetDefault("llm_timeout_seconds", 120)

	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("retrieval_top_k", DefaultRetrievalTopK)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "askpath")
	viper.SetDefault("postgres_password", "askpath_dev_password")
	viper.SetDefault("postgres_db_name", "askpath")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_rps", 20)
	viper.SetDefault("rate_burst", 60)

	viper.SetDefault("log_json", false)
	viper.SetDefault("log_level", "info")

	viper.SetDefault("trace_agent_host", "localhost:4318")
	viper.SetDefault("trace_environment", "dev")
	viper.SetDefault("trace_service_name", "askpath")
}

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Validate performs range and format checks on every field a component
// consumes. Errors wrap the package sentinels.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d not in [1, 32768]", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.LLMTimeoutSeconds < 1 || c.LLMTimeoutSeconds > 600 {
		return fmt.Errorf("%w: %d seconds not in [1, 600]", ErrInvalidLLMTimeout, c.LLMTimeoutSeconds)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: %d not in [1, 50]", ErrInvalidTopK, c.RetrievalTopK)
	}
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d not in [1, 65535]", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
