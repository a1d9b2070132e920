package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverRedis    = "redis"
	DriverValkey   = "valkey"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds the ragdex service configuration.
type Config struct {
	HTTP       HTTPConfig                `yaml:"http"`
	Database   DatabaseConfig            `yaml:"database"`
	Storage    StorageConfig             `yaml:"storage"`
	Index      IndexConfig               `yaml:"index"`
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Embedding  EmbeddingConfig           `yaml:"embedding"`
	Generation GenerationConfig          `yaml:"generation"`
	Pipeline   PipelineConfig            `yaml:"pipeline"`
	Retry      RetryConfig               `yaml:"retry"`
	Language   LanguageConfig            `yaml:"language"`
	Ingest     IngestConfig              `yaml:"ingest"`
	Logging    LoggingConfig             `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File       string `yaml:"file"`  // rotated JSON log, empty disables
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port              int `yaml:"port"`
	ReadTimeoutSec    int `yaml:"read_timeout_sec"`
	WriteTimeoutSec   int `yaml:"write_timeout_sec"`
	ShutdownSec       int `yaml:"shutdown_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`
	HealthTimeoutSec  int `yaml:"health_timeout_sec"` // per dependency check

	// HealthCheckProviders adds the embedding and generation endpoints to
	// /health. Off by default: not every compatible API serves /models.
	HealthCheckProviders bool `yaml:"health_check_providers"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey, postgres, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	DSN              string   `yaml:"dsn"` // postgres only
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix  string `yaml:"key_prefix"`
	Collection string `yaml:"collection"`
}

// IndexConfig holds HNSW index settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// ProviderConfig holds an OpenAI-compatible API endpoint.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig selects the embedding model and how queries and documents
// are told apart: a provider-side input_type, a text prefix, or both.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInputType   string `yaml:"document_input_type"`
	QueryInputType      string `yaml:"query_input_type"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"`
	CacheTTLHours       int    `yaml:"cache_ttl_hours"` // 0 keeps entries forever
}

// GenerationConfig selects the chat model used for answers.
type GenerationConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	Seed       int    `yaml:"seed"`
	EmojiCount int    `yaml:"emoji_count"`
}

// PipelineConfig holds retrieval depth and per-stage timeouts.
type PipelineConfig struct {
	TopK               int `yaml:"top_k"`
	EmbedTimeoutSec    int `yaml:"embed_timeout_sec"`
	SearchTimeoutSec   int `yaml:"search_timeout_sec"`
	GenerateTimeoutSec int `yaml:"generate_timeout_sec"`
}

// RetryConfig bounds retries of transient provider errors.
type RetryConfig struct {
	MaxAttempts       int `yaml:"max_attempts"` // 1 disables retries
	InitialIntervalMs int `yaml:"initial_interval_ms"`
	MaxIntervalMs     int `yaml:"max_interval_ms"`
}

// LanguageConfig holds the language detection fallback policy.
// Languages restricts detection to ISO 639-1 codes; empty means all.
type LanguageConfig struct {
	Default       string   `yaml:"default"`
	MinConfidence float64  `yaml:"min_confidence"`
	Languages     []string `yaml:"languages"`
}

// IngestConfig points at the single document indexed by the service.
type IngestConfig struct {
	Path      string `yaml:"path"`
	OnStartup bool   `yaml:"on_startup"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first so that
// ${VAR} references can be satisfied from it.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	return LoadFile(configPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestTimeoutSec <= 0 {
		c.HTTP.RequestTimeoutSec = 55
	}
	if c.HTTP.HealthTimeoutSec <= 0 {
		c.HTTP.HealthTimeoutSec = 3
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "ragdex:"
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = "documents"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "embed-multilingual-v3.0"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1024
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "command-r-plus-08-2024"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 256
	}
	if c.Generation.EmojiCount <= 0 {
		c.Generation.EmojiCount = 3
	}
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = 1
	}
	if c.Pipeline.EmbedTimeoutSec <= 0 {
		c.Pipeline.EmbedTimeoutSec = 10
	}
	if c.Pipeline.SearchTimeoutSec <= 0 {
		c.Pipeline.SearchTimeoutSec = 5
	}
	if c.Pipeline.GenerateTimeoutSec <= 0 {
		c.Pipeline.GenerateTimeoutSec = 30
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialIntervalMs <= 0 {
		c.Retry.InitialIntervalMs = 200
	}
	if c.Retry.MaxIntervalMs <= 0 {
		c.Retry.MaxIntervalMs = 2000
	}
	if c.Language.Default == "" {
		c.Language.Default = "en"
	}
	if c.Language.MinConfidence <= 0 {
		c.Language.MinConfidence = 0.5
	}
	if c.Ingest.Path == "" {
		c.Ingest.Path = "./data/documento.docx"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("database.driver must be one of redis, valkey, postgres, memory, got %q", c.Database.Driver)
	}

	if _, ok := c.Providers[c.Embedding.Provider]; !ok {
		return fmt.Errorf("embedding.provider %q is not declared in providers", c.Embedding.Provider)
	}
	if _, ok := c.Providers[c.Generation.Provider]; !ok {
		return fmt.Errorf("generation.provider %q is not declared in providers", c.Generation.Provider)
	}

	if c.Embedding.CacheTTLHours < 0 {
		return fmt.Errorf("embedding.cache_ttl_hours must not be negative, got %d", c.Embedding.CacheTTLHours)
	}
	if c.Language.MinConfidence > 1 {
		return fmt.Errorf("language.min_confidence must be within (0, 1], got %g", c.Language.MinConfidence)
	}
	if len(c.Language.Languages) == 1 {
		return fmt.Errorf("language.languages needs at least 2 entries or none, got %v", c.Language.Languages)
	}
	return nil
}

// EmbeddingProvider returns the endpoint used for embeddings.
func (c *Config) EmbeddingProvider() ProviderConfig {
	return c.Providers[c.Embedding.Provider]
}

// GenerationProvider returns the endpoint used for answer generation.
func (c *Config) GenerationProvider() ProviderConfig {
	return c.Providers[c.Generation.Provider]
}

// configPath picks the YAML file for env. RAGDEX_CONFIG wins outright;
// otherwise config/<env>.yaml is looked up under the working directory and
// then under the module root, so tests run from any package find it.
func configPath(env string) string {
	if p := os.Getenv("RAGDEX_CONFIG"); p != "" {
		return p
	}
	name := filepath.Join("config", env+".yaml")

	_, self, _, _ := runtime.Caller(0)
	root := filepath.Join(filepath.Dir(self), "..", "..")
	for _, candidate := range []string{name, filepath.Join(root, name)} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnvVars substitutes ${VAR} and ${VAR:-default}. Unset variables
// without a default become empty strings.
func expandEnvVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		if v := os.Getenv(string(m[1])); v != "" {
			return []byte(v)
		}
		return m[2]
	})
}
