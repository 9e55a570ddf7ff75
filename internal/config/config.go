package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the pagegen configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Database   DatabaseConfig   `yaml:"database"`
	Render     RenderConfig     `yaml:"render"`
	Generation GenerationConfig `yaml:"generation"`
	Output     OutputConfig     `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. No keys means the API is open.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"` // covers a whole run
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadMB     int64 `yaml:"max_upload_mb"`
}

// LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOffline   = "offline"
)

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider        string `yaml:"provider"` // openai (default), anthropic, gemini, offline
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	MaxTokens       int    `yaml:"max_tokens"` // anthropic only
	RateLimitMS     int    `yaml:"rate_limit_ms"`
	OfflineSections int    `yaml:"offline_sections"`
}

// EmbeddingConfig configures the embedding provider used for PDF retrieval.
// An empty provider disables retrieval.
type EmbeddingConfig struct {
	Provider            string               `yaml:"provider"` // "" or openai
	APIKey              string               `yaml:"api_key"`
	BaseURL             string               `yaml:"base_url"`
	Model               string               `yaml:"model"`
	Dimensions          int                  `yaml:"dimensions"`
	DocumentInstruction string               `yaml:"document_instruction"`
	QueryInstruction    string               `yaml:"query_instruction"`
	MaxBatchSize        int                  `yaml:"max_batch_size"`
	Cache               EmbeddingCacheConfig `yaml:"cache"`
}

// Enabled reports whether retrieval has an embedding provider.
func (e EmbeddingConfig) Enabled() bool { return e.Provider != "" }

// EmbeddingCacheConfig keeps embeddings in Redis across runs. Off by default.
type EmbeddingCacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// Retrieval backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RetrievalConfig configures chunking and the per-run vector index.
type RetrievalConfig struct {
	Backend         string `yaml:"backend"` // memory (default), redis
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
	TopK            int    `yaml:"top_k"`
	Algorithm       string `yaml:"algorithm"` // redis only: flat (default), hnsw
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	KeyPrefix       string `yaml:"key_prefix"`
}

// DatabaseConfig holds Redis/Valkey connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RenderConfig configures HTML and metadata output.
type RenderConfig struct {
	Mode                 string   `yaml:"mode"` // template (default), legacy
	HTMLTemplate         string   `yaml:"html_template"`
	Skeleton             string   `yaml:"skeleton"`
	ContentMarker        string   `yaml:"content_marker"`
	BaseURL              string   `yaml:"base_url"`
	Locales              []string `yaml:"locales"`
	TitleSuffix          string   `yaml:"title_suffix"`
	MetadataRequiresHTML bool     `yaml:"metadata_requires_html"`
}

// GenerationConfig configures article generation.
type GenerationConfig struct {
	Model            string       `yaml:"model"`
	Temperature      *float32     `yaml:"temperature"`
	Brand            string       `yaml:"brand"`
	BrandDescription string       `yaml:"brand_description"`
	PromptTemplate   string       `yaml:"prompt_template"` // file path
	Language         string       `yaml:"language"`
	WordCount        int          `yaml:"word_count"`
	Concurrency      int          `yaml:"concurrency"`
	Budget           BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds the per-run token budget.
type BudgetConfig struct {
	MaxTokens int64  `yaml:"max_tokens"` // 0 = unlimited
	Action    string `yaml:"action"`     // "reject" | "warn" (default)
}

// OutputConfig configures the archive.
type OutputConfig struct {
	OnSlugCollision string `yaml:"on_slug_collision"` // suffix (default), error
	ArchiveName     string `yaml:"archive_name"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path. A .env file in the working directory is loaded
// first; variables already set in the environment win.
func LoadFile(configPath string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 60
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 1800
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 30
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 64
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.RateLimitMS <= 0 {
		c.LLM.RateLimitMS = 100
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Retrieval.Backend == "" {
		c.Retrieval.Backend = BackendMemory
	}
	if c.Retrieval.ChunkSize <= 0 {
		c.Retrieval.ChunkSize = 1000
	}
	if c.Retrieval.ChunkOverlap <= 0 {
		c.Retrieval.ChunkOverlap = 200
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.Algorithm == "" {
		c.Retrieval.Algorithm = "flat"
	}
	if c.Retrieval.KeyPrefix == "" {
		c.Retrieval.KeyPrefix = "pagegen:"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Render.Mode == "" {
		c.Render.Mode = "template"
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o"
	}
	if c.Generation.Temperature == nil {
		t := float32(0.7)
		c.Generation.Temperature = &t
	}
	if c.Generation.Language == "" {
		c.Generation.Language = "English"
	}
	if c.Generation.WordCount <= 0 {
		c.Generation.WordCount = 800
	}
	if c.Generation.Concurrency <= 0 {
		c.Generation.Concurrency = 1
	}
	if c.Output.OnSlugCollision == "" {
		c.Output.OnSlugCollision = "suffix"
	}
	if c.Output.ArchiveName == "" {
		c.Output.ArchiveName = "generated_files.zip"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider)
		}
	case ProviderOffline:
	default:
		return fmt.Errorf("llm.provider must be one of openai, anthropic, gemini, offline, got %q", c.LLM.Provider)
	}
	switch c.Embedding.Provider {
	case "", ProviderOpenAI:
	default:
		return fmt.Errorf("embedding.provider must be empty or \"openai\", got %q", c.Embedding.Provider)
	}
	switch c.Retrieval.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("retrieval.backend must be \"memory\" or \"redis\", got %q", c.Retrieval.Backend)
	}
	switch strings.ToLower(c.Retrieval.Algorithm) {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("retrieval.algorithm must be \"flat\" or \"hnsw\", got %q", c.Retrieval.Algorithm)
	}
	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.NeedsDatabase() && len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required for the redis backend or the embedding cache")
	}
	switch c.Render.Mode {
	case "template":
	case "legacy":
		if c.Render.Skeleton == "" {
			return errors.New("render.skeleton is required in legacy mode")
		}
	default:
		return fmt.Errorf("render.mode must be \"template\" or \"legacy\", got %q", c.Render.Mode)
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be between 0 and 2, got %g", *t)
	}
	if c.Generation.WordCount < 100 || c.Generation.WordCount > 2000 {
		return fmt.Errorf("generation.word_count must be between 100 and 2000, got %d", c.Generation.WordCount)
	}
	switch c.Generation.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"generation.budget.action must be \"warn\" or \"reject\", got %q",
			c.Generation.Budget.Action,
		)
	}
	switch c.Output.OnSlugCollision {
	case "suffix", "error":
	default:
		return fmt.Errorf("output.on_slug_collision must be \"suffix\" or \"error\", got %q", c.Output.OnSlugCollision)
	}
	return nil
}

// NeedsDatabase reports whether any component talks to Redis.
func (c *Config) NeedsDatabase() bool {
	if !c.Embedding.Enabled() {
		return false
	}
	return c.Retrieval.Backend == BackendRedis || c.Embedding.Cache.Enabled
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func loadDotEnv(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
