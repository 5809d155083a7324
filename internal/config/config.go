package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the atscore configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Upload    UploadConfig    `yaml:"upload"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds the optional embedding cache and budget counter store.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers  map[string]ProviderConfig `yaml:"providers"`
	Vectorizer VectorizerConfig          `yaml:"vectorizer"`
}

// Provider types.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool { return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 }

// ProviderConfig holds embedding provider settings.
type ProviderConfig struct {
	Type       string       `yaml:"type"` // openai (default), gemini
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	TimeoutSec int          `yaml:"timeout_sec"`
	Budget     BudgetConfig `yaml:"budget"`
}

// VectorizerConfig selects the model used for scoring.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TaskType            string `yaml:"task_type"` // gemini only
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	WarmUp              bool   `yaml:"warm_up"`
}

// ScoringConfig tunes truncation and tier thresholds.
type ScoringConfig struct {
	MaxChars         int     `yaml:"max_chars"`
	StrongThreshold  float64 `yaml:"strong_threshold"`
	AverageThreshold float64 `yaml:"average_threshold"`
}

// UploadConfig limits uploaded documents.
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// RateLimitConfig holds the global request rate limit. rps 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BreakerConfig holds circuit breaker settings for the embedding provider.
type BreakerConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MinRequests      uint32  `yaml:"min_requests"`
	FailureRatio     float64 `yaml:"failure_ratio"`
	OpenTimeoutSec   int     `yaml:"open_timeout_sec"`
	HalfOpenMaxCalls uint32  `yaml:"half_open_max_calls"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory is loaded first when present.
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment placeholders in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "redis"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 30 * 24 * 3600
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}

	for name, p := range c.Embedding.Providers {
		if p.Type == "" {
			p.Type = ProviderOpenAI
		}
		if p.TimeoutSec <= 0 {
			p.TimeoutSec = 30
		}
		c.Embedding.Providers[name] = p
	}
	if c.Embedding.Vectorizer.Provider == "" && len(c.Embedding.Providers) == 1 {
		for name := range c.Embedding.Providers {
			c.Embedding.Vectorizer.Provider = name
		}
	}

	if c.Scoring.MaxChars <= 0 {
		c.Scoring.MaxChars = 2000
	}
	if c.Scoring.StrongThreshold == 0 && c.Scoring.AverageThreshold == 0 {
		c.Scoring.StrongThreshold = 75
		c.Scoring.AverageThreshold = 50
	}

	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	if len(c.Auth.APIKeys) > 0 && !hasNonBlank(c.Auth.APIKeys) {
		return errors.New("auth.api_keys lists only empty keys; remove the section to disable auth")
	}

	if c.Cache.Enabled {
		if len(c.Cache.Addrs) == 0 {
			return errors.New("cache.addrs is required when cache.enabled is true")
		}
		switch c.Cache.Driver {
		case "redis", "valkey":
		default:
			return fmt.Errorf("cache.driver must be \"redis\" or \"valkey\", got %q", c.Cache.Driver)
		}
	}

	for name, p := range c.Embedding.Providers {
		switch p.Type {
		case "", ProviderOpenAI, ProviderGemini:
		default:
			return fmt.Errorf(
				"embedding.providers.%s.type must be \"openai\" or \"gemini\", got %q",
				name, p.Type,
			)
		}
		switch p.Budget.Action {
		case "", "warn", "reject":
		default:
			return fmt.Errorf(
				"embedding.providers.%s.budget.action must be \"warn\" or \"reject\", got %q",
				name, p.Budget.Action,
			)
		}
	}

	vec := c.Embedding.Vectorizer
	if vec.Provider == "" {
		return errors.New("embedding.vectorizer.provider is required")
	}
	if _, ok := c.Embedding.Providers[vec.Provider]; !ok {
		return fmt.Errorf("embedding.vectorizer.provider %q is not defined in embedding.providers", vec.Provider)
	}
	if vec.Dimensions < 0 {
		return fmt.Errorf("embedding.vectorizer.dimensions must not be negative, got %d", vec.Dimensions)
	}

	s := c.Scoring
	if s.AverageThreshold < 0 || s.StrongThreshold > 100 || s.AverageThreshold >= s.StrongThreshold {
		return fmt.Errorf(
			"scoring thresholds must satisfy 0 <= average_threshold < strong_threshold <= 100, got %v/%v",
			s.AverageThreshold, s.StrongThreshold,
		)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit.rps and rate_limit.burst must not be negative")
	}
	if c.Breaker.FailureRatio < 0 || c.Breaker.FailureRatio > 1 {
		return fmt.Errorf("breaker.failure_ratio must be within [0, 1], got %v", c.Breaker.FailureRatio)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// relative to the source file, for tests and `go run` from a subdirectory
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

func hasNonBlank(ss []string) bool {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
