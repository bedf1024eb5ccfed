// Package config loads the per-environment YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/query"
)

// Config holds the hwfinder configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Online     OnlineConfig     `yaml:"online"`
	LocalIndex LocalIndexConfig `yaml:"local_index"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Diversify  DiversifyConfig  `yaml:"diversify"`
	Dialogue   DialogueConfig   `yaml:"dialogue"`
	Detail     DetailConfig     `yaml:"detail"`
	Batch      BatchConfig      `yaml:"batch"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json or console (default: determined by env)
}

// ReasonerConfig holds the LLM connection settings.
type ReasonerConfig struct {
	Provider   string `yaml:"provider"` // openai, azure
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	Model      string `yaml:"model"` // deployment name on azure
	User       string `yaml:"user"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// OnlineConfig holds the supplier catalog browser settings.
type OnlineConfig struct {
	Enabled          *bool           `yaml:"enabled"` // default true
	BaseURL          string          `yaml:"base_url"`
	SearchPath       string          `yaml:"search_path"`
	LoginPath        string          `yaml:"login_path"`
	Email            string          `yaml:"email"`
	Password         string          `yaml:"password"`
	Headless         bool            `yaml:"headless"`
	ControlURL       string          `yaml:"control_url"`
	TimeoutSec       int             `yaml:"timeout_sec"`
	SettleTimeoutSec int             `yaml:"settle_timeout_sec"`
	MaxResults       int             `yaml:"max_results"`
	Selectors        SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig overrides the catalog CSS selectors. Empty values keep the built-in ones.
type SelectorsConfig struct {
	Tile          string            `yaml:"tile"`
	Name          string            `yaml:"name"`
	Price         string            `yaml:"price"`
	Link          string            `yaml:"link"`
	Image         string            `yaml:"image"`
	Description   string            `yaml:"description"`
	SKU           string            `yaml:"sku"`
	Detail        map[string]string `yaml:"detail"`
	LoginEmail    string            `yaml:"login_email"`
	LoginPassword string            `yaml:"login_password"`
	LoginSubmit   string            `yaml:"login_submit"`
	LoggedIn      string            `yaml:"logged_in"`
}

// LocalIndexConfig holds the offline catalog index settings.
type LocalIndexConfig struct {
	Enabled          bool            `yaml:"enabled"`
	Driver           string          `yaml:"driver"` // redis
	Addrs            []string        `yaml:"addrs"`
	Username         string          `yaml:"username"`
	Password         string          `yaml:"password"`
	DB               int             `yaml:"db"`
	IndexName        string          `yaml:"index_name"`
	KeyPrefix        string          `yaml:"key_prefix"`
	HNSWM            int             `yaml:"hnsw_m"`
	HNSWEFConstruct  int             `yaml:"hnsw_ef_construction"`
	ReadinessTimeout int             `yaml:"readiness_timeout_sec"`
	TimeoutSec       int             `yaml:"timeout_sec"`
	Embedding        EmbeddingConfig `yaml:"embedding"`
}

// EmbeddingConfig holds embedding provider settings for the local index.
type EmbeddingConfig struct {
	Provider           string `yaml:"provider"` // openai, azure
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	APIVersion         string `yaml:"api_version"`
	Model              string `yaml:"model"`
	Dimensions         int    `yaml:"dimensions"`
	QueryInstruction   string `yaml:"query_instruction"`
	CacheTTLHours      int    `yaml:"cache_ttl_hours"`      // 0 = no expiry
	MemoryCacheEntries int    `yaml:"memory_cache_entries"` // in-process LRU in front of the store, 0 = off
}

// RetrievalConfig controls source selection.
type RetrievalConfig struct {
	Mode              string `yaml:"mode"` // hybrid, online, local
	MinOnlineResults  int    `yaml:"min_online_results"`
	OverfetchMultiple int    `yaml:"overfetch_multiple"`
	MaxCandidates     int    `yaml:"max_candidates"`
}

// DiversifyConfig controls duplicate detection.
type DiversifyConfig struct {
	DedupThreshold float64 `yaml:"dedup_threshold"`
}

// DialogueConfig controls the conversation flow.
type DialogueConfig struct {
	TargetShortlistSize int `yaml:"target_shortlist_size"`
	ReasonMaxTokens     int `yaml:"reason_max_tokens"`
	ReasonConcurrency   int `yaml:"reason_concurrency"`
	MaxClarifications   int `yaml:"max_clarifications"`
	HistoryTurns        int `yaml:"history_turns"`
}

// DetailConfig controls exact-name lookups.
type DetailConfig struct {
	CacheSize int `yaml:"cache_size"`
}

// BatchConfig controls batch mode.
type BatchConfig struct {
	Concurrency  int `yaml:"concurrency"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port               int      `yaml:"port"`
	ReadTimeoutSec     int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec    int      `yaml:"write_timeout_sec"`
	ShutdownSec        int      `yaml:"shutdown_timeout_sec"`
	APIKeys            []string `yaml:"api_keys"`
	ConversationTTLMin int      `yaml:"conversation_ttl_min"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w: %w", domain.ErrInvalidConfig, err)
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
	setInt := func(dst *int, v int) {
		if *dst <= 0 {
			*dst = v
		}
	}
	setStr := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}

	setStr(&c.Reasoner.Provider, "openai")
	setInt(&c.Reasoner.TimeoutSec, 60)

	if c.Online.Enabled == nil {
		enabled := true
		c.Online.Enabled = &enabled
	}
	setStr(&c.Online.BaseURL, "https://www.richelieu.com/ca/en/")
	setInt(&c.Online.TimeoutSec, 60)

	setStr(&c.LocalIndex.Driver, "redis")
	setStr(&c.LocalIndex.IndexName, "hwfinder:catalog")
	setStr(&c.LocalIndex.KeyPrefix, domain.KeyPrefix+"product:")
	setInt(&c.LocalIndex.HNSWM, 16)
	setInt(&c.LocalIndex.HNSWEFConstruct, 200)
	setInt(&c.LocalIndex.ReadinessTimeout, 10)
	setInt(&c.LocalIndex.TimeoutSec, 10)
	setStr(&c.LocalIndex.Embedding.Provider, "openai")

	setStr(&c.Retrieval.Mode, string(query.Hybrid))
	setInt(&c.Retrieval.OverfetchMultiple, 3)
	setInt(&c.Retrieval.MaxCandidates, 30)

	if c.Diversify.DedupThreshold <= 0 {
		c.Diversify.DedupThreshold = 0.8
	}

	setInt(&c.Dialogue.TargetShortlistSize, 5)
	setInt(&c.Dialogue.ReasonMaxTokens, 256)
	setInt(&c.Dialogue.ReasonConcurrency, 4)
	setInt(&c.Dialogue.MaxClarifications, 3)
	setInt(&c.Dialogue.HistoryTurns, 3)

	setInt(&c.Detail.CacheSize, 128)

	setInt(&c.Batch.Concurrency, 4)
	setInt(&c.Batch.MaxBatchSize, 100)

	setInt(&c.HTTP.Port, 8080)
	setInt(&c.HTTP.ReadTimeoutSec, 10)
	setInt(&c.HTTP.WriteTimeoutSec, 120)
	setInt(&c.HTTP.ShutdownSec, 10)
	setInt(&c.HTTP.ConversationTTLMin, 30)
}

// Validate checks the configuration for correctness. Every failure wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return invalid("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if err := validateProvider("reasoner", c.Reasoner.Provider, c.Reasoner.BaseURL, c.Reasoner.APIVersion); err != nil {
		return err
	}
	if c.Reasoner.Model == "" {
		return invalid("reasoner.model is required")
	}

	mode := query.Mode(c.Retrieval.Mode)
	if !mode.IsValid() {
		return invalid("retrieval.mode must be hybrid, online or local, got %q", c.Retrieval.Mode)
	}
	if mode == query.Online && !c.OnlineEnabled() {
		return invalid("retrieval.mode online requires online.enabled")
	}
	if mode == query.Local && !c.LocalIndex.Enabled {
		return invalid("retrieval.mode local requires local_index.enabled")
	}
	if !c.OnlineEnabled() && !c.LocalIndex.Enabled {
		return invalid("at least one of online or local_index must be enabled")
	}
	if c.Retrieval.MinOnlineResults < 0 {
		return invalid("retrieval.min_online_results must not be negative")
	}

	if c.LocalIndex.Enabled {
		if c.LocalIndex.Driver != "redis" {
			return invalid("local_index.driver must be redis, got %q", c.LocalIndex.Driver)
		}
		if len(c.LocalIndex.Addrs) == 0 {
			return invalid("local_index.addrs is required")
		}
		emb := c.LocalIndex.Embedding
		if err := validateProvider("local_index.embedding", emb.Provider, emb.BaseURL, emb.APIVersion); err != nil {
			return err
		}
		if emb.Model == "" {
			return invalid("local_index.embedding.model is required")
		}
		if emb.Dimensions < 0 {
			return invalid("local_index.embedding.dimensions must not be negative")
		}
	}

	if c.Diversify.DedupThreshold > 1 {
		return invalid("diversify.dedup_threshold must be in (0, 1], got %g", c.Diversify.DedupThreshold)
	}
	if c.HTTP.Port > 65535 {
		return invalid("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// OnlineEnabled reports whether the browser source is configured.
func (c *Config) OnlineEnabled() bool {
	return c.Online.Enabled == nil || *c.Online.Enabled
}

func validateProvider(section, provider, baseURL, apiVersion string) error {
	switch provider {
	case "openai":
		return nil
	case "azure":
		if baseURL == "" || apiVersion == "" {
			return fmt.Errorf("%w: %s: azure requires base_url and api_version", domain.ErrInvalidConfig, section)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s.provider must be openai or azure, got %q", domain.ErrInvalidConfig, section, provider)
	}
}

// Seconds converts a *_sec setting.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
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

// envVarRegex matches ${VAR} and ${VAR:-default}.
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
