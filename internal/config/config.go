package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv and Resolve
const (
	EnvConfig            = "AUDEN_CONFIG"
	EnvDataDir           = "AUDEN_DATA_DIR"
	EnvEmbeddingProvider = "AUDEN_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "AUDEN_EMBEDDING_MODEL"
	EnvLogLevel          = "AUDEN_LOG_LEVEL"

	// FileName is the config file looked up inside the data directory
	FileName = "config.yaml"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the index
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig selects and tunes the embedding provider. API keys are
// read from JINA_API_KEY / OPENAI_API_KEY, never from the file.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // "openai", "jina", "local"; empty detects from env
	Model             string        `yaml:"model"`    // empty uses the provider default
	BaseURL           string        `yaml:"base_url,omitempty"`
	Dimension         int           `yaml:"dimension,omitempty"` // 0 = provider default, or learned for a custom model
	CacheSize         int           `yaml:"cache_size"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"` // HTTP client timeout
}

// PipelineConfig bounds embedding concurrency and retry
type PipelineConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// CrawlerConfig controls which files are visited
type CrawlerConfig struct {
	Excludes       []string `yaml:"excludes"`
	IncludeHidden  bool     `yaml:"include_hidden"`
	FollowSymlinks bool     `yaml:"follow_symlinks"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
}

// SearchConfig holds query limits
type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// DefaultDataDir returns ~/.auden, or .auden when no home is available
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".auden"
	}
	return filepath.Join(home, ".auden")
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
			Burst:     1,
			Timeout:   30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:     runtime.NumCPU(),
			QueueSize:   256,
			BatchSize:   10,
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2.0,
			CallTimeout: 30 * time.Second,
		},
		Crawler: CrawlerConfig{
			Excludes: []string{
				"**/.git",
				"**/node_modules",
				"**/vendor",
				"**/target*",
				"**/*.min.js",
			},
			MaxFileBytes: 1 << 20,
		},
		Search: SearchConfig{
			MaxResults: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file over the defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads <dir>/config.yaml, or defaults with DataDir set to dir
func LoadFromDir(dir string) (*Config, error) {
	cfg, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	if cfg.DataDir == "" || cfg.DataDir == DefaultDataDir() {
		cfg.DataDir = dir
	}
	return cfg, nil
}

// Resolve finds and loads the configuration: the explicit path if given,
// then $AUDEN_CONFIG, then config.yaml in the data directory. Environment
// overrides are applied last.
func Resolve(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}

	var cfg *Config
	var err error
	if path != "" {
		cfg, err = Load(path)
	} else {
		dataDir := os.Getenv(EnvDataDir)
		if dataDir == "" {
			dataDir = DefaultDataDir()
		}
		cfg, err = LoadFromDir(dataDir)
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from AUDEN_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		c.Embedding.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvEmbeddingModel); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks bounds and patterns
func (c *Config) Validate() error {
	var problems []string

	if c.DataDir == "" {
		problems = append(problems, "data_dir is required")
	}
	switch c.Embedding.Provider {
	case "", "openai", "jina", "local":
	default:
		problems = append(problems, fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimension < 0 {
		problems = append(problems, "embedding.dimension must be >= 0")
	}
	if c.Embedding.RequestsPerSecond < 0 {
		problems = append(problems, "embedding.requests_per_second must be >= 0")
	}

	p := c.Pipeline
	if p.Workers <= 0 {
		problems = append(problems, "pipeline.workers must be positive")
	}
	if p.QueueSize <= 0 {
		problems = append(problems, "pipeline.queue_size must be positive")
	}
	if p.BatchSize <= 0 || p.BatchSize > 100 {
		problems = append(problems, "pipeline.batch_size must be between 1 and 100")
	}
	if p.MaxAttempts <= 0 {
		problems = append(problems, "pipeline.max_attempts must be positive")
	}
	if p.Multiplier < 1 {
		problems = append(problems, "pipeline.multiplier must be >= 1")
	}
	if p.CallTimeout <= 0 {
		problems = append(problems, "pipeline.call_timeout must be positive")
	}

	for _, pattern := range c.Crawler.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			problems = append(problems, fmt.Sprintf("invalid exclude pattern %q", pattern))
		}
	}

	if c.Search.MaxResults <= 0 {
		problems = append(problems, "search.max_results must be positive")
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// DatabasePath is the SQLite file inside the data directory
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "index.db")
}

// Save saves configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
