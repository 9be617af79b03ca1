package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	kwerrors "github.com/kwindex/kwindex/internal/errors"
)

// Config represents the complete kwindex build/search configuration.
// It mirrors the header "configuration echo" fields persisted in every
// filters.rkyv (false-positive rate, chunk size, bloom threshold, delimiter
// table version, excluded columns) plus the ambient retry policy.
type Config struct {
	Version int `yaml:"version" json:"version"`

	// FalsePositiveRate bounds the Column Filter's bloom variant error rate.
	FalsePositiveRate float64 `yaml:"false_positive_rate" json:"false_positive_rate"`

	// ChunkSize is the number of keywords per directory chunk.
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`

	// BloomThreshold is the per-column distinct-keyword-count cutoff at or
	// above which the bloom variant is chosen over the exact hash-set variant.
	BloomThreshold int `yaml:"bloom_threshold" json:"bloom_threshold"`

	// DelimiterTableVersion identifies the shredding delimiter table in use.
	// It is recorded in the index header's configuration echo; searches do
	// not compare it against the running build.
	DelimiterTableVersion int `yaml:"delimiter_table_version" json:"delimiter_table_version"`

	// ExcludedColumns lists string columns to skip during shredding, by name.
	ExcludedColumns []string `yaml:"excluded_columns" json:"excluded_columns"`

	// Verify enables the optional exact-match fallback against the source
	// Parquet file when a search result's row occurrence set is ambiguous.
	Verify bool `yaml:"verify" json:"verify"`

	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RetryConfig configures the bounded backoff used by the Storage Adapter.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

// ToErrorsConfig converts to the internal/errors.RetryConfig consumed by
// the bounded backoff helper, adding the fixed multiplier/jitter policy.
func (r RetryConfig) ToErrorsConfig() kwerrors.RetryConfig {
	return kwerrors.RetryConfig{
		MaxRetries:   r.MaxRetries,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version:               1,
		FalsePositiveRate:     0.01,
		ChunkSize:             4096,
		BloomThreshold:        1024,
		DelimiterTableVersion: 1,
		ExcludedColumns:       nil,
		Verify:                false,
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     4 * time.Second,
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory conventions:
//   - $XDG_CONFIG_HOME/kwindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/kwindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kwindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "kwindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "kwindex", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory, applying overrides
// in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/kwindex/config.yaml)
//  3. Project config (.kwindex.yaml in dir)
//  4. Environment variables (KWINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .kwindex.yaml or .kwindex.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".kwindex.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".kwindex.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.FalsePositiveRate != 0 {
		c.FalsePositiveRate = other.FalsePositiveRate
	}
	if other.ChunkSize != 0 {
		c.ChunkSize = other.ChunkSize
	}
	if other.BloomThreshold != 0 {
		c.BloomThreshold = other.BloomThreshold
	}
	if other.DelimiterTableVersion != 0 {
		c.DelimiterTableVersion = other.DelimiterTableVersion
	}
	if len(other.ExcludedColumns) > 0 {
		c.ExcludedColumns = other.ExcludedColumns
	}
	if other.Verify {
		c.Verify = other.Verify
	}
	if other.Retry.MaxRetries != 0 {
		c.Retry.MaxRetries = other.Retry.MaxRetries
	}
	if other.Retry.InitialDelay != 0 {
		c.Retry.InitialDelay = other.Retry.InitialDelay
	}
	if other.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = other.Retry.MaxDelay
	}
}

// applyEnvOverrides applies KWINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KWINDEX_FALSE_POSITIVE_RATE"); v != "" {
		if f, err := parseFloat64(v); err == nil && f > 0 && f < 1 {
			c.FalsePositiveRate = f
		}
	}
	if v := os.Getenv("KWINDEX_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ChunkSize = n
		}
	}
	if v := os.Getenv("KWINDEX_BLOOM_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.BloomThreshold = n
		}
	}
	if v := os.Getenv("KWINDEX_EXCLUDED_COLUMNS"); v != "" {
		c.ExcludedColumns = strings.Split(v, ",")
	}
	if v := os.Getenv("KWINDEX_VERIFY"); v != "" {
		c.Verify = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1 {
		return kwerrors.ConfigError(fmt.Sprintf("false_positive_rate must be between 0 and 1 exclusive, got %f", c.FalsePositiveRate), nil)
	}
	if c.ChunkSize <= 0 {
		return kwerrors.ConfigError(fmt.Sprintf("chunk_size must be positive, got %d", c.ChunkSize), nil)
	}
	if c.BloomThreshold <= 0 {
		return kwerrors.ConfigError(fmt.Sprintf("bloom_threshold must be positive, got %d", c.BloomThreshold), nil)
	}
	if c.DelimiterTableVersion <= 0 {
		return kwerrors.ConfigError(fmt.Sprintf("delimiter_table_version must be positive, got %d", c.DelimiterTableVersion), nil)
	}
	if c.Retry.MaxRetries < 0 {
		return kwerrors.ConfigError(fmt.Sprintf("retry.max_retries must be non-negative, got %d", c.Retry.MaxRetries), nil)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
