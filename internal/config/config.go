package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kariantti/NuGetGallery/internal/errors"
	"github.com/kariantti/NuGetGallery/internal/logging"
)

const (
	// ProjectFileName is the per-directory configuration file.
	ProjectFileName = ".gallerysearch.yaml"
	// envPrefix prefixes every environment override.
	envPrefix = "GALLERYSEARCH_"
)

// Catalog SQL drivers.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3
)

// Sort tokens accepted by search.default_sort.
var validSorts = map[string]bool{
	"popularity": true,
	"relevance":  true,
	"recency":    true,
	"alphabetic": true,
}

// Config represents the complete gallerysearch configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Index     IndexConfig     `yaml:"index" json:"index"`
	Catalog   CatalogConfig   `yaml:"catalog" json:"catalog"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// IndexConfig locates the on-disk package index.
type IndexConfig struct {
	// Path is the bleve index directory. Relative paths resolve against the
	// directory passed to Load.
	Path string `yaml:"path" json:"path"`
}

// CatalogConfig configures the SQLite package catalog.
type CatalogConfig struct {
	Path string `yaml:"path" json:"path"`
	// Driver is "sqlite" (modernc, default) or "sqlite3" (mattn, cgo).
	Driver string `yaml:"driver" json:"driver"`
	// LookupBatchSize caps the number of keys per catalog query.
	LookupBatchSize int `yaml:"lookup_batch_size" json:"lookup_batch_size"`
	// LookupConcurrency caps the number of batches queried in parallel.
	LookupConcurrency int `yaml:"lookup_concurrency" json:"lookup_concurrency"`
}

// SearchConfig configures query defaults and ranking weights.
type SearchConfig struct {
	// DefaultSort is used when the caller passes no sort token.
	DefaultSort string `yaml:"default_sort" json:"default_sort"`
	// DefaultTake is the record count returned when the caller passes none.
	DefaultTake int `yaml:"default_take" json:"default_take"`
	// FieldWeights overrides the ranking weight table. Empty keeps the
	// built-in table; when set, every searchable field must be listed.
	FieldWeights map[string]float64 `yaml:"field_weights,omitempty" json:"field_weights,omitempty"`
}

// ServerConfig configures process-level behaviour.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// TelemetryConfig configures in-process query metrics.
type TelemetryConfig struct {
	// Enabled is a pointer so an explicit false in YAML survives merging.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	// TopTermsCapacity bounds the LRU of tracked query terms.
	TopTermsCapacity int `yaml:"top_terms_capacity" json:"top_terms_capacity"`
	// ZeroResultCapacity bounds the ring of recent zero-result queries.
	ZeroResultCapacity int `yaml:"zero_result_capacity" json:"zero_result_capacity"`
}

// IsEnabled reports whether telemetry is on. Unset means enabled.
func (t TelemetryConfig) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Path: filepath.Join(".gallerysearch", "index"),
		},
		Catalog: CatalogConfig{
			Path:              filepath.Join(".gallerysearch", "catalog.db"),
			Driver:            DriverModernc,
			LookupBatchSize:   500,
			LookupConcurrency: 4,
		},
		Search: SearchConfig{
			DefaultSort: "popularity",
			DefaultTake: 20,
		},
		Server: ServerConfig{
			LogLevel: "warn",
		},
		Telemetry: TelemetryConfig{
			TopTermsCapacity:   1000,
			ZeroResultCapacity: 100,
		},
	}
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/gallerysearch/config.yaml,
// defaulting XDG_CONFIG_HOME to ~/.config.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gallerysearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "gallerysearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "gallerysearch", "config.yaml")
}

// Load loads configuration for dir. Precedence, lowest first:
// defaults, user config, project file, GALLERYSEARCH_* env vars.
// The result is validated and its relative paths resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid configuration: "+err.Error(), err)
	}

	cfg.resolvePaths(dir)
	return cfg, nil
}

// LoadFile reads a single config file over the defaults, without user
// config, env overrides or path resolution. Config upgrades use it so that
// rewriting a file keeps its settings and adds any new defaults.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "invalid configuration: "+err.Error(), err).
			WithDetail("path", path)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectFileName, ".gallerysearch.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigPermission, "cannot read config file "+path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.ConfigError(fmt.Sprintf("cannot parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies every non-zero field of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Path != "" {
		c.Index.Path = other.Index.Path
	}

	if other.Catalog.Path != "" {
		c.Catalog.Path = other.Catalog.Path
	}
	if other.Catalog.Driver != "" {
		c.Catalog.Driver = other.Catalog.Driver
	}
	if other.Catalog.LookupBatchSize != 0 {
		c.Catalog.LookupBatchSize = other.Catalog.LookupBatchSize
	}
	if other.Catalog.LookupConcurrency != 0 {
		c.Catalog.LookupConcurrency = other.Catalog.LookupConcurrency
	}

	if other.Search.DefaultSort != "" {
		c.Search.DefaultSort = other.Search.DefaultSort
	}
	if other.Search.DefaultTake != 0 {
		c.Search.DefaultTake = other.Search.DefaultTake
	}
	// A weight table is replaced whole, never merged field by field.
	if len(other.Search.FieldWeights) > 0 {
		c.Search.FieldWeights = make(map[string]float64, len(other.Search.FieldWeights))
		for k, v := range other.Search.FieldWeights {
			c.Search.FieldWeights[k] = v
		}
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Telemetry.Enabled != nil {
		enabled := *other.Telemetry.Enabled
		c.Telemetry.Enabled = &enabled
	}
	if other.Telemetry.TopTermsCapacity != 0 {
		c.Telemetry.TopTermsCapacity = other.Telemetry.TopTermsCapacity
	}
	if other.Telemetry.ZeroResultCapacity != 0 {
		c.Telemetry.ZeroResultCapacity = other.Telemetry.ZeroResultCapacity
	}
}

// applyEnvOverrides applies GALLERYSEARCH_* variables. Malformed numbers
// and booleans are reported rather than ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(envPrefix + "INDEX_PATH"); v != "" {
		c.Index.Path = v
	}
	if v := os.Getenv(envPrefix + "CATALOG_PATH"); v != "" {
		c.Catalog.Path = v
	}
	if v := os.Getenv(envPrefix + "CATALOG_DRIVER"); v != "" {
		c.Catalog.Driver = v
	}
	if v := os.Getenv(envPrefix + "LOOKUP_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("LOOKUP_BATCH_SIZE", v, err)
		}
		c.Catalog.LookupBatchSize = n
	}
	if v := os.Getenv(envPrefix + "DEFAULT_SORT"); v != "" {
		c.Search.DefaultSort = v
	}
	if v := os.Getenv(envPrefix + "DEFAULT_TAKE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError("DEFAULT_TAKE", v, err)
		}
		c.Search.DefaultTake = n
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "TELEMETRY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("TELEMETRY_ENABLED", v, err)
		}
		c.Telemetry.Enabled = &b
	}
	return nil
}

func envError(name, value string, cause error) error {
	return errors.ConfigError(fmt.Sprintf("invalid %s%s=%q", envPrefix, name, value), cause)
}

// Validate validates the configuration and returns an error if invalid.
// Field weight completeness is checked when the weight table is built.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Index.Path) == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("catalog.path must not be empty")
	}
	switch c.Catalog.Driver {
	case DriverModernc, DriverCGO:
	default:
		return fmt.Errorf("catalog.driver must be %q or %q, got %q", DriverModernc, DriverCGO, c.Catalog.Driver)
	}
	if c.Catalog.LookupBatchSize <= 0 {
		return fmt.Errorf("catalog.lookup_batch_size must be positive, got %d", c.Catalog.LookupBatchSize)
	}
	if c.Catalog.LookupConcurrency <= 0 {
		return fmt.Errorf("catalog.lookup_concurrency must be positive, got %d", c.Catalog.LookupConcurrency)
	}

	if !validSorts[strings.ToLower(c.Search.DefaultSort)] {
		return fmt.Errorf("search.default_sort must be popularity, relevance, recency or alphabetic, got %q", c.Search.DefaultSort)
	}
	if c.Search.DefaultTake < 0 {
		return fmt.Errorf("search.default_take must be non-negative, got %d", c.Search.DefaultTake)
	}
	for field, w := range c.Search.FieldWeights {
		if w <= 0 {
			return fmt.Errorf("search.field_weights.%s must be positive, got %g", field, w)
		}
	}

	if !logging.ValidLevel(c.Server.LogLevel) {
		return fmt.Errorf("server.log_level must be debug, info, warn or error, got %q", c.Server.LogLevel)
	}

	if c.Telemetry.TopTermsCapacity < 0 {
		return fmt.Errorf("telemetry.top_terms_capacity must be non-negative, got %d", c.Telemetry.TopTermsCapacity)
	}
	if c.Telemetry.ZeroResultCapacity < 0 {
		return fmt.Errorf("telemetry.zero_result_capacity must be non-negative, got %d", c.Telemetry.ZeroResultCapacity)
	}

	return nil
}

func (c *Config) resolvePaths(dir string) {
	if dir == "" {
		return
	}
	if !filepath.IsAbs(c.Index.Path) {
		c.Index.Path = filepath.Join(dir, c.Index.Path)
	}
	if !filepath.IsAbs(c.Catalog.Path) {
		c.Catalog.Path = filepath.Join(dir, c.Catalog.Path)
	}
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
