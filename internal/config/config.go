// Package config provides configuration management for the vector index
// engine: build parameters, the storage/snapshot backend, the demo server,
// and ambient settings such as logging and metrics. Configuration loads
// from a YAML or JSON file, layered with environment variable overrides,
// matching the teacher's ArxOS config package.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Metric names the distance function the index was built with.
type Metric string

const (
	MetricL2  Metric = "l2"
	MetricDot Metric = "dot"
)

// Config is the complete engine configuration.
type Config struct {
	// Core settings
	Dims     int    `json:"dims" yaml:"dims"`
	Metric   Metric `json:"metric" yaml:"metric"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`

	Build    BuildConfig    `json:"build" yaml:"build"`
	Vacuum   VacuumConfig   `json:"vacuum" yaml:"vacuum"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	TUI      TUIConfig      `json:"tui" yaml:"tui"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Features FeatureFlags   `json:"features" yaml:"features"`
}

// BuildConfig controls hierarchical k-means clustering, per spec.md's
// build parameters (lists per level, sampling factor, residual encoding).
type BuildConfig struct {
	Lists          []int `json:"lists" yaml:"lists"`
	SamplingFactor int   `json:"sampling_factor" yaml:"sampling_factor"`
	Residual       bool  `json:"residual" yaml:"residual"`
	Seed           int64 `json:"seed" yaml:"seed"`
}

// VacuumConfig controls how often and how gently background vacuum runs.
type VacuumConfig struct {
	Interval  time.Duration `json:"interval" yaml:"interval"`
	YieldEvery int          `json:"yield_every" yaml:"yield_every"`
}

// StorageConfig selects the snapshot backend and its credentials.
type StorageConfig struct {
	Backend string      `json:"backend" yaml:"backend"` // local, s3, gcs, azure
	Local   LocalConfig `json:"local" yaml:"local"`
	S3      S3Config    `json:"s3" yaml:"s3"`
	GCS     GCSConfig   `json:"gcs" yaml:"gcs"`
	Azure   AzureConfig `json:"azure" yaml:"azure"`
}

type LocalConfig struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`
}

type S3Config struct {
	Region          string `json:"region" yaml:"region"`
	Bucket          string `json:"bucket" yaml:"bucket"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
}

type GCSConfig struct {
	BucketName      string `json:"bucket_name" yaml:"bucket_name"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

type AzureConfig struct {
	AccountName      string `json:"account_name" yaml:"account_name"`
	AccountKey       string `json:"account_key" yaml:"account_key"`
	ContainerName    string `json:"container_name" yaml:"container_name"`
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ServerConfig configures the optional demo HTTP front.
type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr"`
	JWTSecret      string        `json:"jwt_secret" yaml:"jwt_secret"`
	RateLimitRPS   float64       `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int           `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// TUIConfig configures the vidxtop dashboard.
type TUIConfig struct {
	RefreshInterval string `json:"refresh_interval" yaml:"refresh_interval"`
	Theme           string `json:"theme" yaml:"theme"` // dark, light
}

func (c *TUIConfig) ParseRefreshInterval() (time.Duration, error) {
	if c.RefreshInterval == "" {
		return time.Second, nil
	}
	return time.ParseDuration(c.RefreshInterval)
}

func (c *TUIConfig) IsDarkTheme() bool { return strings.EqualFold(c.Theme, "dark") }

// LoggingConfig controls the zap-backed logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"` // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, console
}

// FeatureFlags toggles optional behavior.
type FeatureFlags struct {
	MetricsEnabled bool `json:"metrics_enabled" yaml:"metrics_enabled"`
	RerankInHeap   bool `json:"rerank_in_heap" yaml:"rerank_in_heap"`
}

// Default returns a Config suitable for a local, single-node deployment.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".vecindex")
	return &Config{
		Dims:    128,
		Metric:  MetricL2,
		DataDir: filepath.Join(base, "data"),
		CacheDir: filepath.Join(base, "cache"),
		Build: BuildConfig{
			Lists:          []int{256, 16},
			SamplingFactor: 16,
			Residual:       true,
			Seed:           1,
		},
		Vacuum: VacuumConfig{
			Interval:   time.Hour,
			YieldEvery: 64,
		},
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalConfig{BaseDir: filepath.Join(base, "snapshots")},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			RateLimitRPS:   50,
			RateLimitBurst: 100,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
		},
		TUI: TUIConfig{
			RefreshInterval: "500ms",
			Theme:           "dark",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Features: FeatureFlags{
			MetricsEnabled: true,
		},
	}
}

// Load builds a Config from defaults, an optional file, then environment
// overrides, validating the result.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			fmt.Printf("warning: failed to load config file, using defaults: %v\n", err)
		}
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file, expanding
// ${VAR} / ${VAR:-default} references against the environment first.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	data = []byte(substituteEnvVars(string(data)))

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".yaml") {
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse yaml config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse json config: %w", err)
		}
	}
	return nil
}

// LoadFromEnv overlays VECINDEX_-prefixed environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("VECINDEX_DIMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Dims = n
		}
	}
	if v := os.Getenv("VECINDEX_METRIC"); v != "" {
		c.Metric = Metric(v)
	}
	if v := os.Getenv("VECINDEX_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("VECINDEX_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}

	if v := os.Getenv("VECINDEX_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("VECINDEX_S3_BUCKET"); v != "" {
		c.Storage.S3.Bucket = v
	}
	if v := os.Getenv("VECINDEX_S3_REGION"); v != "" {
		c.Storage.S3.Region = v
	}
	if v := os.Getenv("VECINDEX_S3_ACCESS_KEY_ID"); v != "" {
		c.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("VECINDEX_S3_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.S3.SecretAccessKey = v
	}
	if v := os.Getenv("VECINDEX_GCS_BUCKET"); v != "" {
		c.Storage.GCS.BucketName = v
	}
	if v := os.Getenv("VECINDEX_AZURE_CONNECTION_STRING"); v != "" {
		c.Storage.Azure.ConnectionString = v
	}

	if v := os.Getenv("VECINDEX_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("VECINDEX_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("VECINDEX_RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RateLimitRPS = f
		}
	}

	if v := os.Getenv("VECINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.Dims <= 0 {
		errs = append(errs, "dims must be positive")
	}
	if c.Metric != MetricL2 && c.Metric != MetricDot {
		errs = append(errs, fmt.Sprintf("unsupported metric %q", c.Metric))
	}
	if len(c.Build.Lists) == 0 {
		errs = append(errs, "build.lists must have at least one level")
	}
	for i, n := range c.Build.Lists {
		if n <= 0 {
			errs = append(errs, fmt.Sprintf("build.lists[%d] must be positive", i))
		}
	}
	if c.Build.SamplingFactor <= 0 {
		errs = append(errs, "build.sampling_factor must be positive")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Local.BaseDir == "" {
			errs = append(errs, "storage.local.base_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, "storage.s3.bucket is required for the s3 backend")
		}
	case "gcs":
		if c.Storage.GCS.BucketName == "" {
			errs = append(errs, "storage.gcs.bucket_name is required for the gcs backend")
		}
	case "azure":
		if c.Storage.Azure.ContainerName == "" {
			errs = append(errs, "storage.azure.container_name is required for the azure backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "server.rate_limit_rps must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// EnsureDirectories creates DataDir and CacheDir (and the local snapshot
// directory, if that backend is selected) if they don't already exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.CacheDir}
	if c.Storage.Backend == "local" && c.Storage.Local.BaseDir != "" {
		dirs = append(dirs, c.Storage.Local.BaseDir)
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// GetConfigPath resolves the default config file location, honoring
// VECINDEX_CONFIG if set.
func GetConfigPath() string {
	if p := os.Getenv("VECINDEX_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "vecindex.yaml"
	}
	return filepath.Join(home, ".vecindex", "config.yaml")
}

// substituteEnvVars replaces ${VAR} / ${VAR:-default} references in content.
func substituteEnvVars(content string) string {
	pattern := regexp.MustCompile(`\$\{([^}:]+)(?::-(.*?))?\}`)
	return pattern.ReplaceAllStringFunc(content, func(match string) string {
		start := strings.Index(match, "${") + 2
		end := strings.Index(match, "}")
		if end == -1 {
			return match
		}
		varPart := match[start:end]
		varName, defaultValue := varPart, ""
		if idx := strings.Index(varPart, ":-"); idx != -1 {
			varName, defaultValue = varPart[:idx], varPart[idx+2:]
		}
		if v := os.Getenv(varName); v != "" {
			return v
		}
		return defaultValue
	})
}
