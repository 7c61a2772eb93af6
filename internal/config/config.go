// Package config loads OpsPilot configuration through viper. Values come
// from defaults, an optional YAML file, .env files and OPSPILOT_*
// environment variables, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opspilot/opspilot/internal/task"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "OPSPILOT"

// Config represents the complete OpsPilot configuration
type Config struct {
	Analysis  AnalysisConfig  `mapstructure:"analysis" yaml:"analysis"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// AnalysisConfig tunes the analytical core
type AnalysisConfig struct {
	// DueSoonDays is the window, in days, counted as "due soon"
	DueSoonDays int `mapstructure:"due_soon_days" yaml:"due_soon_days"`
	// AgingThreshold is the number of in-progress days after which a task is aging
	AgingThreshold int `mapstructure:"aging_threshold" yaml:"aging_threshold"`
	// OwnerLoadThreshold is informational only
	OwnerLoadThreshold int `mapstructure:"owner_load_threshold" yaml:"owner_load_threshold"`
	// Parallel runs detection and forecasting concurrently
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`
}

// GeneratorConfig controls the optional text generator
type GeneratorConfig struct {
	// Backend is "none" or "gemini"
	Backend string `mapstructure:"backend" yaml:"backend"`
	Model   string `mapstructure:"model" yaml:"model"`
	// APIKey falls back to GEMINI_API_KEY when empty
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	// CacheSize bounds the response cache; 0 disables it
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// StorageConfig selects where saved runs live
type StorageConfig struct {
	// Backend is "file" or "postgres"
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	// CacheSize bounds the in-memory run cache; negative disables it
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// ArchiveConfig configures the optional S3-compatible archive
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Dir receives opspilot.log; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Generator backends
const (
	GeneratorNone   = "none"
	GeneratorGemini = "gemini"
)

// Storage backends
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Default returns a Config with sensible default values
func Default() *Config {
	settings := task.DefaultSettings()
	return &Config{
		Analysis: AnalysisConfig{
			DueSoonDays:        settings.DueSoonDays,
			AgingThreshold:     settings.AgingThreshold,
			OwnerLoadThreshold: settings.OwnerLoadThreshold,
			Parallel:           true,
		},
		Generator: GeneratorConfig{
			Backend:        GeneratorNone,
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 20,
			CacheSize:      256,
		},
		Storage: StorageConfig{
			Backend: StorageFile,
			Dir:     filepath.Join(".opspilot", "runs"),
		},
		Archive: ArchiveConfig{
			Bucket: "opspilot-runs",
			Region: "us-east-1",
			UseSSL: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("analysis.due_soon_days", defaults.Analysis.DueSoonDays)
	viper.SetDefault("analysis.aging_threshold", defaults.Analysis.AgingThreshold)
	viper.SetDefault("analysis.owner_load_threshold", defaults.Analysis.OwnerLoadThreshold)
	viper.SetDefault("analysis.parallel", defaults.Analysis.Parallel)

	viper.SetDefault("generator.backend", defaults.Generator.Backend)
	viper.SetDefault("generator.model", defaults.Generator.Model)
	viper.SetDefault("generator.api_key", defaults.Generator.APIKey)
	viper.SetDefault("generator.timeout_seconds", defaults.Generator.TimeoutSeconds)
	viper.SetDefault("generator.cache_size", defaults.Generator.CacheSize)

	viper.SetDefault("storage.backend", defaults.Storage.Backend)
	viper.SetDefault("storage.dir", defaults.Storage.Dir)
	viper.SetDefault("storage.postgres_dsn", defaults.Storage.PostgresDSN)
	viper.SetDefault("storage.cache_size", defaults.Storage.CacheSize)

	viper.SetDefault("archive.enabled", defaults.Archive.Enabled)
	viper.SetDefault("archive.endpoint", defaults.Archive.Endpoint)
	viper.SetDefault("archive.bucket", defaults.Archive.Bucket)
	viper.SetDefault("archive.region", defaults.Archive.Region)
	viper.SetDefault("archive.access_key", defaults.Archive.AccessKey)
	viper.SetDefault("archive.secret_key", defaults.Archive.SecretKey)
	viper.SetDefault("archive.use_ssl", defaults.Archive.UseSSL)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return err
		}
	}
	return nil
}

// BindEnv configures OPSPILOT_* environment overrides on v, e.g.
// OPSPILOT_STORAGE_BACKEND for storage.backend.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when it
// cannot be loaded
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Settings projects the analysis section onto the core settings contract.
func (c *Config) Settings() task.Settings {
	return task.Settings{
		DueSoonDays:        c.Analysis.DueSoonDays,
		AgingThreshold:     c.Analysis.AgingThreshold,
		OwnerLoadThreshold: c.Analysis.OwnerLoadThreshold,
	}
}

// Timeout returns the per-request generator timeout.
func (c *GeneratorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolvedAPIKey returns the configured key or GEMINI_API_KEY.
func (c *GeneratorConfig) ResolvedAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("GEMINI_API_KEY")
}

// Redacted returns a copy with credentials masked for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Generator.APIKey = mask(out.Generator.APIKey)
	out.Archive.AccessKey = mask(out.Archive.AccessKey)
	out.Archive.SecretKey = mask(out.Archive.SecretKey)
	if out.Storage.PostgresDSN != "" {
		out.Storage.PostgresDSN = redactDSN(out.Storage.PostgresDSN)
	}
	return &out
}

// redactDSN hides the password in a postgres URL or key/value DSN.
func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at > 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			userinfo := dsn[scheme+3 : at]
			if colon := strings.Index(userinfo, ":"); colon >= 0 {
				return dsn[:scheme+3] + userinfo[:colon] + ":********" + dsn[at:]
			}
		}
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=********"
		}
	}
	return strings.Join(fields, " ")
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "opspilot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opspilot"
	}
	return filepath.Join(home, ".config", "opspilot")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
