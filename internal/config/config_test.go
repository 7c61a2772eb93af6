package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/opspilot/opspilot/internal/task"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if got := cfg.Settings(); got != task.DefaultSettings() {
		t.Errorf("Settings() = %+v, want %+v", got, task.DefaultSettings())
	}
	if !cfg.Analysis.Parallel {
		t.Error("Analysis.Parallel should be true by default")
	}

	if cfg.Generator.Backend != GeneratorNone {
		t.Errorf("Generator.Backend = %q, want %q", cfg.Generator.Backend, GeneratorNone)
	}
	if cfg.Generator.Timeout() != 20*time.Second {
		t.Errorf("Generator.Timeout() = %v, want 20s", cfg.Generator.Timeout())
	}

	if cfg.Storage.Backend != StorageFile {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, StorageFile)
	}
	if cfg.Storage.Dir != filepath.Join(".opspilot", "runs") {
		t.Errorf("Storage.Dir = %q", cfg.Storage.Dir)
	}

	if cfg.Archive.Enabled {
		t.Error("Archive.Enabled should be false by default")
	}
	if cfg.Archive.Bucket != "opspilot-runs" || cfg.Archive.Region != "us-east-1" || !cfg.Archive.UseSSL {
		t.Errorf("Archive = %+v", cfg.Archive)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default() does not validate: %v", ValidationErrors(errs))
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	BindEnv(viper.GetViper())

	t.Setenv("OPSPILOT_ANALYSIS_DUE_SOON_DAYS", "3")
	t.Setenv("OPSPILOT_STORAGE_BACKEND", "postgres")
	t.Setenv("OPSPILOT_STORAGE_POSTGRES_DSN", "postgres://ops:pw@localhost/ops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Analysis.DueSoonDays != 3 {
		t.Errorf("DueSoonDays = %d, want 3", cfg.Analysis.DueSoonDays)
	}
	if cfg.Storage.Backend != StoragePostgres || cfg.Storage.PostgresDSN == "" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("storage.backend", "sqlite")
	viper.Set("analysis.aging_threshold", -1)

	_, err := Load()
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("Load() error = %v (%T), want ValidationErrors", err, err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verrs), verrs)
	}

	if cfg := Get(); cfg.Storage.Backend != StorageFile {
		t.Errorf("Get() should fall back to defaults, got backend %q", cfg.Storage.Backend)
	}
}

func TestLoadDotEnv(t *testing.T) {
	const key = "OPSPILOT_TEST_DOTENV_VALUE"
	t.Setenv(key, "")
	_ = os.Unsetenv(key)

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte(key+"=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-file" {
		t.Errorf("%s = %q, want from-file", key, got)
	}

	t.Setenv(key, "from-env")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(key); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
}

func TestResolvedAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg := GeneratorConfig{}
	if got := cfg.ResolvedAPIKey(); got != "env-key" {
		t.Errorf("ResolvedAPIKey() = %q, want env-key", got)
	}
	cfg.APIKey = "cfg-key"
	if got := cfg.ResolvedAPIKey(); got != "cfg-key" {
		t.Errorf("ResolvedAPIKey() = %q, want cfg-key", got)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Generator.APIKey = "secret"
	cfg.Archive.SecretKey = "secret"
	cfg.Storage.PostgresDSN = "postgres://ops:hunter2@db:5432/ops"

	r := cfg.Redacted()
	if r.Generator.APIKey != "********" || r.Archive.SecretKey != "********" || r.Archive.AccessKey != "" {
		t.Errorf("credentials not masked: %+v %+v", r.Generator, r.Archive)
	}
	if strings.Contains(r.Storage.PostgresDSN, "hunter2") || !strings.HasPrefix(r.Storage.PostgresDSN, "postgres://ops:") {
		t.Errorf("dsn = %q", r.Storage.PostgresDSN)
	}
	if cfg.Generator.APIKey != "secret" {
		t.Error("Redacted() modified the original")
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://ops:pw@db/ops", "postgres://ops:********@db/ops"},
		{"postgres://ops@db/ops", "postgres://ops@db/ops"},
		{"host=db user=ops password=pw dbname=ops", "host=db user=ops password=******** dbname=ops"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			if got := redactDSN(tt.dsn); got != tt.want {
				t.Errorf("redactDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/opspilot" {
			t.Errorf("ConfigDir() = %q, want /custom/config/opspilot", got)
		}
		if got := ConfigFile(); got != "/custom/config/opspilot/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "opspilot")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}
