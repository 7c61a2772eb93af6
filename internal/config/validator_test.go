package config

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		wantFields []string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:       "negative analysis values",
			mutate:     func(c *Config) { c.Analysis.DueSoonDays = -1; c.Analysis.AgingThreshold = -2 },
			wantFields: []string{"analysis.due_soon_days", "analysis.aging_threshold"},
		},
		{
			name:       "unknown generator",
			mutate:     func(c *Config) { c.Generator.Backend = "openai" },
			wantFields: []string{"generator.backend"},
		},
		{
			name:       "gemini without model",
			mutate:     func(c *Config) { c.Generator.Backend = GeneratorGemini; c.Generator.Model = " " },
			wantFields: []string{"generator.model"},
		},
		{
			name:       "zero generator timeout",
			mutate:     func(c *Config) { c.Generator.TimeoutSeconds = 0 },
			wantFields: []string{"generator.timeout_seconds"},
		},
		{
			name:       "postgres without dsn",
			mutate:     func(c *Config) { c.Storage.Backend = StoragePostgres },
			wantFields: []string{"storage.postgres_dsn"},
		},
		{
			name:       "file without dir",
			mutate:     func(c *Config) { c.Storage.Dir = "" },
			wantFields: []string{"storage.dir"},
		},
		{
			name:       "archive enabled without endpoint",
			mutate:     func(c *Config) { c.Archive.Enabled = true },
			wantFields: []string{"archive.endpoint"},
		},
		{
			name: "archive endpoint with scheme",
			mutate: func(c *Config) {
				c.Archive.Enabled = true
				c.Archive.Endpoint = "https://s3.example.com"
			},
			wantFields: []string{"archive.endpoint"},
		},
		{
			name:   "archive disabled ignores endpoint",
			mutate: func(c *Config) { c.Archive.Endpoint = "https://s3.example.com" },
		},
		{
			name:       "bad log level",
			mutate:     func(c *Config) { c.Logging.Level = "trace" },
			wantFields: []string{"logging.level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()

			if len(errs) != len(tt.wantFields) {
				t.Fatalf("Validate() returned %d errors, want %d: %v", len(errs), len(tt.wantFields), ValidationErrors(errs))
			}
			for i, field := range tt.wantFields {
				if errs[i].Field != field {
					t.Errorf("error %d field = %q, want %q", i, errs[i].Field, field)
				}
			}
		})
	}
}

func TestValidationErrorsError(t *testing.T) {
	if got := ValidationErrors(nil).Error(); got != "" {
		t.Errorf("empty Error() = %q", got)
	}

	one := ValidationErrors{{Field: "storage.backend", Value: "x", Message: "bad"}}
	if got := one.Error(); got != "storage.backend: bad (got: x)" {
		t.Errorf("single Error() = %q", got)
	}

	two := append(one, ValidationError{Field: "logging.level", Value: "y", Message: "bad"})
	got := two.Error()
	if !strings.HasPrefix(got, "2 validation errors:") || !strings.Contains(got, "2. logging.level") {
		t.Errorf("multi Error() = %q", got)
	}
}
