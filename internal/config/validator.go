package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/opspilot/opspilot/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "analysis.due_soon_days")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels, in the lower case
// used by config files
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	for i, l := range levels {
		levels[i] = strings.ToLower(l)
	}
	return levels
}

// ValidGeneratorBackends returns the accepted generator.backend values
func ValidGeneratorBackends() []string {
	return []string{GeneratorNone, GeneratorGemini}
}

// ValidStorageBackends returns the accepted storage.backend values
func ValidStorageBackends() []string {
	return []string{StorageFile, StoragePostgres}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateAnalysis()...)
	errors = append(errors, c.validateGenerator()...)
	errors = append(errors, c.validateStorage()...)
	errors = append(errors, c.validateArchive()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateAnalysis() []ValidationError {
	var errors []ValidationError

	nonNegative := []struct {
		field string
		value int
	}{
		{"analysis.due_soon_days", c.Analysis.DueSoonDays},
		{"analysis.aging_threshold", c.Analysis.AgingThreshold},
		{"analysis.owner_load_threshold", c.Analysis.OwnerLoadThreshold},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}

func (c *Config) validateGenerator() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidGeneratorBackends(), c.Generator.Backend) {
		errors = append(errors, ValidationError{
			Field:   "generator.backend",
			Value:   c.Generator.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidGeneratorBackends(), ", ")),
		})
	}

	if c.Generator.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "generator.timeout_seconds",
			Value:   c.Generator.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Generator.CacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "generator.cache_size",
			Value:   c.Generator.CacheSize,
			Message: "must be non-negative",
		})
	}

	if c.Generator.Backend == GeneratorGemini && strings.TrimSpace(c.Generator.Model) == "" {
		errors = append(errors, ValidationError{
			Field:   "generator.model",
			Value:   c.Generator.Model,
			Message: "is required when generator.backend is gemini",
		})
	}

	return errors
}

func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidStorageBackends(), c.Storage.Backend) {
		errors = append(errors, ValidationError{
			Field:   "storage.backend",
			Value:   c.Storage.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidStorageBackends(), ", ")),
		})
	}

	switch c.Storage.Backend {
	case StorageFile:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			errors = append(errors, ValidationError{
				Field:   "storage.dir",
				Value:   c.Storage.Dir,
				Message: "is required when storage.backend is file",
			})
		}
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.PostgresDSN) == "" {
			errors = append(errors, ValidationError{
				Field:   "storage.postgres_dsn",
				Value:   "",
				Message: "is required when storage.backend is postgres",
			})
		}
	}

	return errors
}

func (c *Config) validateArchive() []ValidationError {
	if !c.Archive.Enabled {
		return nil
	}
	var errors []ValidationError

	required := []struct {
		field string
		value string
	}{
		{"archive.endpoint", c.Archive.Endpoint},
		{"archive.bucket", c.Archive.Bucket},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errors = append(errors, ValidationError{
				Field:   f.field,
				Value:   f.value,
				Message: "is required when archive is enabled",
			})
		}
	}

	if strings.Contains(c.Archive.Endpoint, "://") {
		errors = append(errors, ValidationError{
			Field:   "archive.endpoint",
			Value:   c.Archive.Endpoint,
			Message: "must be host[:port] without a scheme; use archive.use_ssl instead",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
