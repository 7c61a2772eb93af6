package pipeline

import (
	"time"

	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSettings sets the analysis thresholds.
func WithSettings(s task.Settings) Option {
	return func(a *Analyzer) {
		a.settings = s
	}
}

// WithGenerator sets the optional text generator passed to the
// recommendation stage.
func WithGenerator(g llm.Generator) Option {
	return func(a *Analyzer) {
		a.generator = llm.OrNoop(g)
	}
}

// WithLogger sets the logger. Stage loggers are derived from it.
func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock fixes the reference time used for date arithmetic.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// WithParallel toggles concurrent detect/forecast execution.
func WithParallel(enabled bool) Option {
	return func(a *Analyzer) {
		a.parallel = enabled
	}
}

// WithRunIDFunc overrides run identifier generation.
func WithRunIDFunc(fn func(time.Time) string) Option {
	return func(a *Analyzer) {
		if fn != nil {
			a.newRunID = fn
		}
	}
}

// withStageHook injects a function called at the start of each stage.
// Tests use it to force stage failures.
func withStageHook(fn func(Stage)) Option {
	return func(a *Analyzer) {
		a.stageHook = fn
	}
}
