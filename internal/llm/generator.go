// Package llm provides the optional free-text generation capability used for
// task extraction and recommendation proposals. Every caller treats a missing
// or failing generator as "no output" and continues with rule-based results.
package llm

import (
	"context"

	"github.com/opspilot/opspilot/internal/errors"
)

// Generator produces free text for a prompt.
type Generator interface {
	// Generate sends one bounded request. Implementations do not retry.
	Generate(ctx context.Context, prompt string) (string, error)
	// Available reports whether Generate can be expected to succeed.
	Available() bool
	// Name identifies the backend in logs.
	Name() string
}

// Noop is the inert generator used when no backend is configured.
type Noop struct{}

func (Noop) Generate(context.Context, string) (string, error) {
	return "", errors.ErrGeneratorUnavailable
}

func (Noop) Available() bool { return false }

func (Noop) Name() string { return "none" }

// OrNoop returns g, or Noop when g is nil.
func OrNoop(g Generator) Generator {
	if g == nil {
		return Noop{}
	}
	return g
}
