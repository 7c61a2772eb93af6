package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/opspilot/opspilot/internal/errors"
)

// FakeGenerator returns scripted responses. Responses are matched by the
// first key that is a substring of the prompt; Default is used otherwise.
// It is safe for concurrent use.
type FakeGenerator struct {
	Responses map[string]string
	Default   string
	Err       error
	// Panic makes Generate panic, for exercising stage recovery.
	Panic bool

	mu      sync.Mutex
	prompts []string
}

func (f *FakeGenerator) Name() string { return "fake" }

func (f *FakeGenerator) Available() bool { return f != nil }

func (f *FakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.Panic {
		panic("fake generator panic")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", f.Err
	}
	for key, resp := range f.Responses {
		if strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	if f.Default == "" {
		return "", errors.ErrGeneratorUnavailable
	}
	return f.Default, nil
}

// Prompts returns every prompt received so far.
func (f *FakeGenerator) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}
