package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/opspilot/opspilot/internal/errors"
)

func TestNoop(t *testing.T) {
	var g Generator = Noop{}
	if g.Available() {
		t.Error("Noop should not be available")
	}
	if _, err := g.Generate(context.Background(), "x"); !errors.Is(err, errors.ErrGeneratorUnavailable) {
		t.Errorf("Generate error = %v, want ErrGeneratorUnavailable", err)
	}
	if _, ok := OrNoop(nil).(Noop); !ok {
		t.Error("OrNoop(nil) should return Noop")
	}
}

func TestFakeGenerator(t *testing.T) {
	f := &FakeGenerator{
		Responses: map[string]string{"Bottleneck Type: aging_task": `[{"title":"a"}]`},
		Default:   "[]",
	}
	ctx := context.Background()

	got, err := f.Generate(ctx, RecommendationPrompt(RecommendationRequest{BottleneckType: "aging_task"}))
	if err != nil || got != `[{"title":"a"}]` {
		t.Errorf("Generate = %q, %v", got, err)
	}
	got, err = f.Generate(ctx, "other")
	if err != nil || got != "[]" {
		t.Errorf("Generate default = %q, %v", got, err)
	}
	if n := len(f.Prompts()); n != 2 {
		t.Errorf("recorded %d prompts, want 2", n)
	}

	failing := &FakeGenerator{Err: errors.ErrTimeout}
	if _, err := failing.Generate(ctx, "x"); !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestCachedGenerator(t *testing.T) {
	f := &FakeGenerator{Default: "out"}
	c, err := NewCachedGenerator(f, 2)
	if err != nil {
		t.Fatalf("NewCachedGenerator: %v", err)
	}
	ctx := context.Background()

	for range 3 {
		if out, err := c.Generate(ctx, "same"); err != nil || out != "out" {
			t.Fatalf("Generate = %q, %v", out, err)
		}
	}
	if n := len(f.Prompts()); n != 1 {
		t.Errorf("inner called %d times, want 1", n)
	}
	if c.Name() != "fake" || !c.Available() {
		t.Errorf("Name/Available not delegated")
	}

	f.Err = errors.ErrTimeout
	if _, err := c.Generate(ctx, "new"); err == nil {
		t.Error("expected error from inner generator")
	}
	if c.Len() != 1 {
		t.Errorf("errors should not be cached, len = %d", c.Len())
	}
}

func TestExtractArray(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"plain array", `[{"title":"a"},{"title":"b"}]`, 2},
		{"fenced", "```json\n[{\"title\":\"a\"}]\n```", 1},
		{"prose around", `Here you go: [{"title":"a"}] hope it helps`, 1},
		{"single object", `{"title":"a"}`, 1},
		{"empty", "", 0},
		{"garbage", "no json here", 0},
		{"broken", `[{"title":`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractArray(tt.raw); len(got) != tt.want {
				t.Errorf("ExtractArray(%q) returned %d items, want %d", tt.raw, len(got), tt.want)
			}
		})
	}
}

func TestPrompts(t *testing.T) {
	p := TextToRowsPrompt("ana is blocked on the migration")
	if !strings.Contains(p, "TEXT:\nana is blocked on the migration") {
		t.Errorf("text prompt missing input: %q", p)
	}

	r := RecommendationPrompt(RecommendationRequest{
		Title:          "Migrate DB",
		Owner:          "ana",
		BottleneckType: "overloaded_owner",
		Reason:         "busy",
		Context:        []string{"Task: Migrate DB", "Effort: 5/5"},
	})
	for _, want := range []string{"Task: Migrate DB\nOwner: ana", "Bottleneck Type: overloaded_owner", "Context:\nTask: Migrate DB\nEffort: 5/5"} {
		if !strings.Contains(r, want) {
			t.Errorf("recommendation prompt missing %q", want)
		}
	}
}
