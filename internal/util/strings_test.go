package util

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string unchanged", input: "Deploy", maxLen: 10, expected: "Deploy"},
		{name: "exact length unchanged", input: "Deploy", maxLen: 6, expected: "Deploy"},
		{name: "long title truncated", input: "Migrate billing database", maxLen: 10, expected: "Migrate..."},
		{name: "tiny width returns ellipsis", input: "Deploy", maxLen: 3, expected: "..."},
		{name: "multibyte runes counted once", input: "日本語のタスク名", maxLen: 5, expected: "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("Overloaded owner on checkout")

	got := TruncateANSI(styled, 12)
	if w := lipgloss.Width(got); w > 12 {
		t.Errorf("width = %d, want <= 12", w)
	}
	if !strings.HasSuffix(stripANSI(got), "...") {
		t.Errorf("truncated text %q should end with ellipsis", stripANSI(got))
	}
	if got := TruncateANSI(styled, 100); got != styled {
		t.Error("short styled text should be unchanged")
	}
	if got := TruncateANSI(styled, 2); got != "..." {
		t.Errorf("TruncateANSI(_, 2) = %q", got)
	}
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEscape = false
		case !inEscape:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func TestHumanize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"overloaded_owner", "Overloaded Owner"},
		{"in_progress", "In Progress"},
		{"done", "Done"},
		{"", ""},
		{"_x__y_", "X Y"},
	}
	for _, tt := range tests {
		if got := Humanize(tt.in); got != tt.want {
			t.Errorf("Humanize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBar(t *testing.T) {
	tests := []struct {
		fraction float64
		width    int
		want     int
	}{
		{0.5, 20, 10},
		{1.0, 20, 20},
		{1.7, 10, 10},
		{-1, 10, 0},
		{0.5, 0, 0},
	}
	for _, tt := range tests {
		if got := len([]rune(Bar(tt.fraction, tt.width))); got != tt.want {
			t.Errorf("Bar(%v, %d) has %d cells, want %d", tt.fraction, tt.width, got, tt.want)
		}
	}
}
