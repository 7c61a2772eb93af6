package report

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#A78BFA")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#F87171")
	okColor      = lipgloss.Color("#10B981")
	mutedColor   = lipgloss.Color("#9CA3AF")
	borderColor  = lipgloss.Color("#6B7280")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)
)

// levelStyle colors a risk level.
func levelStyle(level string) lipgloss.Style {
	switch level {
	case "Critical":
		return lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	case "High":
		return lipgloss.NewStyle().Foreground(errorColor)
	case "Medium":
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(okColor)
	}
}

// scoreStyle colors a 0..1 score.
func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 0.8:
		return lipgloss.NewStyle().Foreground(errorColor)
	case score >= 0.5:
		return lipgloss.NewStyle().Foreground(warningColor)
	default:
		return lipgloss.NewStyle().Foreground(okColor)
	}
}
