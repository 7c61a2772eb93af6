package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/util"
)

const (
	defaultWidth   = 100
	terminalTopN   = 5
	minColumnWidth = 12
)

// TerminalOptions controls console rendering.
type TerminalOptions struct {
	// Width is the terminal width in columns. Zero selects 100.
	Width int
	// Plain disables colors and borders, for pipes and files.
	Plain bool
}

// Terminal renders a compact console summary of res.
func Terminal(res *pipeline.Result, opts TerminalOptions) string {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	render := func(s lipgloss.Style, text string) string {
		if opts.Plain {
			return text
		}
		return s.Render(text)
	}

	d := BuildDashboard(res)
	var b strings.Builder

	b.WriteString(render(titleStyle, "OpsPilot analysis "+res.RunID))
	b.WriteString("\n")
	summary := fmt.Sprintf("%d tasks · %d owners · %d dependencies · %d bottlenecks · %d at risk",
		d.TotalTasks, len(d.Owners), d.Edges, d.Bottlenecks, d.AtRisk)
	if opts.Plain {
		b.WriteString(util.TruncateString(summary, width))
	} else {
		b.WriteString(boxStyle.Render(util.TruncateANSI(summary, width-4)))
	}
	b.WriteString("\n")
	if len(res.Degraded) > 0 {
		b.WriteString(render(levelStyle("High"), "degraded stages: "+strings.Join(res.Degraded, ", ")))
		b.WriteString("\n")
	}

	titleWidth := max(minColumnWidth, width-40)

	b.WriteString("\n" + render(headingStyle, "Top bottlenecks") + "\n")
	if len(res.Bottlenecks) == 0 {
		b.WriteString(render(mutedStyle, "  none") + "\n")
	}
	for _, bn := range res.Bottlenecks[:min(len(res.Bottlenecks), terminalTopN)] {
		line := fmt.Sprintf("  %s  %-22s %s (%s)",
			render(scoreStyle(bn.Score), fmt.Sprintf("%.2f", bn.Score)),
			bn.Type.Label(), bn.Title, bn.Owner)
		b.WriteString(util.TruncateANSI(line, width) + "\n")
	}

	b.WriteString("\n" + render(headingStyle, "Top risks") + "\n")
	if len(res.Risks) == 0 {
		b.WriteString(render(mutedStyle, "  none") + "\n")
	}
	for _, r := range res.Risks[:min(len(res.Risks), terminalTopN)] {
		level := fmt.Sprintf("%-8s", r.Level)
		line := fmt.Sprintf("  %s %.2f  %s", render(levelStyle(string(r.Level)), level), r.Score,
			util.TruncateString(r.Title, titleWidth))
		b.WriteString(util.TruncateANSI(line, width) + "\n")
		if len(r.Reasons) > 0 {
			reasons := "      " + strings.Join(r.Reasons, "; ")
			b.WriteString(render(mutedStyle, util.TruncateString(reasons, width)) + "\n")
		}
	}

	b.WriteString("\n" + render(headingStyle, "Recommended actions") + "\n")
	if len(res.Recommendations) == 0 {
		b.WriteString(render(mutedStyle, "  none") + "\n")
	}
	for _, g := range res.Recommendations[:min(len(res.Recommendations), terminalTopN)] {
		b.WriteString(util.TruncateANSI(fmt.Sprintf("  %s [%s]", g.Title, g.BottleneckType.Label()), width) + "\n")
		for _, rec := range g.Recommendations {
			b.WriteString(util.TruncateANSI(fmt.Sprintf("    - %s (%s)", rec.Title, rec.Priority), width) + "\n")
		}
	}
	return b.String()
}
