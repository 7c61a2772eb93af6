package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/recommend"
	"github.com/opspilot/opspilot/internal/task"
	"github.com/opspilot/opspilot/internal/util"
)

// Section limits.
const (
	TopBottlenecks      = 10
	TopRisks            = 10
	TopRecommendations  = 5
	TopCentralTasks     = 5
	distributionBarSize = 20
)

// Markdown renders the full report for res.
func Markdown(res *pipeline.Result) string {
	sections := []string{
		header(res),
		DashboardSection(res),
		BottlenecksSection(res.Bottlenecks, res.BottleneckSummary),
		RecommendationsSection(res.Recommendations, res.RecommendationSummary),
		RisksSection(res.Risks, res.RiskSummary),
		GraphSection(res.Metrics),
	}
	if len(res.Degraded) > 0 {
		sections = append(sections, fmt.Sprintf("## Notes\n\nThe following stages failed and report no results: %s.\n",
			strings.Join(res.Degraded, ", ")))
	}
	return strings.Join(sections, "\n\n")
}

func header(res *pipeline.Result) string {
	return fmt.Sprintf("# OpsPilot Analysis Report\nGenerated: %s\nRun: %s\n\n---\n",
		res.Timestamp.Format("2006-01-02 15:04:05"), res.RunID)
}

// DashboardSection renders headline metrics and distributions.
func DashboardSection(res *pipeline.Result) string {
	if len(res.Tasks) == 0 {
		return "## Dashboard\n\nNo data available for dashboard."
	}
	d := BuildDashboard(res)

	var b strings.Builder
	b.WriteString("## Dashboard\n\n### Key Metrics\n")
	fmt.Fprintf(&b, "- **Total Tasks**: %d\n", d.TotalTasks)
	fmt.Fprintf(&b, "- **Team Members**: %d\n", len(d.Owners))
	fmt.Fprintf(&b, "- **Bottlenecks Detected**: %d\n", d.Bottlenecks)
	fmt.Fprintf(&b, "- **At-Risk Tasks**: %d\n", d.AtRisk)

	b.WriteString("\n### Task Status Distribution\n")
	statuses := []task.Status{task.StatusBlocked, task.StatusDone, task.StatusInProgress, task.StatusTodo}
	for _, s := range statuses {
		if n := d.StatusCounts[s]; n > 0 {
			writeDistribution(&b, string(s), n, d.TotalTasks)
		}
	}

	b.WriteString("\n### Priority Distribution\n")
	for _, p := range []task.Priority{task.PriorityHigh, task.PriorityLow, task.PriorityMed} {
		if n := d.PriorityCounts[p]; n > 0 {
			writeDistribution(&b, string(p), n, d.TotalTasks)
		}
	}

	b.WriteString("\n### Workflow Graph\n")
	fmt.Fprintf(&b, "- **Nodes**: %d\n", d.Nodes)
	fmt.Fprintf(&b, "- **Dependencies**: %d\n", d.Edges)
	fmt.Fprintf(&b, "- **Density**: %.3f\n", d.Density)

	b.WriteString("\n### Team Members\n")
	b.WriteString(strings.Join(d.Owners, ", "))
	b.WriteString("\n")
	return b.String()
}

func writeDistribution(b *strings.Builder, label string, n, total int) {
	frac := share(n, total)
	fmt.Fprintf(b, "- **%s**: %d (%.1f%%) %s\n", util.Humanize(label), n, frac*100, util.Bar(frac, distributionBarSize))
}

// BottlenecksSection renders the bottleneck summary and the top entries.
func BottlenecksSection(bs []detector.Bottleneck, s detector.Summary) string {
	if len(bs) == 0 {
		return "## Bottlenecks\n\nNo bottlenecks detected."
	}

	var b strings.Builder
	b.WriteString("## Bottlenecks\n\n### Summary\n")
	fmt.Fprintf(&b, "- **Total Bottlenecks**: %d\n", s.Total)
	fmt.Fprintf(&b, "- **High Priority**: %d\n", s.HighPriorityCount)
	fmt.Fprintf(&b, "- **Average Score**: %.2f\n", s.AvgScore)

	b.WriteString("\n### Bottleneck Types\n")
	for _, typ := range detector.Types() {
		if n := s.ByType[typ]; n > 0 {
			fmt.Fprintf(&b, "- **%s**: %d\n", typ.Label(), n)
		}
	}

	b.WriteString("\n### Detailed Bottlenecks\n\n")
	for i, bn := range bs[:min(len(bs), TopBottlenecks)] {
		fmt.Fprintf(&b, "#### %d. %s\n", i+1, bn.Title)
		fmt.Fprintf(&b, "- **Task ID**: %s\n", bn.TaskID)
		fmt.Fprintf(&b, "- **Owner**: %s\n", bn.Owner)
		fmt.Fprintf(&b, "- **Type**: %s\n", bn.Type.Label())
		fmt.Fprintf(&b, "- **Score**: %.2f\n", bn.Score)
		fmt.Fprintf(&b, "- **Reason**: %s\n\n", bn.Reason)
	}
	if len(bs) > TopBottlenecks {
		fmt.Fprintf(&b, "... and %d more bottlenecks\n", len(bs)-TopBottlenecks)
	}
	return b.String()
}

// RecommendationsSection renders the first recommendation groups.
func RecommendationsSection(groups []recommend.Group, s recommend.Summary) string {
	if len(groups) == 0 {
		return "## Recommendations\n\nNo recommendations available."
	}

	var b strings.Builder
	b.WriteString("## Recommendations\n\n### Summary\n")
	fmt.Fprintf(&b, "- **Total Recommendations**: %d\n", s.Total)
	fmt.Fprintf(&b, "- **Average Priority**: %.2f\n", s.AvgPriorityScore)

	b.WriteString("\n### Recommendation Types\n")
	for _, typ := range recommend.Types() {
		if n := s.ByType[typ]; n > 0 {
			fmt.Fprintf(&b, "- **%s**: %d\n", util.Humanize(string(typ)), n)
		}
	}

	b.WriteString("\n### Detailed Recommendations\n\n")
	for _, g := range groups[:min(len(groups), TopRecommendations)] {
		fmt.Fprintf(&b, "#### %s\n", g.Title)
		fmt.Fprintf(&b, "- **Task ID**: %s\n", g.TaskID)
		fmt.Fprintf(&b, "- **Owner**: %s\n", g.Owner)
		fmt.Fprintf(&b, "- **Bottleneck Type**: %s\n", g.BottleneckType.Label())
		fmt.Fprintf(&b, "- **Bottleneck Score**: %.2f\n\n", g.BottleneckScore)
		b.WriteString("**Recommendations:**\n")
		for j, r := range g.Recommendations {
			fmt.Fprintf(&b, "%d. **%s**\n", j+1, r.Title)
			fmt.Fprintf(&b, "   - *Rationale*: %s\n", r.Rationale)
			fmt.Fprintf(&b, "   - *Expected Effect*: %s\n", r.ExpectedEffect)
			fmt.Fprintf(&b, "   - *Priority*: %s\n\n", r.Priority)
		}
	}
	return b.String()
}

// RisksSection renders the risk summary and the riskiest tasks.
func RisksSection(risks []forecast.Risk, s forecast.Summary) string {
	if len(risks) == 0 {
		return "## At-Risk Tasks\n\nNo at-risk tasks identified."
	}

	var b strings.Builder
	b.WriteString("## At-Risk Tasks\n\n### Summary\n")
	fmt.Fprintf(&b, "- **Total At-Risk Tasks**: %d\n", s.Total)
	fmt.Fprintf(&b, "- **Critical Risk**: %d\n", s.CriticalCount)
	fmt.Fprintf(&b, "- **Average Risk Score**: %.2f\n", s.AvgScore)

	b.WriteString("\n### Risk Levels\n")
	for _, lvl := range forecast.Levels() {
		if n := s.ByLevel[lvl]; n > 0 {
			fmt.Fprintf(&b, "- **%s**: %d\n", lvl, n)
		}
	}

	b.WriteString("\n### Detailed Risk Analysis\n\n")
	for i, r := range risks[:min(len(risks), TopRisks)] {
		due := r.DueDate
		if due == "" {
			due = "Not set"
		}
		fmt.Fprintf(&b, "#### %d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "- **Task ID**: %s\n", r.TaskID)
		fmt.Fprintf(&b, "- **Owner**: %s\n", r.Owner)
		fmt.Fprintf(&b, "- **Status**: %s\n", r.Status)
		fmt.Fprintf(&b, "- **Risk Level**: %s\n", r.Level)
		fmt.Fprintf(&b, "- **Risk Score**: %.2f\n", r.Score)
		fmt.Fprintf(&b, "- **Due Date**: %s\n\n", due)
		b.WriteString("**Risk Factors:**\n")
		for _, reason := range r.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
		b.WriteString("\n")
	}
	if len(risks) > TopRisks {
		fmt.Fprintf(&b, "... and %d more at-risk tasks\n", len(risks)-TopRisks)
	}
	return b.String()
}

// GraphSection renders graph structure, the most central tasks and owner
// workload.
func GraphSection(m *graph.Metrics) string {
	if m == nil || m.Basic.NumNodes == 0 {
		return "## Graph View\n\nNo graph data available."
	}

	var b strings.Builder
	b.WriteString("## Graph View\n\n### Graph Structure\n")
	fmt.Fprintf(&b, "- **Nodes (Tasks)**: %d\n", m.Basic.NumNodes)
	fmt.Fprintf(&b, "- **Edges (Dependencies)**: %d\n", m.Basic.NumEdges)
	fmt.Fprintf(&b, "- **Max Dependency Depth**: %d\n", m.Dependencies.MaxDepth)
	fmt.Fprintf(&b, "- **Average Dependency Depth**: %.1f\n", m.Dependencies.AvgDepth)

	b.WriteString("\n### Most Central Tasks\n")
	for i, ns := range TopCentral(m, TopCentralTasks) {
		fmt.Fprintf(&b, "%d. **%s** (centrality: %.3f)\n", i+1, ns.TaskID, ns.Score)
	}

	if loads := OwnersByLoad(m); len(loads) > 0 {
		b.WriteString("\n### Owner Workload\n")
		for _, ol := range loads {
			fmt.Fprintf(&b, "- **%s**: %.2f\n", ol.Owner, ol.Load)
		}
	}
	return b.String()
}

// TopCentral returns the n tasks with the highest betweenness, ties broken
// by task ID.
func TopCentral(m *graph.Metrics, n int) []graph.NodeScore {
	scores := make([]graph.NodeScore, 0, len(m.Centrality.Betweenness))
	for id, s := range m.Centrality.Betweenness {
		scores = append(scores, graph.NodeScore{TaskID: id, Score: s})
	}
	sortScores(scores)
	return scores[:min(len(scores), n)]
}

// OwnerScore pairs an owner with a load score.
type OwnerScore struct {
	Owner string
	Load  float64
}

// OwnersByLoad returns owners with their load scores, heaviest first.
func OwnersByLoad(m *graph.Metrics) []OwnerScore {
	out := make([]OwnerScore, 0, len(m.OwnerLoad.LoadScores))
	for owner, load := range m.OwnerLoad.LoadScores {
		out = append(out, OwnerScore{owner, load})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Load != out[j].Load {
			return out[i].Load > out[j].Load
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

func sortScores(scores []graph.NodeScore) {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].TaskID < scores[j].TaskID
	})
}
