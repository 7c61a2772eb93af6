// Package report renders analysis results as markdown, CSV and styled
// terminal output. It only reads results; no score is recomputed here.
package report

import (
	"sort"

	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/task"
)

// Dashboard holds headline counts for a run.
type Dashboard struct {
	TotalTasks     int                   `json:"total_tasks"`
	Owners         []string              `json:"owners"`
	StatusCounts   map[task.Status]int   `json:"status_counts"`
	PriorityCounts map[task.Priority]int `json:"priority_counts"`
	Bottlenecks    int                   `json:"bottlenecks"`
	AtRisk         int                   `json:"at_risk"`
	Nodes          int                   `json:"nodes"`
	Edges          int                   `json:"edges"`
	Density        float64               `json:"density"`
}

// BuildDashboard aggregates the headline counts of res.
func BuildDashboard(res *pipeline.Result) Dashboard {
	d := Dashboard{
		StatusCounts:   make(map[task.Status]int),
		PriorityCounts: make(map[task.Priority]int),
	}
	if res == nil {
		return d
	}

	d.TotalTasks = len(res.Tasks)
	for _, t := range res.Tasks {
		d.StatusCounts[t.Status]++
		d.PriorityCounts[t.Priority]++
	}
	d.Owners = res.Owners()
	sort.Strings(d.Owners)
	d.Bottlenecks = len(res.Bottlenecks)
	d.AtRisk = len(res.Risks)
	if res.Metrics != nil {
		d.Nodes = res.Metrics.Basic.NumNodes
		d.Edges = res.Metrics.Basic.NumEdges
		d.Density = res.Metrics.Basic.Density
	}
	return d
}

// share returns count/total, or 0 when total is 0.
func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}
