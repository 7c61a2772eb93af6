package graph

import (
	"fmt"
	"sort"
	"time"

	"github.com/opspilot/opspilot/internal/task"
)

// Load score weights per owner counter.
const (
	weightInProgress   = 2.0
	weightBlocked      = 1.5
	weightHighPriority = 1.5
	weightHighEffort   = 1.2
	weightDueSoon      = 1.0
	weightOverdue      = 2.0
)

const (
	highEffort          = 4
	criticalPathLimit   = 5
	criticalPathMinimum = 0.1
)

// Metric group names, as used in persisted metric rows.
const (
	GroupBasic        = "basic"
	GroupCentrality   = "centrality"
	GroupOwnerLoad    = "owner_load"
	GroupAging        = "aging"
	GroupDependencies = "dependencies"
)

// Metrics is the read-only bundle derived from a graph. Every group is
// present; a group whose computation failed is left at its zero value and
// named in Degraded.
type Metrics struct {
	Basic        Basic        `json:"basic"`
	Centrality   Centrality   `json:"centrality"`
	OwnerLoad    OwnerLoad    `json:"owner_load"`
	Aging        Aging        `json:"aging"`
	Dependencies Dependencies `json:"dependencies"`
	Degraded     []string     `json:"degraded,omitempty"`
}

// Basic holds whole-graph structure measurements.
type Basic struct {
	NumNodes      int     `json:"num_nodes"`
	NumEdges      int     `json:"num_edges"`
	Density       float64 `json:"density"`
	IsConnected   bool    `json:"is_connected"`
	NumComponents int     `json:"num_components"`
	AvgClustering float64 `json:"avg_clustering"`
}

// Centrality holds per-node importance measurements.
type Centrality struct {
	Betweenness   map[string]float64 `json:"betweenness"`
	InDegree      map[string]int     `json:"in_degree"`
	OutDegree     map[string]int     `json:"out_degree"`
	InDegreeNorm  map[string]float64 `json:"in_degree_norm"`
	OutDegreeNorm map[string]float64 `json:"out_degree_norm"`
	PageRank      map[string]float64 `json:"pagerank"`
}

// OwnerStats counts one owner's tasks by condition.
type OwnerStats struct {
	TotalTasks   int      `json:"total_tasks"`
	InProgress   int      `json:"in_progress"`
	Blocked      int      `json:"blocked"`
	HighPriority int      `json:"high_priority"`
	HighEffort   int      `json:"high_effort"`
	DueSoon      int      `json:"due_soon"`
	Overdue      int      `json:"overdue"`
	TaskIDs      []string `json:"task_ids"`
}

// LoadScore is the weighted overload proxy for the counters.
func (s OwnerStats) LoadScore() float64 {
	return weightInProgress*float64(s.InProgress) +
		weightBlocked*float64(s.Blocked) +
		weightHighPriority*float64(s.HighPriority) +
		weightHighEffort*float64(s.HighEffort) +
		weightDueSoon*float64(s.DueSoon) +
		weightOverdue*float64(s.Overdue)
}

// OwnerLoad holds per-owner workload. Owners lists owners in order of first
// appearance.
type OwnerLoad struct {
	Owners     []string              `json:"owners"`
	Stats      map[string]OwnerStats `json:"owner_stats"`
	LoadScores map[string]float64    `json:"load_scores"`
	MaxLoad    float64               `json:"max_load"`
	AvgLoad    float64               `json:"avg_load"`
}

// AgingTask is an in-progress task past the aging threshold.
type AgingTask struct {
	TaskID         string        `json:"task_id"`
	Title          string        `json:"title"`
	Owner          string        `json:"owner"`
	DaysInProgress int           `json:"days_in_progress"`
	Priority       task.Priority `json:"priority"`
	Effort         int           `json:"effort"`
}

// Aging holds elapsed-time measurements for in-progress work.
type Aging struct {
	Tasks         []AgingTask             `json:"aging_tasks"`
	NumAging      int                     `json:"num_aging"`
	AvgCycleTimes map[task.Status]float64 `json:"avg_cycle_times"`
	Threshold     int                     `json:"aging_threshold"`
}

// IsAging reports whether id is flagged as aging.
func (a Aging) IsAging(id string) bool {
	for _, t := range a.Tasks {
		if t.TaskID == id {
			return true
		}
	}
	return false
}

// NodeScore pairs a task with a score.
type NodeScore struct {
	TaskID string  `json:"task_id"`
	Score  float64 `json:"score"`
}

// Dependencies holds dependency structure measurements. Depth is the
// ancestor count of a node, not a longest-path length.
type Dependencies struct {
	Depths        map[string]int `json:"depths"`
	MaxDepth      int            `json:"max_depth"`
	AvgDepth      float64        `json:"avg_depth"`
	CriticalPaths []NodeScore    `json:"critical_paths"`
	FanIn         map[string]int `json:"fan_in"`
	FanOut        map[string]int `json:"fan_out"`
	MaxFanIn      int            `json:"max_fan_in"`
	MaxFanOut     int            `json:"max_fan_out"`
}

// ComputeMetrics derives the metrics bundle for g. now anchors every date
// calculation, so the result is a pure function of its arguments.
func ComputeMetrics(g *Graph, tasks []task.Task, settings task.Settings, now time.Time) *Metrics {
	m := &Metrics{}
	if g == nil || g.NodeCount() == 0 {
		return m
	}
	today := task.Today(now)

	m.guard(GroupBasic, func() { m.Basic = computeBasic(g) })
	m.guard(GroupCentrality, func() { m.Centrality = computeCentrality(g) })
	m.guard(GroupOwnerLoad, func() { m.OwnerLoad = computeOwnerLoad(tasks, settings, today) })
	m.guard(GroupAging, func() { m.Aging = computeAging(tasks, settings, today) })
	m.guard(GroupDependencies, func() { m.Dependencies = computeDependencies(g, m.Centrality.Betweenness) })
	return m
}

func (m *Metrics) guard(group string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.Degraded = append(m.Degraded, fmt.Sprintf("%s: %v", group, r))
		}
	}()
	fn()
}

func computeBasic(g *Graph) Basic {
	return Basic{
		NumNodes:      g.NodeCount(),
		NumEdges:      g.EdgeCount(),
		Density:       g.Density(),
		IsConnected:   g.IsWeaklyConnected(),
		NumComponents: g.WeakComponents(),
		AvgClustering: g.AverageClustering(),
	}
}

func computeCentrality(g *Graph) Centrality {
	c := Centrality{
		Betweenness:   g.Betweenness(),
		InDegree:      make(map[string]int, g.NodeCount()),
		OutDegree:     make(map[string]int, g.NodeCount()),
		InDegreeNorm:  make(map[string]float64, g.NodeCount()),
		OutDegreeNorm: make(map[string]float64, g.NodeCount()),
	}

	maxIn, maxOut := 0, 0
	for _, id := range g.order {
		c.InDegree[id] = g.InDegree(id)
		c.OutDegree[id] = g.OutDegree(id)
		maxIn = max(maxIn, c.InDegree[id])
		maxOut = max(maxOut, c.OutDegree[id])
	}
	for _, id := range g.order {
		c.InDegreeNorm[id] = ratio(c.InDegree[id], maxIn)
		c.OutDegreeNorm[id] = ratio(c.OutDegree[id], maxOut)
	}

	// PageRank is zero for every node of an edgeless graph.
	if pr, ok := g.PageRank(pageRankAlpha); ok && g.EdgeCount() > 0 {
		c.PageRank = pr
	} else {
		c.PageRank = make(map[string]float64, g.NodeCount())
		for _, id := range g.order {
			c.PageRank[id] = 0
		}
	}
	return c
}

func ratio(v, maxV int) float64 {
	if maxV == 0 {
		return 0
	}
	return float64(v) / float64(maxV)
}

func computeOwnerLoad(tasks []task.Task, settings task.Settings, today time.Time) OwnerLoad {
	ol := OwnerLoad{
		Stats:      make(map[string]OwnerStats),
		LoadScores: make(map[string]float64),
	}

	for _, t := range tasks {
		st, seen := ol.Stats[t.Owner]
		if !seen {
			ol.Owners = append(ol.Owners, t.Owner)
		}
		st.TotalTasks++
		st.TaskIDs = append(st.TaskIDs, t.ID)
		switch t.Status {
		case task.StatusInProgress:
			st.InProgress++
		case task.StatusBlocked:
			st.Blocked++
		}
		if t.Priority == task.PriorityHigh {
			st.HighPriority++
		}
		if t.Effort >= highEffort {
			st.HighEffort++
		}
		if due, ok := task.ParseDate(t.DueDate); ok {
			days := task.DaysBetween(today, due)
			switch {
			case days < 0:
				st.Overdue++
			case days <= settings.DueSoonDays:
				st.DueSoon++
			}
		}
		ol.Stats[t.Owner] = st
	}

	total := 0.0
	for _, owner := range ol.Owners {
		score := ol.Stats[owner].LoadScore()
		ol.LoadScores[owner] = score
		ol.MaxLoad = max(ol.MaxLoad, score)
		total += score
	}
	if len(ol.Owners) > 0 {
		ol.AvgLoad = total / float64(len(ol.Owners))
	}
	return ol
}

func computeAging(tasks []task.Task, settings task.Settings, today time.Time) Aging {
	a := Aging{
		AvgCycleTimes: make(map[task.Status]float64),
		Threshold:     settings.AgingThreshold,
	}

	durations := make(map[task.Status][]int)
	for _, t := range tasks {
		if t.Status != task.StatusInProgress {
			continue
		}
		start, ok := task.ParseDate(t.StartDate)
		if !ok {
			continue
		}
		days := task.DaysBetween(start, today)
		if days > settings.AgingThreshold {
			a.Tasks = append(a.Tasks, AgingTask{
				TaskID:         t.ID,
				Title:          t.Title,
				Owner:          t.Owner,
				DaysInProgress: days,
				Priority:       t.Priority,
				Effort:         t.Effort,
			})
		}
		durations[t.Status] = append(durations[t.Status], days)
	}
	a.NumAging = len(a.Tasks)

	for status, ds := range durations {
		sum := 0
		for _, d := range ds {
			sum += d
		}
		a.AvgCycleTimes[status] = float64(sum) / float64(len(ds))
	}
	return a
}

func computeDependencies(g *Graph, betweenness map[string]float64) Dependencies {
	d := Dependencies{
		Depths: make(map[string]int, g.NodeCount()),
		FanIn:  make(map[string]int, g.NodeCount()),
		FanOut: make(map[string]int, g.NodeCount()),
	}

	total := 0
	for _, id := range g.order {
		depth := len(g.Ancestors(id))
		d.Depths[id] = depth
		d.MaxDepth = max(d.MaxDepth, depth)
		total += depth

		d.FanIn[id] = g.InDegree(id)
		d.FanOut[id] = g.OutDegree(id)
		d.MaxFanIn = max(d.MaxFanIn, d.FanIn[id])
		d.MaxFanOut = max(d.MaxFanOut, d.FanOut[id])
	}
	d.AvgDepth = float64(total) / float64(g.NodeCount())

	if betweenness == nil {
		betweenness = g.Betweenness()
	}
	for _, id := range g.order {
		if score := betweenness[id]; score > criticalPathMinimum {
			d.CriticalPaths = append(d.CriticalPaths, NodeScore{TaskID: id, Score: score})
		}
	}
	sort.SliceStable(d.CriticalPaths, func(i, j int) bool {
		return d.CriticalPaths[i].Score > d.CriticalPaths[j].Score
	})
	if len(d.CriticalPaths) > criticalPathLimit {
		d.CriticalPaths = d.CriticalPaths[:criticalPathLimit]
	}
	return d
}
