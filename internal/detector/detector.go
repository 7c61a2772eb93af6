// Package detector finds workflow bottlenecks by running six independent
// heuristics over a dependency graph and its metrics bundle.
package detector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/task"
)

const (
	betweennessCutoff   = 0.7
	overloadAvgFactor   = 1.5
	overloadMaxFactor   = 0.7
	overloadMinScore    = 0.3
	chokepointMinFanIn  = 2.0
	chokepointFanFactor = 0.6
	criticalPathLimit   = 5
	cycleScore          = 0.8
)

// Detect runs every heuristic and returns the merged hits sorted by score,
// highest first. Ties keep heuristic order then node order.
func Detect(g *graph.Graph, tasks []task.Task, m *graph.Metrics, settings task.Settings) []Bottleneck {
	if g == nil || g.NodeCount() == 0 || m == nil {
		return []Bottleneck{}
	}

	var out []Bottleneck
	out = append(out, highBetweenness(g, m)...)
	out = append(out, overloadedOwners(g, m)...)
	out = append(out, agingTasks(m, settings)...)
	out = append(out, chokepoints(g, m)...)
	out = append(out, criticalPath(g, m)...)
	out = append(out, circular(g)...)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if out == nil {
		out = []Bottleneck{}
	}
	return out
}

func newBottleneck(t task.Task, typ Type, score float64, reason string) Bottleneck {
	return Bottleneck{
		TaskID: t.ID,
		Title:  t.Title,
		Owner:  t.Owner,
		Type:   typ,
		Score:  score,
		Reason: reason,
	}
}

func highBetweenness(g *graph.Graph, m *graph.Metrics) []Bottleneck {
	bc := m.Centrality.Betweenness
	maxBC := 0.0
	for _, v := range bc {
		maxBC = max(maxBC, v)
	}
	if maxBC <= 0 {
		return nil
	}

	threshold := maxBC * betweennessCutoff
	var out []Bottleneck
	for _, id := range g.Nodes() {
		score, ok := bc[id]
		if !ok || score < threshold {
			continue
		}
		t, ok := g.Task(id)
		if !ok {
			continue
		}
		normalized := score / maxBC
		b := newBottleneck(t, TypeHighBetweenness, normalized,
			fmt.Sprintf("High betweenness centrality (%.3f) - many paths flow through this task", score))
		b.Centrality = &CentralityDetails{
			Betweenness:     score,
			NormalizedScore: normalized,
			Predecessors:    g.Predecessors(id),
			Successors:      g.Successors(id),
		}
		out = append(out, b)
	}
	return out
}

func overloadedOwners(g *graph.Graph, m *graph.Metrics) []Bottleneck {
	ol := m.OwnerLoad
	if len(ol.LoadScores) == 0 {
		return nil
	}

	threshold := max(ol.AvgLoad*overloadAvgFactor, ol.MaxLoad*overloadMaxFactor)
	var out []Bottleneck
	for _, owner := range ol.Owners {
		load := ol.LoadScores[owner]
		if load < threshold {
			continue
		}
		for _, id := range g.Nodes() {
			t, _ := g.Task(id)
			if t.Owner != owner {
				continue
			}
			score := overloadScore(t, load, ol.MaxLoad)
			if score <= overloadMinScore {
				continue
			}
			b := newBottleneck(t, TypeOverloadedOwner, score,
				fmt.Sprintf("Owner %s is overloaded (load score: %.2f)", owner, load))
			b.Overload = &OverloadDetails{
				OwnerLoadScore: load,
				OwnerStats:     ol.Stats[owner],
				TaskPriority:   t.Priority,
				TaskEffort:     t.Effort,
				TaskStatus:     t.Status,
			}
			out = append(out, b)
		}
	}
	return out
}

// overloadScore is the share of an owner's overload attributed to one task.
func overloadScore(t task.Task, load, maxLoad float64) float64 {
	if maxLoad <= 0 {
		return 0
	}
	weight := task.PriorityWeight(t.Priority) * (float64(t.Effort) / task.MaxEffort) * task.StatusWeight(t.Status)
	return min(load/maxLoad*weight, 1.0)
}

// agingTasks scores aging work. The score is deliberately left uncapped, so
// a high priority, maximum effort task at the population maximum scores 1.5.
func agingTasks(m *graph.Metrics, settings task.Settings) []Bottleneck {
	aging := m.Aging.Tasks
	if len(aging) == 0 {
		return nil
	}

	maxDays := 0
	for _, a := range aging {
		maxDays = max(maxDays, a.DaysInProgress)
	}
	if maxDays <= 0 {
		maxDays = 1
	}

	out := make([]Bottleneck, 0, len(aging))
	for _, a := range aging {
		ratio := min(float64(a.DaysInProgress)/float64(maxDays), 1.0)
		score := ratio * task.PriorityWeight(a.Priority) * (float64(a.Effort) / task.MaxEffort)
		out = append(out, Bottleneck{
			TaskID: a.TaskID,
			Title:  a.Title,
			Owner:  a.Owner,
			Type:   TypeAgingTask,
			Score:  score,
			Reason: fmt.Sprintf("Task stuck in progress for %d days", a.DaysInProgress),
			Aging: &AgingDetails{
				DaysInProgress: a.DaysInProgress,
				Priority:       a.Priority,
				Effort:         a.Effort,
				Threshold:      settings.AgingThreshold,
			},
		})
	}
	return out
}

func chokepoints(g *graph.Graph, m *graph.Metrics) []Bottleneck {
	deps := m.Dependencies
	if len(deps.FanIn) == 0 || len(deps.FanOut) == 0 || deps.MaxFanIn == 0 {
		return nil
	}

	threshold := max(chokepointMinFanIn, chokepointFanFactor*float64(deps.MaxFanIn))
	var out []Bottleneck
	for _, id := range g.Nodes() {
		fanIn := deps.FanIn[id]
		if float64(fanIn) < threshold {
			continue
		}
		t, _ := g.Task(id)
		b := newBottleneck(t, TypeDependencyChokepoint, float64(fanIn)/float64(deps.MaxFanIn),
			fmt.Sprintf("High dependency fan-in (%d dependencies) creates chokepoint", fanIn))
		b.Chokepoint = &ChokepointDetails{
			FanIn:        fanIn,
			FanOut:       deps.FanOut[id],
			Dependencies: g.Predecessors(id),
			Dependents:   g.Successors(id),
		}
		out = append(out, b)
	}
	return out
}

func criticalPath(g *graph.Graph, m *graph.Metrics) []Bottleneck {
	paths := m.Dependencies.CriticalPaths
	if len(paths) > criticalPathLimit {
		paths = paths[:criticalPathLimit]
	}

	var out []Bottleneck
	for _, ns := range paths {
		t, ok := g.Task(ns.TaskID)
		if !ok {
			continue
		}
		b := newBottleneck(t, TypeCriticalPath, ns.Score,
			fmt.Sprintf("Task is on critical path (betweenness: %.3f)", ns.Score))
		b.Centrality = &CentralityDetails{
			Betweenness:  ns.Score,
			Predecessors: g.Predecessors(ns.TaskID),
			Successors:   g.Successors(ns.TaskID),
		}
		out = append(out, b)
	}
	return out
}

func circular(g *graph.Graph) []Bottleneck {
	var out []Bottleneck
	for _, cycle := range g.Cycles() {
		titles := make([]string, len(cycle))
		for i, id := range cycle {
			t, _ := g.Task(id)
			titles[i] = t.Title
		}
		reason := "Task is part of circular dependency chain: " + strings.Join(cycle, " -> ")
		for _, id := range cycle {
			t, _ := g.Task(id)
			b := newBottleneck(t, TypeCircularDependency, cycleScore, reason)
			b.Cycle = &CycleDetails{
				Members: append([]string(nil), cycle...),
				Titles:  titles,
			}
			out = append(out, b)
		}
	}
	return out
}
