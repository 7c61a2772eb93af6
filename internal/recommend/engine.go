// Package recommend turns detected bottlenecks into concrete remediation
// actions. Deterministic rules always run; an optional text generator may
// contribute extra candidates.
package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

const (
	unknownTitle = "Unknown Task"
	unknownOwner = "Unknown"

	// reassignRatio is the share of the current owner's load another owner
	// may carry and still be proposed as a reassignment target.
	reassignRatio = 0.7
	// busyOwnerTasks is the task count above which aging tasks suggest reassignment.
	busyOwnerTasks = 5
	// chokepointFanIn is the fan-in above which dependency reduction is proposed.
	chokepointFanIn = 3
)

// Engine produces recommendation groups.
type Engine struct {
	generator llm.Generator
	logger    *logging.Logger
}

// New creates an Engine. A nil generator is replaced by llm.Noop and a nil
// logger by a no-op logger.
func New(gen llm.Generator, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		generator: llm.OrNoop(gen),
		logger:    logger.WithComponent("recommend"),
	}
}

// input bundles the lookups shared by every rule.
type input struct {
	tasks      map[string]task.Task
	ownerTasks map[string]int
	metrics    *graph.Metrics
}

// Recommend returns one group per bottleneck, in bottleneck order.
func (e *Engine) Recommend(ctx context.Context, bottlenecks []detector.Bottleneck, g *graph.Graph, tasks []task.Task, m *graph.Metrics) []Group {
	groups := make([]Group, 0, len(bottlenecks))
	if len(bottlenecks) == 0 {
		return groups
	}
	if m == nil {
		m = &graph.Metrics{}
	}

	in := input{
		tasks:      make(map[string]task.Task, len(tasks)),
		ownerTasks: make(map[string]int),
		metrics:    m,
	}
	for _, t := range tasks {
		in.tasks[t.ID] = t
		in.ownerTasks[t.Owner]++
	}
	if g != nil {
		for _, id := range g.Nodes() {
			if t, ok := g.Task(id); ok {
				in.tasks[id] = t
			}
		}
	}

	for _, b := range bottlenecks {
		t, ok := in.tasks[b.TaskID]
		title, owner := unknownTitle, unknownOwner
		if ok {
			title, owner = t.Title, t.Owner
		}

		candidates := rules(b, t, in)
		candidates = append(candidates, e.generated(ctx, b, t, in)...)

		groups = append(groups, Group{
			TaskID:          b.TaskID,
			Title:           title,
			Owner:           owner,
			BottleneckType:  b.Type,
			BottleneckScore: b.Score,
			Recommendations: truncate(dedupe(candidates), MaxPerGroup),
		})
	}
	return groups
}

// rules applies the deterministic rule table for the bottleneck's type.
func rules(b detector.Bottleneck, t task.Task, in input) []Recommendation {
	switch b.Type {
	case detector.TypeOverloadedOwner:
		return overloadRules(t, in)
	case detector.TypeAgingTask:
		return agingRules(b, t, in)
	case detector.TypeDependencyChokepoint:
		return chokepointRules(b)
	case detector.TypeCriticalPath:
		return criticalPathRules()
	case detector.TypeCircularDependency:
		return cycleRules(b)
	}
	return nil
}

func overloadRules(t task.Task, in input) []Recommendation {
	var out []Recommendation

	ol := in.metrics.OwnerLoad
	current := ol.LoadScores[t.Owner]
	if target, load, ok := lightestOwner(ol, t.Owner, current); ok {
		out = append(out, Recommendation{
			Title:          "Reassign to " + target,
			Rationale:      fmt.Sprintf("Owner %s has lower workload (%.2f vs %.2f)", target, load, current),
			ExpectedEffect: "Reduces overload and balances workload",
			Type:           TypeReassign,
			Priority:       PriorityHigh,
		})
	}
	if t.Effort >= 4 {
		out = append(out, Recommendation{
			Title:          "Split task into subtasks",
			Rationale:      fmt.Sprintf("High effort task (%d/5) can be broken down", t.Effort),
			ExpectedEffect: "Reduces individual task complexity",
			Type:           TypeSplitTask,
			Priority:       PriorityMedium,
		})
	}
	if t.Priority == task.PriorityHigh {
		out = append(out, Recommendation{
			Title:          "Escalate to management",
			Rationale:      "High priority task needs management attention",
			ExpectedEffect: "Ensures proper resource allocation",
			Type:           TypeEscalate,
			Priority:       PriorityHigh,
		})
	}
	return out
}

// lightestOwner finds the lowest-loaded owner other than current whose load
// is at most reassignRatio of currentLoad. Ties go to the owner seen first.
func lightestOwner(ol graph.OwnerLoad, current string, currentLoad float64) (string, float64, bool) {
	if currentLoad <= 0 {
		return "", 0, false
	}
	best, bestLoad, found := "", 0.0, false
	for _, owner := range ol.Owners {
		if owner == current {
			continue
		}
		load := ol.LoadScores[owner]
		if load > currentLoad*reassignRatio {
			continue
		}
		if !found || load < bestLoad {
			best, bestLoad, found = owner, load, true
		}
	}
	return best, bestLoad, found
}

func agingRules(b detector.Bottleneck, t task.Task, in input) []Recommendation {
	var out []Recommendation
	if t.Status == task.StatusBlocked {
		out = append(out, Recommendation{
			Title:          "Identify and resolve blockers",
			Rationale:      "Task is blocked and needs unblocking",
			ExpectedEffect: "Removes impediments to progress",
			Type:           TypeEscalate,
			Priority:       PriorityHigh,
		})
	}
	if n := in.ownerTasks[t.Owner]; n > busyOwnerTasks {
		out = append(out, Recommendation{
			Title:          "Reassign to less busy owner",
			Rationale:      fmt.Sprintf("Owner has %d tasks, may be overloaded", n),
			ExpectedEffect: "Reduces individual owner workload",
			Type:           TypeReassign,
			Priority:       PriorityMedium,
		})
	}
	days := 0
	if b.Aging != nil {
		days = b.Aging.DaysInProgress
	}
	out = append(out, Recommendation{
		Title:          "Renegotiate deadline",
		Rationale:      fmt.Sprintf("Task has been in progress for %d days", days),
		ExpectedEffect: "Sets realistic expectations",
		Type:           TypeRenegotiateDeadline,
		Priority:       PriorityMedium,
	})
	return out
}

func chokepointRules(b detector.Bottleneck) []Recommendation {
	var out []Recommendation
	fanIn := 0
	if b.Chokepoint != nil {
		fanIn = b.Chokepoint.FanIn
	}
	if fanIn > chokepointFanIn {
		out = append(out, Recommendation{
			Title:          "Break down dependencies",
			Rationale:      fmt.Sprintf("Task has %d dependencies, creating chokepoint", fanIn),
			ExpectedEffect: "Reduces dependency complexity",
			Type:           TypeRemoveDependencies,
			Priority:       PriorityHigh,
		})
	}
	return append(out, Recommendation{
		Title:          "Increase priority",
		Rationale:      "Critical chokepoint task should be prioritized",
		ExpectedEffect: "Ensures timely completion of critical path",
		Type:           TypePrioritize,
		Priority:       PriorityHigh,
	})
}

func criticalPathRules() []Recommendation {
	return []Recommendation{
		{
			Title:          "Allocate dedicated resources",
			Rationale:      "Critical path task needs dedicated attention",
			ExpectedEffect: "Ensures timely completion of critical path",
			Type:           TypeAddResources,
			Priority:       PriorityHigh,
		},
		{
			Title:          "Implement daily check-ins",
			Rationale:      "Critical path requires close monitoring",
			ExpectedEffect: "Early detection of issues",
			Type:           TypeEscalate,
			Priority:       PriorityMedium,
		},
	}
}

func cycleRules(b detector.Bottleneck) []Recommendation {
	var members []string
	if b.Cycle != nil {
		members = b.Cycle.Members
	}
	return []Recommendation{
		{
			Title:          "Break circular dependency",
			Rationale:      "Task is part of circular dependency: " + strings.Join(members, " -> "),
			ExpectedEffect: "Eliminates blocking circular dependency",
			Type:           TypeRemoveDependencies,
			Priority:       PriorityHigh,
		},
		{
			Title:          "Redesign workflow",
			Rationale:      "Circular dependencies indicate workflow design issues",
			ExpectedEffect: "Creates more efficient workflow",
			Type:           TypeEscalate,
			Priority:       PriorityHigh,
		},
	}
}

// generated asks the generator for extra candidates. Any failure yields none.
func (e *Engine) generated(ctx context.Context, b detector.Bottleneck, t task.Task, in input) (out []Recommendation) {
	if !e.generator.Available() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("generator panicked", "task_id", b.TaskID, "panic", fmt.Sprint(r))
			out = nil
		}
	}()

	prompt := llm.RecommendationPrompt(llm.RecommendationRequest{
		Title:          orDefault(t.Title, unknownTitle),
		Owner:          orDefault(t.Owner, unknownOwner),
		BottleneckType: string(b.Type),
		Reason:         b.Reason,
		Context:        promptContext(b, t, in),
	})
	raw, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		e.logger.Debug("generator returned no recommendations",
			"task_id", b.TaskID, "generator", e.generator.Name(), "error", err)
		return nil
	}
	return parseGenerated(raw)
}

func promptContext(b detector.Bottleneck, t task.Task, in input) []string {
	lines := []string{
		"Task: " + orDefault(t.Title, "Unknown"),
		"Owner: " + orDefault(t.Owner, unknownOwner),
		"Status: " + orDefault(string(t.Status), "Unknown"),
		"Priority: " + orDefault(string(t.Priority), "Unknown"),
		fmt.Sprintf("Effort: %d/5", t.Effort),
		fmt.Sprintf("Owner load score: %.2f", in.metrics.OwnerLoad.LoadScores[t.Owner]),
		fmt.Sprintf("Owner has %d total tasks", in.ownerTasks[t.Owner]),
	}
	if b.Chokepoint != nil {
		lines = append(lines, fmt.Sprintf("Dependencies: %d tasks", len(b.Chokepoint.Dependencies)))
	}
	return lines
}

// parseGenerated keeps items that carry a title and a known type.
func parseGenerated(raw string) []Recommendation {
	var out []Recommendation
	for _, item := range llm.ExtractArray(raw) {
		title := item.Get("title")
		if !item.IsObject() || !title.Exists() {
			continue
		}
		typ := Type(item.Get("type").String())
		if !typ.IsValid() {
			continue
		}
		out = append(out, Recommendation{
			Title:          title.String(),
			Rationale:      item.Get("rationale").String(),
			ExpectedEffect: item.Get("expected_effect").String(),
			Type:           typ,
			Priority:       ParsePriority(item.Get("priority").String()),
		})
	}
	return out
}

// dedupe keeps the first recommendation for each (title, type) pair.
func dedupe(recs []Recommendation) []Recommendation {
	type key struct {
		title string
		typ   Type
	}
	seen := make(map[key]bool, len(recs))
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		k := key{r.Title, r.Type}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func truncate(recs []Recommendation, n int) []Recommendation {
	if len(recs) > n {
		return recs[:n]
	}
	return recs
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
