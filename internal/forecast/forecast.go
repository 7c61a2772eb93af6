// Package forecast scores open tasks for schedule risk using a weighted
// blend of six factors and explains each score in plain language.
package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/task"
)

// Factor weights. They sum to 1.
const (
	weightDependencyDepth    = 0.25
	weightOwnerOverload      = 0.20
	weightUnresolvedBlockers = 0.20
	weightDeadlinePressure   = 0.15
	weightEffortComplexity   = 0.10
	weightHistorical         = 0.10
)

// InclusionThreshold is the score a task must exceed to be reported.
const InclusionThreshold = 0.3

// Level buckets a risk score.
type Level string

const (
	LevelCritical Level = "Critical"
	LevelHigh     Level = "High"
	LevelMedium   Level = "Medium"
	LevelLow      Level = "Low"
	LevelMinimal  Level = "Minimal"
)

// Levels lists every level from most to least severe.
func Levels() []Level {
	return []Level{LevelCritical, LevelHigh, LevelMedium, LevelLow, LevelMinimal}
}

// IsValid reports whether l is a known level.
func (l Level) IsValid() bool {
	switch l {
	case LevelCritical, LevelHigh, LevelMedium, LevelLow, LevelMinimal:
		return true
	}
	return false
}

// LevelFor buckets a score: >=0.8 Critical, >=0.6 High, >=0.4 Medium,
// >=0.2 Low, otherwise Minimal.
func LevelFor(score float64) Level {
	switch {
	case score >= 0.8:
		return LevelCritical
	case score >= 0.6:
		return LevelHigh
	case score >= 0.4:
		return LevelMedium
	case score >= 0.2:
		return LevelLow
	default:
		return LevelMinimal
	}
}

// Factors is the per-factor breakdown behind a risk score. Each value is in [0,1].
type Factors struct {
	DependencyDepth    float64 `json:"dependency_depth"`
	OwnerOverload      float64 `json:"owner_overload"`
	UnresolvedBlockers float64 `json:"unresolved_blockers"`
	DeadlinePressure   float64 `json:"deadline_pressure"`
	EffortComplexity   float64 `json:"effort_complexity"`
	HistoricalPatterns float64 `json:"historical_patterns"`
}

// Weighted returns the weighted average of the factors.
func (f Factors) Weighted() float64 {
	return f.DependencyDepth*weightDependencyDepth +
		f.OwnerOverload*weightOwnerOverload +
		f.UnresolvedBlockers*weightUnresolvedBlockers +
		f.DeadlinePressure*weightDeadlinePressure +
		f.EffortComplexity*weightEffortComplexity +
		f.HistoricalPatterns*weightHistorical
}

// Risk is the forecast for one open task.
type Risk struct {
	TaskID   string        `json:"task_id"`
	Title    string        `json:"title"`
	Owner    string        `json:"owner"`
	Status   task.Status   `json:"status"`
	Score    float64       `json:"risk_score"`
	Level    Level         `json:"risk_level"`
	Reasons  []string      `json:"reasons"`
	DueDate  string        `json:"due_date,omitempty"`
	Priority task.Priority `json:"priority"`
	Effort   int           `json:"effort"`
	Factors  Factors       `json:"factors"`
}

// Forecaster scores tasks against a graph and its metrics.
type Forecaster struct {
	g        *graph.Graph
	m        *graph.Metrics
	settings task.Settings
	today    time.Time
}

// Forecast returns a risk entry for every task that is not done and whose
// score exceeds InclusionThreshold, sorted by score, highest first.
func Forecast(g *graph.Graph, tasks []task.Task, m *graph.Metrics, settings task.Settings, now time.Time) []Risk {
	out := []Risk{}
	if g == nil || m == nil || len(tasks) == 0 {
		return out
	}

	f := &Forecaster{g: g, m: m, settings: settings, today: task.Today(now)}
	for _, t := range tasks {
		if t.Status == task.StatusDone {
			continue
		}
		factors := f.Factors(t)
		score := min(factors.Weighted()*task.PriorityWeight(t.Priority), 1.0)
		if score <= InclusionThreshold {
			continue
		}
		out = append(out, Risk{
			TaskID:   t.ID,
			Title:    t.Title,
			Owner:    t.Owner,
			Status:   t.Status,
			Score:    score,
			Level:    LevelFor(score),
			Reasons:  f.Reasons(t),
			DueDate:  t.DueDate,
			Priority: t.Priority,
			Effort:   t.Effort,
			Factors:  factors,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Factors computes every risk factor for t.
func (f *Forecaster) Factors(t task.Task) Factors {
	return Factors{
		DependencyDepth:    f.dependencyDepth(t),
		OwnerOverload:      f.ownerOverload(t),
		UnresolvedBlockers: f.unresolvedBlockers(t),
		DeadlinePressure:   f.deadlinePressure(t),
		EffortComplexity:   effortComplexity(t),
		HistoricalPatterns: f.historical(t),
	}
}

func (f *Forecaster) status(id string) task.Status {
	t, _ := f.g.Task(id)
	return t.Status
}

// dependencyDepth counts ancestors that have not started (todo) or are
// blocked as pending prerequisites.
func (f *Forecaster) dependencyDepth(t task.Task) float64 {
	ancestors := f.g.Ancestors(t.ID)
	pending := 0
	for _, id := range ancestors {
		if s := f.status(id); s == task.StatusBlocked || s == task.StatusTodo {
			pending++
		}
	}
	depth := min(float64(len(ancestors))/5, 1.0)
	penalty := min(float64(pending)/float64(max(len(ancestors), 1)), 1.0)
	return min(depth+0.5*penalty, 1.0)
}

func (f *Forecaster) ownerOverload(t task.Task) float64 {
	ol := f.m.OwnerLoad
	risk := 0.0
	if ol.MaxLoad > 0 {
		risk = ol.LoadScores[t.Owner] / ol.MaxLoad
	}
	st := ol.Stats[t.Owner]
	if st.InProgress > 3 {
		risk += 0.2
	}
	if st.Blocked > 1 {
		risk += 0.3
	}
	if st.HighPriority > 2 {
		risk += 0.2
	}
	return min(risk, 1.0)
}

func (f *Forecaster) unresolvedBlockers(t task.Task) float64 {
	if t.Status == task.StatusBlocked {
		return 1.0
	}
	preds := f.g.Predecessors(t.ID)
	if len(preds) == 0 {
		return 0
	}
	blocked := 0
	for _, id := range preds {
		if f.status(id) == task.StatusBlocked {
			blocked++
		}
	}
	return float64(blocked) / float64(len(preds))
}

func (f *Forecaster) daysUntilDue(t task.Task) (int, bool) {
	due, ok := task.ParseDate(t.DueDate)
	if !ok {
		return 0, false
	}
	return task.DaysBetween(f.today, due), true
}

func (f *Forecaster) deadlinePressure(t task.Task) float64 {
	days, ok := f.daysUntilDue(t)
	if !ok {
		return 0
	}
	switch {
	case days < 0:
		return 1.0
	case days <= 3:
		return 0.9
	case days <= 7:
		return 0.7
	case days <= 14:
		return 0.4
	default:
		return 0.1
	}
}

func effortComplexity(t task.Task) float64 {
	risk := float64(t.Effort-1) / 4
	if t.Effort >= 4 {
		risk += 0.2
	}
	return min(risk, 1.0)
}

func (f *Forecaster) historical(t task.Task) float64 {
	if f.m.Aging.IsAging(t.ID) {
		return 0.8
	}
	st := f.m.OwnerLoad.Stats[t.Owner]
	switch {
	case st.Overdue > 0:
		return 0.6
	case st.Blocked > 1:
		return 0.4
	}
	return 0
}

// Reasons renders the conditions behind a task's risk as short phrases in
// a fixed order. They are derived from the underlying conditions rather
// than from the factor values.
func (f *Forecaster) Reasons(t task.Task) []string {
	reasons := []string{}

	ancestors := f.g.Ancestors(t.ID)
	if len(ancestors) > 3 {
		reasons = append(reasons, fmt.Sprintf("Deep dependency chain (%d dependencies)", len(ancestors)))
	}
	blocked := 0
	for _, id := range ancestors {
		if f.status(id) == task.StatusBlocked {
			blocked++
		}
	}
	if blocked > 0 {
		reasons = append(reasons, fmt.Sprintf("Blocked dependencies (%d tasks)", blocked))
	}

	load := f.m.OwnerLoad.LoadScores[t.Owner]
	st := f.m.OwnerLoad.Stats[t.Owner]
	if load > 5 {
		reasons = append(reasons, fmt.Sprintf("Owner overload (load score: %.1f)", load))
	}
	if st.InProgress > 3 {
		reasons = append(reasons, fmt.Sprintf("Owner has %d tasks in progress", st.InProgress))
	}
	if st.Blocked > 0 {
		reasons = append(reasons, fmt.Sprintf("Owner has %d blocked tasks", st.Blocked))
	}

	if days, ok := f.daysUntilDue(t); ok {
		switch {
		case days < 0:
			reasons = append(reasons, fmt.Sprintf("Overdue by %d days", -days))
		case days <= 3:
			reasons = append(reasons, fmt.Sprintf("Due in %d days", days))
		}
	}

	if t.Effort >= 4 {
		reasons = append(reasons, fmt.Sprintf("High effort task (%d/5)", t.Effort))
	}

	for _, a := range f.m.Aging.Tasks {
		if a.TaskID == t.ID {
			reasons = append(reasons, fmt.Sprintf("Task aging (%d days in progress)", a.DaysInProgress))
			break
		}
	}
	return reasons
}
