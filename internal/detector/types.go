package detector

import (
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/task"
)

// Type identifies which heuristic produced a bottleneck.
type Type string

const (
	TypeHighBetweenness      Type = "high_betweenness"
	TypeOverloadedOwner      Type = "overloaded_owner"
	TypeAgingTask            Type = "aging_task"
	TypeDependencyChokepoint Type = "dependency_chokepoint"
	TypeCriticalPath         Type = "critical_path"
	TypeCircularDependency   Type = "circular_dependency"
)

// Types lists every bottleneck type in detection order.
func Types() []Type {
	return []Type{
		TypeHighBetweenness,
		TypeOverloadedOwner,
		TypeAgingTask,
		TypeDependencyChokepoint,
		TypeCriticalPath,
		TypeCircularDependency,
	}
}

// IsValid reports whether t is a known bottleneck type.
func (t Type) IsValid() bool {
	switch t {
	case TypeHighBetweenness, TypeOverloadedOwner, TypeAgingTask,
		TypeDependencyChokepoint, TypeCriticalPath, TypeCircularDependency:
		return true
	}
	return false
}

// Label returns a human-readable name for t.
func (t Type) Label() string {
	switch t {
	case TypeHighBetweenness:
		return "High Betweenness"
	case TypeOverloadedOwner:
		return "Overloaded Owner"
	case TypeAgingTask:
		return "Aging Task"
	case TypeDependencyChokepoint:
		return "Dependency Chokepoint"
	case TypeCriticalPath:
		return "Critical Path"
	case TypeCircularDependency:
		return "Circular Dependency"
	default:
		return string(t)
	}
}

// Bottleneck is one heuristic hit against one task. A task may appear once
// per heuristic. Exactly one Details field is set, chosen by Type.
type Bottleneck struct {
	TaskID string  `json:"task_id"`
	Title  string  `json:"title"`
	Owner  string  `json:"owner"`
	Type   Type    `json:"type"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`

	Centrality *CentralityDetails `json:"centrality,omitempty"`
	Overload   *OverloadDetails   `json:"overload,omitempty"`
	Aging      *AgingDetails      `json:"aging,omitempty"`
	Chokepoint *ChokepointDetails `json:"chokepoint,omitempty"`
	Cycle      *CycleDetails      `json:"cycle,omitempty"`
}

// CentralityDetails backs high_betweenness and critical_path hits.
type CentralityDetails struct {
	Betweenness     float64  `json:"betweenness_score"`
	NormalizedScore float64  `json:"normalized_score,omitempty"`
	Predecessors    []string `json:"predecessors"`
	Successors      []string `json:"successors"`
}

// OverloadDetails backs overloaded_owner hits.
type OverloadDetails struct {
	OwnerLoadScore float64          `json:"owner_load_score"`
	OwnerStats     graph.OwnerStats `json:"owner_stats"`
	TaskPriority   task.Priority    `json:"task_priority"`
	TaskEffort     int              `json:"task_effort"`
	TaskStatus     task.Status      `json:"task_status"`
}

// AgingDetails backs aging_task hits.
type AgingDetails struct {
	DaysInProgress int           `json:"days_in_progress"`
	Priority       task.Priority `json:"priority"`
	Effort         int           `json:"effort"`
	Threshold      int           `json:"aging_threshold"`
}

// ChokepointDetails backs dependency_chokepoint hits.
type ChokepointDetails struct {
	FanIn        int      `json:"fan_in_count"`
	FanOut       int      `json:"fan_out_count"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// CycleDetails backs circular_dependency hits.
type CycleDetails struct {
	Members []string `json:"cycle"`
	Titles  []string `json:"cycle_members"`
}
