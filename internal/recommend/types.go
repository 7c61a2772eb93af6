package recommend

import "github.com/opspilot/opspilot/internal/detector"

// Type is the kind of remediation action.
type Type string

const (
	TypeReassign            Type = "reassign"
	TypeSplitTask           Type = "split_task"
	TypeEscalate            Type = "escalate"
	TypeRenegotiateDeadline Type = "renegotiate_deadline"
	TypeAddResources        Type = "add_resources"
	TypeRemoveDependencies  Type = "remove_dependencies"
	TypePrioritize          Type = "prioritize"
)

// Types lists every recommendation type.
func Types() []Type {
	return []Type{
		TypeReassign,
		TypeSplitTask,
		TypeEscalate,
		TypeRenegotiateDeadline,
		TypeAddResources,
		TypeRemoveDependencies,
		TypePrioritize,
	}
}

// IsValid reports whether t is a known recommendation type.
func (t Type) IsValid() bool {
	switch t {
	case TypeReassign, TypeSplitTask, TypeEscalate, TypeRenegotiateDeadline,
		TypeAddResources, TypeRemoveDependencies, TypePrioritize:
		return true
	}
	return false
}

// Priority is the urgency of a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Score maps a priority to 3/2/1. Unknown priorities score 2.
func (p Priority) Score() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// ParsePriority normalises generator output. Unknown values become medium.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityHigh, PriorityLow:
		return Priority(s)
	}
	return PriorityMedium
}

// Recommendation is one proposed action.
type Recommendation struct {
	Title          string   `json:"title"`
	Rationale      string   `json:"rationale"`
	ExpectedEffect string   `json:"expected_effect"`
	Type           Type     `json:"type"`
	Priority       Priority `json:"priority"`
}

// MaxPerGroup caps the recommendations kept per bottleneck.
const MaxPerGroup = 3

// Group holds the recommendations for one bottleneck instance.
type Group struct {
	TaskID          string           `json:"task_id"`
	Title           string           `json:"title"`
	Owner           string           `json:"owner"`
	BottleneckType  detector.Type    `json:"bottleneck_type"`
	BottleneckScore float64          `json:"bottleneck_score"`
	Recommendations []Recommendation `json:"recommendations"`
}
