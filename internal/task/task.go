// Package task defines the validated task record consumed by every analysis
// stage, along with the settings that tune the analysis.
package task

import (
	"math"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityMed  Priority = "med"
	PriorityHigh Priority = "high"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMed, PriorityHigh:
		return true
	}
	return false
}

var statusAliases = map[string]Status{
	"todo":        StatusTodo,
	"pending":     StatusTodo,
	"open":        StatusTodo,
	"in_progress": StatusInProgress,
	"in progress": StatusInProgress,
	"active":      StatusInProgress,
	"working":     StatusInProgress,
	"blocked":     StatusBlocked,
	"stuck":       StatusBlocked,
	"done":        StatusDone,
	"completed":   StatusDone,
	"finished":    StatusDone,
	"closed":      StatusDone,
}

var priorityAliases = map[string]Priority{
	"low":      PriorityLow,
	"1":        PriorityLow,
	"med":      PriorityMed,
	"medium":   PriorityMed,
	"2":        PriorityMed,
	"high":     PriorityHigh,
	"3":        PriorityHigh,
	"urgent":   PriorityHigh,
	"critical": PriorityHigh,
}

// ParseStatus maps free-form status text onto a Status. Unknown values map to
// StatusTodo.
func ParseStatus(raw string) Status {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusTodo
}

// ParsePriority maps free-form priority text onto a Priority. Unknown values
// map to PriorityMed.
func ParsePriority(raw string) Priority {
	if p, ok := priorityAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p
	}
	return PriorityMed
}

// Effort bounds.
const (
	MinEffort     = 1
	MaxEffort     = 5
	DefaultEffort = 3
)

// ClampEffort forces an effort estimate into [MinEffort, MaxEffort].
func ClampEffort(n int) int {
	return max(MinEffort, min(MaxEffort, n))
}

// Task is one unit of work. Records are immutable for the duration of a run.
type Task struct {
	ID            string   `json:"task_id"`
	Title         string   `json:"title"`
	Owner         string   `json:"owner"`
	Status        Status   `json:"status"`
	Priority      Priority `json:"priority"`
	Effort        int      `json:"effort"`
	StartDate     string   `json:"start_date,omitempty"`
	DueDate       string   `json:"due_date,omitempty"`
	DependencyIDs []string `json:"dependency_ids,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

// Valid reports whether the record carries the required identifying fields.
func (t Task) Valid() bool {
	return strings.TrimSpace(t.ID) != "" &&
		strings.TrimSpace(t.Title) != "" &&
		strings.TrimSpace(t.Owner) != ""
}

// PriorityWeight is the multiplier applied to scores by task priority.
func PriorityWeight(p Priority) float64 {
	switch p {
	case PriorityHigh:
		return 1.5
	case PriorityLow:
		return 0.7
	default:
		return 1.0
	}
}

// StatusWeight is the multiplier applied to overload scores by task status.
func StatusWeight(s Status) float64 {
	switch s {
	case StatusInProgress:
		return 1.5
	case StatusBlocked:
		return 1.2
	case StatusDone:
		return 0.1
	default:
		return 1.0
	}
}

// DateLayout is the calendar-date format used for start and due dates.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar date. The boolean is false for empty or
// malformed input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Today truncates now to its calendar date.
func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(b.Sub(a).Hours() / 24))
}

// Settings tunes an analysis run.
type Settings struct {
	// DueSoonDays is the window, in days, counted as "due soon".
	DueSoonDays int `json:"due_soon_days" mapstructure:"due_soon_days"`
	// AgingThreshold is the number of in-progress days after which a task is aging.
	AgingThreshold int `json:"aging_threshold" mapstructure:"aging_threshold"`
	// OwnerLoadThreshold is informational only; scoring uses computed averages.
	OwnerLoadThreshold int `json:"owner_load_threshold" mapstructure:"owner_load_threshold"`
}

// DefaultSettings returns the default analysis settings.
func DefaultSettings() Settings {
	return Settings{
		DueSoonDays:        7,
		AgingThreshold:     5,
		OwnerLoadThreshold: 3,
	}
}
