package pipeline

import (
	"time"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/recommend"
	"github.com/opspilot/opspilot/internal/task"
)

// Stage names one step of an analysis run.
type Stage string

const (
	StageGraph     Stage = "graph"
	StageDetect    Stage = "detect"
	StageForecast  Stage = "forecast"
	StageRecommend Stage = "recommend"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// Result is the complete output of one run. Collections are never nil.
type Result struct {
	RunID     string        `json:"run_id"`
	Timestamp time.Time     `json:"timestamp"`
	Settings  task.Settings `json:"settings"`

	Tasks   []task.Task    `json:"tasks"`
	Edges   []graph.Edge   `json:"edges"`
	Metrics *graph.Metrics `json:"metrics"`

	Bottlenecks     []detector.Bottleneck `json:"bottlenecks"`
	Risks           []forecast.Risk       `json:"risks"`
	Recommendations []recommend.Group     `json:"recommendations"`

	BottleneckSummary     detector.Summary  `json:"bottleneck_summary"`
	RiskSummary           forecast.Summary  `json:"risk_summary"`
	RecommendationSummary recommend.Summary `json:"recommendation_summary"`

	// Degraded lists stages that failed and contributed empty output.
	Degraded []string `json:"degraded,omitempty"`

	// Graph is the in-memory graph for the run. It is not serialized.
	Graph *graph.Graph `json:"-"`
}

// Owners returns the distinct task owners in first-appearance order.
func (r *Result) Owners() []string {
	seen := make(map[string]bool)
	var owners []string
	for _, t := range r.Tasks {
		if !seen[t.Owner] {
			seen[t.Owner] = true
			owners = append(owners, t.Owner)
		}
	}
	return owners
}
