package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/forecast"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/pipeline"
	"github.com/opspilot/opspilot/internal/recommend"
	"github.com/opspilot/opspilot/internal/task"
)

// Snapshot is the flat, fully resolved record of one run.
type Snapshot struct {
	RunID           string                `json:"run_id"`
	Timestamp       time.Time             `json:"timestamp"`
	Settings        task.Settings         `json:"settings"`
	Tasks           []task.Task           `json:"tasks"`
	Edges           []graph.Edge          `json:"edges"`
	Bottlenecks     []detector.Bottleneck `json:"bottlenecks"`
	Risks           []forecast.Risk       `json:"risks"`
	Recommendations []recommend.Group     `json:"recommendations"`
	Metrics         []MetricRow           `json:"metrics"`
	DegradedMetrics []string              `json:"degraded_metrics,omitempty"`
	DegradedStages  []string              `json:"degraded_stages,omitempty"`
}

// MetricRow is one named metric value within a metrics group.
type MetricRow struct {
	Group string          `json:"group"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Info summarizes the snapshot.
func (s *Snapshot) Info() RunInfo {
	return RunInfo{
		ID:                   s.RunID,
		Timestamp:            s.Timestamp,
		Tasks:                len(s.Tasks),
		Bottlenecks:          len(s.Bottlenecks),
		Risks:                len(s.Risks),
		RecommendationGroups: len(s.Recommendations),
	}
}

// FromResult flattens a pipeline result into a snapshot. The timestamp is
// rounded to microseconds, the precision every backend can store.
func FromResult(res *pipeline.Result) (*Snapshot, error) {
	s := &Snapshot{
		RunID:           res.RunID,
		Timestamp:       res.Timestamp.UTC().Round(time.Microsecond),
		Settings:        res.Settings,
		Tasks:           nonNil(res.Tasks),
		Edges:           nonNil(res.Edges),
		Bottlenecks:     nonNil(res.Bottlenecks),
		Risks:           nonNil(res.Risks),
		Recommendations: nonNil(res.Recommendations),
		DegradedStages:  res.Degraded,
	}
	m := res.Metrics
	if m == nil {
		m = &graph.Metrics{}
	}
	s.DegradedMetrics = m.Degraded

	groups := []struct {
		name  string
		value any
	}{
		{graph.GroupBasic, m.Basic},
		{graph.GroupCentrality, m.Centrality},
		{graph.GroupOwnerLoad, m.OwnerLoad},
		{graph.GroupAging, m.Aging},
		{graph.GroupDependencies, m.Dependencies},
	}
	for _, g := range groups {
		rows, err := flattenGroup(g.name, g.value)
		if err != nil {
			return nil, err
		}
		s.Metrics = append(s.Metrics, rows...)
	}
	return s, nil
}

func flattenGroup(group string, v any) ([]MetricRow, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s metrics: %w", group, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s metrics: %w", group, err)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]MetricRow, 0, len(names))
	for _, name := range names {
		rows = append(rows, MetricRow{Group: group, Name: name, Value: fields[name]})
	}
	return rows, nil
}

// MetricsBundle reassembles the metrics bundle from the metric rows.
func (s *Snapshot) MetricsBundle() (*graph.Metrics, error) {
	byGroup := make(map[string]map[string]json.RawMessage)
	for _, row := range s.Metrics {
		if byGroup[row.Group] == nil {
			byGroup[row.Group] = make(map[string]json.RawMessage)
		}
		byGroup[row.Group][row.Name] = row.Value
	}

	m := &graph.Metrics{Degraded: s.DegradedMetrics}
	targets := map[string]any{
		graph.GroupBasic:        &m.Basic,
		graph.GroupCentrality:   &m.Centrality,
		graph.GroupOwnerLoad:    &m.OwnerLoad,
		graph.GroupAging:        &m.Aging,
		graph.GroupDependencies: &m.Dependencies,
	}
	for group, target := range targets {
		fields, ok := byGroup[group]
		if !ok {
			continue
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("assemble %s metrics: %w", group, err)
		}
		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("decode %s metrics: %w", group, err)
		}
	}
	return m, nil
}

// Result rebuilds a pipeline result. The graph is rebuilt from the stored
// tasks and summaries are recomputed from the stored collections.
func (s *Snapshot) Result() (*pipeline.Result, error) {
	m, err := s.MetricsBundle()
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{
		RunID:                 s.RunID,
		Timestamp:             s.Timestamp,
		Settings:              s.Settings,
		Tasks:                 nonNil(s.Tasks),
		Edges:                 nonNil(s.Edges),
		Metrics:               m,
		Bottlenecks:           nonNil(s.Bottlenecks),
		Risks:                 nonNil(s.Risks),
		Recommendations:       nonNil(s.Recommendations),
		BottleneckSummary:     detector.Summarize(s.Bottlenecks),
		RiskSummary:           forecast.Summarize(s.Risks),
		RecommendationSummary: recommend.Summarize(s.Recommendations),
		Degraded:              s.DegradedStages,
		Graph:                 graph.Build(s.Tasks),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
