package recommend

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/task"
)

var now = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func newTask(id, owner string, mods ...func(*task.Task)) task.Task {
	t := task.Task{
		ID:       id,
		Title:    "Title " + id,
		Owner:    owner,
		Status:   task.StatusTodo,
		Priority: task.PriorityMed,
		Effort:   3,
	}
	for _, m := range mods {
		m(&t)
	}
	return t
}

func analyze(tasks []task.Task) (*graph.Graph, *graph.Metrics, []detector.Bottleneck) {
	settings := task.DefaultSettings()
	g := graph.Build(tasks)
	m := graph.ComputeMetrics(g, tasks, settings, now)
	return g, m, detector.Detect(g, tasks, m, settings)
}

func titles(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func TestRecommendOverloadedOwner(t *testing.T) {
	heavy := func(tk *task.Task) {
		tk.Priority = task.PriorityHigh
		tk.Effort = 5
	}
	tasks := []task.Task{
		newTask("A1", "alice"),
		newTask("B1", "bob", heavy),
		newTask("B2", "bob", heavy),
		newTask("B3", "bob", heavy),
		newTask("B4", "bob", heavy),
	}
	g, m, bs := analyze(tasks)

	var overload []detector.Bottleneck
	for _, b := range bs {
		if b.Type == detector.TypeOverloadedOwner {
			overload = append(overload, b)
		}
	}
	groups := New(nil, nil).Recommend(context.Background(), overload, g, tasks, m)
	if len(groups) != 4 {
		t.Fatalf("got %d groups, want 4", len(groups))
	}

	recs := groups[0].Recommendations
	want := []string{"Reassign to alice", "Split task into subtasks", "Escalate to management"}
	if !reflect.DeepEqual(titles(recs), want) {
		t.Fatalf("titles = %q, want %q", titles(recs), want)
	}
	if recs[0].Rationale != "Owner alice has lower workload (0.00 vs 10.80)" {
		t.Errorf("rationale = %q", recs[0].Rationale)
	}
	if recs[0].Type != TypeReassign || recs[0].Priority != PriorityHigh {
		t.Errorf("reassign = %+v", recs[0])
	}
	if groups[0].BottleneckType != detector.TypeOverloadedOwner || groups[0].Owner != "bob" {
		t.Errorf("group header = %+v", groups[0])
	}
}

func TestLightestOwner(t *testing.T) {
	ol := graph.OwnerLoad{
		Owners:     []string{"cur", "a", "b", "c"},
		LoadScores: map[string]float64{"cur": 10, "a": 7, "b": 3, "c": 3},
	}
	tests := []struct {
		name    string
		current float64
		want    string
		ok      bool
	}{
		{"picks lowest, first on tie", 10, "b", true},
		{"only owners within ratio", 5, "b", true},
		{"nobody light enough", 4, "", false},
		{"zero load never reassigns", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, ok := lightestOwner(ol, "cur", tt.current)
			if got != tt.want || ok != tt.ok {
				t.Errorf("lightestOwner = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}

	// exactly 70%
	ol.LoadScores = map[string]float64{"cur": 10, "a": 7}
	if got, _, ok := lightestOwner(ol, "cur", 10); !ok || got != "a" {
		t.Errorf("owner at exactly 70%% should qualify, got %q %v", got, ok)
	}
}

func TestRecommendRuleTable(t *testing.T) {
	tasks := []task.Task{
		newTask("T", "ana", func(tk *task.Task) { tk.Status = task.StatusBlocked }),
	}
	for i := range 6 {
		tasks = append(tasks, newTask("X"+string(rune('a'+i)), "ana"))
	}
	g, m, _ := analyze(tasks)

	tests := []struct {
		name string
		b    detector.Bottleneck
		want []string
	}{
		{
			name: "aging blocked busy owner",
			b: detector.Bottleneck{TaskID: "T", Type: detector.TypeAgingTask,
				Aging: &detector.AgingDetails{DaysInProgress: 12}},
			want: []string{"Identify and resolve blockers", "Reassign to less busy owner", "Renegotiate deadline"},
		},
		{
			name: "chokepoint high fan-in",
			b: detector.Bottleneck{TaskID: "T", Type: detector.TypeDependencyChokepoint,
				Chokepoint: &detector.ChokepointDetails{FanIn: 4}},
			want: []string{"Break down dependencies", "Increase priority"},
		},
		{
			name: "chokepoint low fan-in",
			b: detector.Bottleneck{TaskID: "T", Type: detector.TypeDependencyChokepoint,
				Chokepoint: &detector.ChokepointDetails{FanIn: 3}},
			want: []string{"Increase priority"},
		},
		{
			name: "critical path",
			b:    detector.Bottleneck{TaskID: "T", Type: detector.TypeCriticalPath},
			want: []string{"Allocate dedicated resources", "Implement daily check-ins"},
		},
		{
			name: "cycle",
			b: detector.Bottleneck{TaskID: "T", Type: detector.TypeCircularDependency,
				Cycle: &detector.CycleDetails{Members: []string{"A", "B", "C"}}},
			want: []string{"Break circular dependency", "Redesign workflow"},
		},
		{
			name: "high betweenness has no rules",
			b:    detector.Bottleneck{TaskID: "T", Type: detector.TypeHighBetweenness},
			want: []string{},
		},
	}

	e := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := e.Recommend(context.Background(), []detector.Bottleneck{tt.b}, g, tasks, m)
			if len(groups) != 1 {
				t.Fatalf("got %d groups", len(groups))
			}
			if got := titles(groups[0].Recommendations); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("titles = %q, want %q", got, tt.want)
			}
		})
	}

	groups := e.Recommend(context.Background(), []detector.Bottleneck{tests[0].b}, g, tasks, m)
	recs := groups[0].Recommendations
	if recs[1].Rationale != "Owner has 7 tasks, may be overloaded" {
		t.Errorf("reassign rationale = %q", recs[1].Rationale)
	}
	if recs[2].Rationale != "Task has been in progress for 12 days" {
		t.Errorf("renegotiate rationale = %q", recs[2].Rationale)
	}

	groups = e.Recommend(context.Background(), []detector.Bottleneck{tests[4].b}, g, tasks, m)
	if r := groups[0].Recommendations[0].Rationale; r != "Task is part of circular dependency: A -> B -> C" {
		t.Errorf("cycle rationale = %q", r)
	}
}

func TestRecommendMergesGenerated(t *testing.T) {
	tasks := []task.Task{newTask("T", "ana")}
	g, m, _ := analyze(tasks)
	gen := &llm.FakeGenerator{Default: `Sure! [
		{"title": "Allocate dedicated resources", "type": "add_resources", "priority": "low"},
		{"title": "Do a dance", "type": "celebrate"},
		{"rationale": "no title", "type": "escalate"},
		{"title": "Hire contractor", "rationale": "more hands", "type": "add_resources", "priority": "urgent"},
		{"title": "Extra", "type": "prioritize"}
	]`}

	b := detector.Bottleneck{TaskID: "T", Type: detector.TypeCriticalPath, Score: 0.4}
	groups := New(gen, nil).Recommend(context.Background(), []detector.Bottleneck{b}, g, tasks, m)

	recs := groups[0].Recommendations
	want := []string{"Allocate dedicated resources", "Implement daily check-ins", "Hire contractor"}
	if !reflect.DeepEqual(titles(recs), want) {
		t.Fatalf("titles = %q, want %q", titles(recs), want)
	}
	if recs[0].Priority != PriorityHigh {
		t.Error("rule-based candidate should win the duplicate")
	}
	if recs[2].Priority != PriorityMedium || recs[2].Rationale != "more hands" {
		t.Errorf("generated = %+v", recs[2])
	}
	if len(gen.Prompts()) != 1 {
		t.Errorf("generator called %d times, want 1", len(gen.Prompts()))
	}
}

func TestRecommendGeneratorFailures(t *testing.T) {
	tasks := []task.Task{newTask("T", "ana")}
	g, m, _ := analyze(tasks)
	b := detector.Bottleneck{TaskID: "T", Type: detector.TypeCriticalPath}

	gens := map[string]llm.Generator{
		"error":   &llm.FakeGenerator{Err: errors.ErrTimeout},
		"panic":   &llm.FakeGenerator{Panic: true},
		"garbage": &llm.FakeGenerator{Default: "I cannot help with that"},
		"noop":    llm.Noop{},
	}
	for name, gen := range gens {
		t.Run(name, func(t *testing.T) {
			groups := New(gen, nil).Recommend(context.Background(), []detector.Bottleneck{b}, g, tasks, m)
			if n := len(groups[0].Recommendations); n != 2 {
				t.Errorf("got %d recommendations, want the 2 rule-based ones", n)
			}
		})
	}
}

func TestRecommendUnknownTask(t *testing.T) {
	b := detector.Bottleneck{TaskID: "ghost", Type: detector.TypeCriticalPath}
	groups := New(nil, nil).Recommend(context.Background(), []detector.Bottleneck{b}, nil, nil, nil)
	if groups[0].Title != "Unknown Task" || groups[0].Owner != "Unknown" {
		t.Errorf("group = %+v", groups[0])
	}
}

func TestRecommendOneGroupPerBottleneck(t *testing.T) {
	tasks := []task.Task{
		newTask("A", "ana", func(tk *task.Task) { tk.DependencyIDs = []string{"C"} }),
		newTask("B", "ana", func(tk *task.Task) { tk.DependencyIDs = []string{"A"} }),
		newTask("C", "ana", func(tk *task.Task) { tk.DependencyIDs = []string{"B"} }),
	}
	g, m, bs := analyze(tasks)
	groups := New(nil, nil).Recommend(context.Background(), bs, g, tasks, m)
	if len(groups) != len(bs) {
		t.Fatalf("got %d groups for %d bottlenecks", len(groups), len(bs))
	}
	for i, grp := range groups {
		if grp.TaskID != bs[i].TaskID || grp.BottleneckType != bs[i].Type {
			t.Errorf("group %d does not match bottleneck order", i)
		}
		if len(grp.Recommendations) > MaxPerGroup {
			t.Errorf("group %d has %d recommendations", i, len(grp.Recommendations))
		}
	}

	if got := New(nil, nil).Recommend(context.Background(), nil, g, tasks, m); got == nil || len(got) != 0 {
		t.Errorf("Recommend(no bottlenecks) = %v, want empty slice", got)
	}
}

func TestDedupeKeepsFirst(t *testing.T) {
	recs := dedupe([]Recommendation{
		{Title: "x", Type: TypeEscalate, Rationale: "first"},
		{Title: "x", Type: TypeEscalate, Rationale: "second"},
		{Title: "x", Type: TypePrioritize},
	})
	if len(recs) != 2 || recs[0].Rationale != "first" {
		t.Errorf("dedupe = %+v", recs)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Group{
		{Recommendations: []Recommendation{
			{Type: TypeEscalate, Priority: PriorityHigh},
			{Type: TypeReassign, Priority: PriorityMedium},
		}},
		{Recommendations: []Recommendation{
			{Type: TypeEscalate, Priority: PriorityLow},
		}},
	})
	if s.Total != 3 || s.ByType[TypeEscalate] != 2 || s.ByPriority[PriorityHigh] != 1 {
		t.Errorf("Summarize = %+v", s)
	}
	if math.Abs(s.AvgPriorityScore-2.0) > 1e-9 {
		t.Errorf("AvgPriorityScore = %v, want 2.0", s.AvgPriorityScore)
	}
	if empty := Summarize(nil); empty.Total != 0 || empty.AvgPriorityScore != 0 {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}
