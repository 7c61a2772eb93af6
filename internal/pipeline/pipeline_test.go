package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opspilot/opspilot/internal/detector"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

var fixedNow = time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func sampleTasks() []task.Task {
	day := func(n int) string { return fixedNow.AddDate(0, 0, n).Format(task.DateLayout) }
	return []task.Task{
		{ID: "A", Title: "Schema", Owner: "ana", Status: task.StatusDone, Priority: task.PriorityHigh, Effort: 3},
		{ID: "B", Title: "API", Owner: "bo", Status: task.StatusInProgress, Priority: task.PriorityHigh, Effort: 5,
			StartDate: day(-12), DueDate: day(2), DependencyIDs: []string{"A"}},
		{ID: "C", Title: "UI", Owner: "bo", Status: task.StatusBlocked, Priority: task.PriorityHigh, Effort: 4,
			DependencyIDs: []string{"B"}},
		{ID: "D", Title: "Docs", Owner: "cy", Status: task.StatusTodo, Priority: task.PriorityLow, Effort: 1,
			DependencyIDs: []string{"C"}},
		{ID: "E", Title: "Loop 1", Owner: "cy", Status: task.StatusTodo, Priority: task.PriorityMed, Effort: 3,
			DependencyIDs: []string{"F"}},
		{ID: "F", Title: "Loop 2", Owner: "cy", Status: task.StatusTodo, Priority: task.PriorityMed, Effort: 3,
			DependencyIDs: []string{"E"}},
	}
}

func newAnalyzer(opts ...Option) *Analyzer {
	base := []Option{
		WithClock(clock),
		WithRunIDFunc(func(time.Time) string { return "run-test" }),
	}
	return New(append(base, opts...)...)
}

func TestRunProducesAllOutputs(t *testing.T) {
	res, err := newAnalyzer().Run(context.Background(), sampleTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.RunID != "run-test" || !res.Timestamp.Equal(fixedNow) {
		t.Errorf("header = %s %v", res.RunID, res.Timestamp)
	}
	if res.Metrics.Basic.NumNodes != 6 || len(res.Edges) != 5 {
		t.Errorf("graph = %d nodes, %d edges", res.Metrics.Basic.NumNodes, len(res.Edges))
	}
	if len(res.Bottlenecks) == 0 || len(res.Risks) == 0 {
		t.Fatalf("expected bottlenecks and risks, got %d / %d", len(res.Bottlenecks), len(res.Risks))
	}
	if len(res.Recommendations) != len(res.Bottlenecks) {
		t.Errorf("got %d recommendation groups for %d bottlenecks", len(res.Recommendations), len(res.Bottlenecks))
	}
	if res.BottleneckSummary.Total != len(res.Bottlenecks) || res.RiskSummary.Total != len(res.Risks) {
		t.Error("summaries do not match outputs")
	}
	if len(res.Degraded) != 0 {
		t.Errorf("unexpected degraded stages %v", res.Degraded)
	}

	var cycles int
	for _, b := range res.Bottlenecks {
		if b.Type == detector.TypeCircularDependency {
			cycles++
		}
	}
	if cycles != 2 {
		t.Errorf("got %d circular dependency entries, want 2", cycles)
	}
	if got := res.Owners(); !reflect.DeepEqual(got, []string{"ana", "bo", "cy"}) {
		t.Errorf("Owners = %v", got)
	}
}

func TestRunParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	par, err := newAnalyzer(WithParallel(true)).Run(ctx, sampleTasks())
	if err != nil {
		t.Fatal(err)
	}
	seq, err := newAnalyzer(WithParallel(false)).Run(ctx, sampleTasks())
	if err != nil {
		t.Fatal(err)
	}

	a, _ := json.Marshal(par)
	b, _ := json.Marshal(seq)
	if !bytes.Equal(a, b) {
		t.Error("parallel and sequential runs differ")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	a := newAnalyzer()
	first, _ := a.Run(context.Background(), sampleTasks())
	second, _ := a.Run(context.Background(), sampleTasks())
	x, _ := json.Marshal(first)
	y, _ := json.Marshal(second)
	if !bytes.Equal(x, y) {
		t.Error("repeated runs over the same input differ")
	}
}

func TestRunEmptyInput(t *testing.T) {
	res, err := newAnalyzer().Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Tasks == nil || res.Edges == nil || res.Bottlenecks == nil || res.Risks == nil || res.Recommendations == nil {
		t.Errorf("collections must be empty, not nil: %+v", res)
	}
	if len(res.Bottlenecks)+len(res.Risks)+len(res.Recommendations) != 0 {
		t.Error("empty input produced findings")
	}
	if res.Metrics.Basic.NumNodes != 0 {
		t.Errorf("NumNodes = %d", res.Metrics.Basic.NumNodes)
	}
}

func TestRunStagePanicDegrades(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := logging.NewWriterLogger(&lockedWriter{w: &buf, mu: &mu}, logging.LevelDebug)

	hook := func(s Stage) {
		if s == StageDetect {
			panic("boom")
		}
	}
	res, err := newAnalyzer(WithLogger(logger), withStageHook(hook)).Run(context.Background(), sampleTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Bottlenecks) != 0 || len(res.Recommendations) != 0 {
		t.Errorf("detect failure should empty bottlenecks and recommendations, got %d / %d",
			len(res.Bottlenecks), len(res.Recommendations))
	}
	if len(res.Risks) == 0 {
		t.Error("forecast should still run")
	}
	if !reflect.DeepEqual(res.Degraded, []string{"detect"}) {
		t.Errorf("Degraded = %v", res.Degraded)
	}

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	if !strings.Contains(out, `"stage":"detect"`) || !strings.Contains(out, "stage degraded to empty output") {
		t.Errorf("missing degraded stage log:\n%s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Error("log should carry the recovered panic")
	}
}

func TestRunGraphStagePanic(t *testing.T) {
	hook := func(s Stage) {
		if s == StageGraph {
			panic("graph exploded")
		}
	}
	res, err := newAnalyzer(withStageHook(hook)).Run(context.Background(), sampleTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Metrics == nil || res.Graph == nil {
		t.Fatal("graph stage fallback must still provide a graph and metrics")
	}
	if !reflect.DeepEqual(res.Degraded, []string{"graph"}) {
		t.Errorf("Degraded = %v", res.Degraded)
	}
}

func TestRunGeneratorFailureIsNotFatal(t *testing.T) {
	gen := &llm.FakeGenerator{Panic: true}
	res, err := newAnalyzer(WithGenerator(gen)).Run(context.Background(), sampleTasks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Degraded) != 0 {
		t.Errorf("generator failure should be absorbed by the engine, degraded = %v", res.Degraded)
	}
	for _, g := range res.Recommendations {
		if g.BottleneckType == detector.TypeCircularDependency && len(g.Recommendations) != 2 {
			t.Errorf("rule-based recommendations missing for %s", g.TaskID)
		}
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newAnalyzer().Run(ctx, sampleTasks()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID(fixedNow)
	if !strings.HasPrefix(id, "run-20240620-090000-") || len(id) != len("run-20240620-090000-")+6 {
		t.Errorf("NewRunID = %q", id)
	}
	if NewRunID(fixedNow) == id {
		t.Error("run IDs should not repeat")
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
