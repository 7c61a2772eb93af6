package detector

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/opspilot/opspilot/internal/graph"
	"github.com/opspilot/opspilot/internal/task"
)

var now = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) string {
	return task.Today(now).AddDate(0, 0, -n).Format(task.DateLayout)
}

func run(t *testing.T, tasks []task.Task) []Bottleneck {
	t.Helper()
	settings := task.DefaultSettings()
	g := graph.Build(tasks)
	m := graph.ComputeMetrics(g, tasks, settings, now)
	return Detect(g, tasks, m, settings)
}

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

func deps(ids ...string) func(*task.Task) {
	return func(t *task.Task) { t.DependencyIDs = ids }
}

func ofType(bs []Bottleneck, typ Type) []Bottleneck {
	var out []Bottleneck
	for _, b := range bs {
		if b.Type == typ {
			out = append(out, b)
		}
	}
	return out
}

func TestDetectOverloadedOwner(t *testing.T) {
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

	got := ofType(run(t, tasks), TypeOverloadedOwner)
	if len(got) != 4 {
		t.Fatalf("got %d overloaded_owner bottlenecks, want 4", len(got))
	}
	for _, b := range got {
		if b.Owner != "bob" {
			t.Errorf("owner %q flagged, only bob expected", b.Owner)
		}
		if b.Score != 1.0 {
			t.Errorf("score = %v, want capped 1.0", b.Score)
		}
		if !strings.HasPrefix(b.Reason, "Owner bob is overloaded (load score: 10.80)") {
			t.Errorf("reason = %q", b.Reason)
		}
		if b.Overload == nil || b.Overload.OwnerStats.TotalTasks != 4 {
			t.Errorf("overload details = %+v", b.Overload)
		}
	}
}

func TestDetectCircularDependency(t *testing.T) {
	tasks := []task.Task{
		newTask("A", "ana", deps("C")),
		newTask("B", "ana", deps("A")),
		newTask("C", "ana", deps("B")),
	}

	got := ofType(run(t, tasks), TypeCircularDependency)
	if len(got) != 3 {
		t.Fatalf("got %d circular_dependency bottlenecks, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, b := range got {
		seen[b.TaskID] = true
		if b.Score != 0.8 {
			t.Errorf("score = %v, want 0.8", b.Score)
		}
		if !strings.Contains(b.Reason, "A -> B -> C") {
			t.Errorf("reason %q does not list cycle order", b.Reason)
		}
		if b.Cycle == nil || len(b.Cycle.Members) != 3 {
			t.Errorf("cycle details = %+v", b.Cycle)
		}
	}
	if len(seen) != 3 {
		t.Errorf("expected one entry per task, got %v", seen)
	}
}

func TestDetectAgingUncapped(t *testing.T) {
	tasks := []task.Task{
		newTask("OLD", "ana", func(tk *task.Task) {
			tk.Status = task.StatusInProgress
			tk.Priority = task.PriorityHigh
			tk.Effort = 5
			tk.StartDate = daysAgo(10)
		}),
		newTask("NEW", "bo", func(tk *task.Task) {
			tk.Status = task.StatusInProgress
			tk.Effort = 2
			tk.StartDate = daysAgo(6)
		}),
	}

	got := ofType(run(t, tasks), TypeAgingTask)
	if len(got) != 2 {
		t.Fatalf("got %d aging bottlenecks, want 2", len(got))
	}
	if got[0].TaskID != "OLD" || math.Abs(got[0].Score-1.5) > 1e-9 {
		t.Errorf("first aging = %s %v, want OLD 1.5", got[0].TaskID, got[0].Score)
	}
	if got[0].Reason != "Task stuck in progress for 10 days" {
		t.Errorf("reason = %q", got[0].Reason)
	}
	// 6/10 * 1.0 * 2/5
	if math.Abs(got[1].Score-0.24) > 1e-9 {
		t.Errorf("second aging score = %v, want 0.24", got[1].Score)
	}
}

func TestDetectChokepointAndCentrality(t *testing.T) {
	tasks := []task.Task{
		newTask("S1", "ana"),
		newTask("S2", "ana"),
		newTask("S3", "ana"),
		newTask("HUB", "bo", deps("S1", "S2", "S3")),
		newTask("OUT", "cy", deps("HUB")),
	}
	bs := run(t, tasks)

	choke := ofType(bs, TypeDependencyChokepoint)
	if len(choke) != 1 || choke[0].TaskID != "HUB" || choke[0].Score != 1.0 {
		t.Fatalf("chokepoints = %+v", choke)
	}
	if choke[0].Chokepoint.FanIn != 3 || choke[0].Reason != "High dependency fan-in (3 dependencies) creates chokepoint" {
		t.Errorf("chokepoint = %+v reason %q", choke[0].Chokepoint, choke[0].Reason)
	}

	hb := ofType(bs, TypeHighBetweenness)
	if len(hb) != 1 || hb[0].TaskID != "HUB" || hb[0].Score != 1.0 {
		t.Errorf("high betweenness = %+v", hb)
	}
	// three paths through HUB out of 4*3 ordered pairs
	cp := ofType(bs, TypeCriticalPath)
	if len(cp) != 1 || math.Abs(cp[0].Score-0.25) > 1e-9 {
		t.Errorf("critical path = %+v", cp)
	}
}

func TestDetectNoBetweennessWhenFlat(t *testing.T) {
	tasks := []task.Task{newTask("A", "ana"), newTask("B", "bo")}
	for _, b := range run(t, tasks) {
		if b.Type == TypeHighBetweenness || b.Type == TypeCriticalPath {
			t.Errorf("unexpected %s bottleneck on edgeless graph", b.Type)
		}
	}
}

func TestDetectSortedAndKnownTasks(t *testing.T) {
	tasks := []task.Task{
		newTask("A", "ana", deps("C"), func(tk *task.Task) { tk.Status = task.StatusInProgress; tk.StartDate = daysAgo(20) }),
		newTask("B", "ana", deps("A"), func(tk *task.Task) { tk.Priority = task.PriorityHigh; tk.Effort = 5 }),
		newTask("C", "ana", deps("B")),
		newTask("D", "bo", deps("A", "B", "C")),
		newTask("E", "cy", deps("D", "ghost")),
	}
	bs := run(t, tasks)
	if len(bs) == 0 {
		t.Fatal("expected bottlenecks")
	}
	ids := map[string]bool{}
	for _, tk := range tasks {
		ids[tk.ID] = true
	}
	for i, b := range bs {
		if !ids[b.TaskID] {
			t.Errorf("bottleneck for unknown task %q", b.TaskID)
		}
		if !b.Type.IsValid() {
			t.Errorf("invalid type %q", b.Type)
		}
		if i > 0 && bs[i-1].Score < b.Score {
			t.Errorf("not sorted at %d: %v < %v", i, bs[i-1].Score, b.Score)
		}
	}
}

func TestDetectEmpty(t *testing.T) {
	got := run(t, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Detect(empty) = %v, want empty non-nil slice", got)
	}
}

func TestSummarize(t *testing.T) {
	bs := []Bottleneck{
		{TaskID: "A", Owner: "ana", Type: TypeCircularDependency, Score: 0.8},
		{TaskID: "B", Owner: "ana", Type: TypeCircularDependency, Score: 0.8},
		{TaskID: "C", Owner: "bo", Type: TypeAgingTask, Score: 0.2},
	}
	s := Summarize(bs)
	if s.Total != 3 || s.ByType[TypeCircularDependency] != 2 || s.ByOwner["ana"] != 2 {
		t.Errorf("Summarize = %+v", s)
	}
	if s.HighPriorityCount != 2 || s.MaxScore != 0.8 || s.MinScore != 0.2 {
		t.Errorf("Summarize stats = %+v", s)
	}
	if math.Abs(s.AvgScore-0.6) > 1e-9 {
		t.Errorf("AvgScore = %v, want 0.6", s.AvgScore)
	}

	empty := Summarize(nil)
	if empty.Total != 0 || empty.AvgScore != 0 || empty.ByType == nil {
		t.Errorf("Summarize(nil) = %+v", empty)
	}
}
