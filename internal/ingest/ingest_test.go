package ingest

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/opspilot/opspilot/internal/errors"
	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

const sampleCSV = `Task ID,Name,Assignee,Status,Start Date,Due Date,Dependency IDs,Priority,Effort,Description
T1,Design schema,ana,in progress,2024-06-01,2024-06-30,,high,5,first
T2,Build API,bo,Blocked,06/05/2024,"Jul 1, 2024","T1; T3",urgent,9,
,Write docs,,completed,,not a date,T1|T2,2,x,docs
T4,,cy,todo,,,,,,
`

func TestParseCSV(t *testing.T) {
	tasks, err := ParseCSV(strings.NewReader(sampleCSV), nil)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3 (untitled row dropped)", len(tasks))
	}

	want := []task.Task{
		{
			ID: "T1", Title: "Design schema", Owner: "ana",
			Status: task.StatusInProgress, Priority: task.PriorityHigh, Effort: 5,
			StartDate: "2024-06-01", DueDate: "2024-06-30", Notes: "first",
		},
		{
			ID: "T2", Title: "Build API", Owner: "bo",
			Status: task.StatusBlocked, Priority: task.PriorityHigh, Effort: 5,
			StartDate: "2024-06-05", DueDate: "2024-07-01",
			DependencyIDs: []string{"T1", "T3"},
		},
		{
			ID: "write-docs", Title: "Write docs", Owner: DefaultOwner,
			Status: task.StatusDone, Priority: task.PriorityMed, Effort: task.DefaultEffort,
			DependencyIDs: []string{"T1", "T2"}, Notes: "docs",
		},
	}
	for i := range want {
		if !reflect.DeepEqual(tasks[i], want[i]) {
			t.Errorf("task %d =\n%+v\nwant\n%+v", i, tasks[i], want[i])
		}
	}
}

func TestParseCSVEmptyAndBroken(t *testing.T) {
	tasks, err := ParseCSV(strings.NewReader(""), nil)
	if err != nil || len(tasks) != 0 {
		t.Errorf("ParseCSV(empty) = %v, %v", tasks, err)
	}

	tests := []struct {
		name    string
		input   string
		wantIDs []string
	}{
		{
			name: "bare quote row dropped",
			input: "task_id,title,owner,status\n" +
				"T1,Set up CI,ana,todo\n" +
				"T2,Fix \"login bug,bob,blocked\n" +
				"T3,Write docs,cy,todo\n",
			wantIDs: []string{"T1", "T3"},
		},
		{
			name:    "unterminated quote at end",
			input:   "task_id,title\nT1,Set up CI\nT2,\"unterminated\n",
			wantIDs: []string{"T1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			tasks, err := ParseCSV(strings.NewReader(tt.input), logging.NewWriterLogger(&logs, logging.LevelDebug))
			if err != nil {
				t.Fatalf("ParseCSV: %v", err)
			}
			var ids []string
			for _, tk := range tasks {
				ids = append(ids, tk.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if !strings.Contains(logs.String(), "skipping malformed CSV row") {
				t.Errorf("malformed row was not logged: %s", logs.String())
			}
		})
	}

	_, err = ParseCSV(strings.NewReader("task_id,\"title\n"), nil)
	var ingestErr *errors.IngestError
	if !errors.As(err, &ingestErr) {
		t.Fatalf("broken header error = %v, want *IngestError", err)
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct{ in, want string }{
		{" Task ID ", "task_id"},
		{"Name", "title"},
		{"ASSIGNEE", "owner"},
		{"description", "notes"},
		{"\ufeffstatus", "status"},
		{"due date", "due_date"},
	}
	for _, tt := range tests {
		if got := NormalizeHeader(tt.in); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2024-03-09", "2024-03-09"},
		{"2024/03/09", "2024-03-09"},
		{"03/09/2024", "2024-03-09"},
		{"3/9/2024", "2024-03-09"},
		{"9 Mar 2024", "2024-03-09"},
		{"March 9, 2024", "2024-03-09"},
		{"2024-03-09T10:00:00Z", "2024-03-09"},
		{"tomorrow", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitDependencies(t *testing.T) {
	got := SplitDependencies(" a, b;c | d  e ")
	if want := []string{"a", "b", "c", "d", "e"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SplitDependencies = %q, want %q", got, want)
	}
	if got := SplitDependencies(""); got != nil {
		t.Errorf("SplitDependencies(\"\") = %q, want nil", got)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Fix Login Bug!", "fix-login-bug"},
		{"  spaced -- out  ", "spaced-out"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := task.Task{ID: "A", Title: "a", Owner: "ana", Status: task.StatusTodo, Priority: task.PriorityLow, Effort: 2}
	noOwner := ok
	noOwner.Owner = " "
	badStatus := ok
	badStatus.Status = "waiting"
	badEffort := ok
	badEffort.Effort = 9

	got := Validate([]task.Task{ok, noOwner, badStatus, badEffort}, nil)
	if len(got) != 1 || got[0].ID != "A" {
		t.Errorf("Validate = %+v", got)
	}
}

func TestParseText(t *testing.T) {
	gen := &llm.FakeGenerator{Default: "```json\n" + `[
		{"task_id": "api", "title": "API integration", "owner": "John", "status": "in_progress",
		 "start_date": null, "due_date": "2024-07-05", "dependency_ids": ["db"], "priority": "high", "effort": 4},
		{"title": "Database migration", "owner": "Sarah", "status": "blocked"},
		{"owner": "nobody"},
		"not an object"
	]` + "\n```"}

	tasks := ParseText(context.Background(), "John is working on the API.", gen, nil)
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	api := tasks[0]
	if api.ID != "api" || api.Status != task.StatusInProgress || api.Effort != 4 ||
		api.DueDate != "2024-07-05" || api.StartDate != "" || !reflect.DeepEqual(api.DependencyIDs, []string{"db"}) {
		t.Errorf("api task = %+v", api)
	}
	if tasks[1].ID != "database-migration" || tasks[1].Priority != task.PriorityMed {
		t.Errorf("migration task = %+v", tasks[1])
	}
}

func TestParseTextFallbacks(t *testing.T) {
	tests := map[string]struct {
		text string
		gen  llm.Generator
	}{
		"nil generator":  {"something", nil},
		"blank text":     {"   ", &llm.FakeGenerator{Default: "[]"}},
		"generator fail": {"something", &llm.FakeGenerator{Err: errors.ErrTimeout}},
		"panic":          {"something", &llm.FakeGenerator{Panic: true}},
		"no json":        {"something", &llm.FakeGenerator{Default: "sorry"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := ParseText(context.Background(), tt.text, tt.gen, nil)
			if got == nil || len(got) != 0 {
				t.Errorf("ParseText = %v, want empty slice", got)
			}
		})
	}
}

func TestFilter(t *testing.T) {
	tasks := []task.Task{{ID: "1", Owner: "ana"}, {ID: "2", Owner: "andy"}, {ID: "3", Owner: "bo"}}

	got, err := Filter(tasks, "an*")
	if err != nil || len(got) != 2 {
		t.Errorf("Filter(an*) = %v, %v", got, err)
	}
	if got, _ := Filter(tasks, ""); len(got) != 3 {
		t.Errorf("empty pattern should keep all, got %d", len(got))
	}
	if _, err := Filter(tasks, "[a-"); err == nil {
		t.Error("expected error for malformed pattern")
	}
}
