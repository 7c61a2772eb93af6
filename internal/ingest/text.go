package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/opspilot/opspilot/internal/llm"
	"github.com/opspilot/opspilot/internal/logging"
	"github.com/opspilot/opspilot/internal/task"
)

// ParseText extracts task records from free-form status text through gen.
// A missing or failing generator yields an empty slice.
func ParseText(ctx context.Context, text string, gen llm.Generator, logger *logging.Logger) (tasks []task.Task) {
	tasks = []task.Task{}
	if logger == nil {
		logger = logging.NopLogger()
	}
	gen = llm.OrNoop(gen)
	if strings.TrimSpace(text) == "" || !gen.Available() {
		return tasks
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("text extraction panicked", "generator", gen.Name(), "panic", fmt.Sprint(r))
			tasks = []task.Task{}
		}
	}()

	raw, err := gen.Generate(ctx, llm.TextToRowsPrompt(text))
	if err != nil {
		logger.Warn("text extraction failed", "generator", gen.Name(), "error", err)
		return tasks
	}
	for _, item := range llm.ExtractArray(raw) {
		if !item.IsObject() {
			continue
		}
		if t, ok := ParseRow(rowFromJSON(item)); ok {
			tasks = append(tasks, t)
		}
	}
	logger.Info("extracted tasks from text", "count", len(tasks), "generator", gen.Name())
	return tasks
}

// rowFromJSON flattens a generated object into a Row. Array values are
// joined with commas; nulls are left empty.
func rowFromJSON(obj gjson.Result) Row {
	row := Row{}
	obj.ForEach(func(key, value gjson.Result) bool {
		col := NormalizeHeader(key.String())
		switch {
		case value.Type == gjson.Null:
			row[col] = ""
		case value.IsArray():
			parts := []string{}
			for _, v := range value.Array() {
				parts = append(parts, v.String())
			}
			row[col] = strings.Join(parts, ",")
		default:
			row[col] = value.String()
		}
		return true
	})
	return row
}
